// Package provider selects and assembles the gateway a run talks to.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/juju/clock"
	"golang.org/x/time/rate"

	"github.com/picklr-io/anfctl/internal/gateway"
	"github.com/picklr-io/anfctl/internal/metrics"
	"github.com/picklr-io/anfctl/internal/workflow"
	"github.com/picklr-io/anfctl/providers/azure"
	"github.com/picklr-io/anfctl/providers/memory"
)

// Settings configure how a gateway is opened and decorated.
type Settings struct {
	SubscriptionID string
	// RequestsPerSecond limits calls to the management API; zero disables
	// the limit.
	RequestsPerSecond float64
	// Retry overrides the retry policy; nil uses gateway.DefaultRetryPolicy.
	Retry *gateway.RetryPolicy
	// DeleteLag is the number of reads a deleted resource stays visible in
	// the memory gateway.
	DeleteLag int
	Clock     clock.Clock
	Logger    *slog.Logger
}

// Backend is a gateway together with its environment checks.
type Backend interface {
	gateway.Gateway
	workflow.Preflighter
}

// Factory opens a raw backend.
type Factory func(ctx context.Context, s Settings) (Backend, error)

// Opened is a decorated gateway ready for the workflow.
type Opened struct {
	Name      string
	Gateway   gateway.Gateway
	Preflight workflow.Preflighter
}

// Registry maps gateway names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in gateways: "azure" and
// the offline "memory" gateway.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("azure", func(_ context.Context, s Settings) (Backend, error) {
		return azure.NewFromEnvironment(s.SubscriptionID)
	})
	r.Register("memory", func(_ context.Context, s Settings) (Backend, error) {
		return memory.New(memory.WithDeleteLag(s.DeleteLag)), nil
	})
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Names lists the registered gateways in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Open creates the named gateway and wraps it with metrics, rate limiting
// and retries, innermost first. The preflight checks share the rate limit
// and retry policy.
func (r *Registry) Open(ctx context.Context, name string, s Settings) (*Opened, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown gateway %q (available: %v)", name, r.Names())
	}

	backend, err := f(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s gateway: %w", name, err)
	}

	if s.Clock == nil {
		s.Clock = clock.WallClock
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	policy := s.Retry
	if policy == nil {
		policy = gateway.DefaultRetryPolicy()
	}

	logger := s.Logger.With("gateway", name)
	pf := &preflight{next: backend, policy: policy, clock: s.Clock, logger: logger}

	var gw gateway.Gateway = metrics.InstrumentGateway(backend)
	if s.RequestsPerSecond > 0 {
		limiter := rate.NewLimiter(rate.Limit(s.RequestsPerSecond), 1)
		gw = gateway.WithRateLimit(gw, limiter)
		pf.limiter = limiter
	}
	gw = gateway.WithRetry(gw, policy, s.Clock, logger)

	return &Opened{Name: name, Gateway: gw, Preflight: pf}, nil
}
