// Package engine drives resources through their lifecycle: it ensures they
// exist in dependency order, applies updates, and tears them down in reverse
// order while confirming each deletion.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/picklr-io/anfctl/internal/gateway"
	"github.com/picklr-io/anfctl/internal/ir"
	"github.com/picklr-io/anfctl/internal/resource"
)

// Engine holds everything a run needs. It keeps no state between runs.
type Engine struct {
	gw            gateway.Gateway
	poller        *Poller
	clock         clock.Clock
	logger        *slog.Logger
	poll          PollConfig
	parallelism   int
	opTimeout     time.Duration
	timeoutPolicy TimeoutPolicy
	callback      EventCallback
	emitMu        sync.Mutex
}

type Option func(*Engine)

func WithClock(clk clock.Clock) Option {
	return func(e *Engine) { e.clock = clk }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithPollConfig(cfg PollConfig) Option {
	return func(e *Engine) { e.poll = cfg }
}

// WithParallelism lets independent resources of the same dependency level
// be ensured concurrently.
func WithParallelism(n int) Option {
	return func(e *Engine) { e.parallelism = n }
}

// WithOperationTimeout bounds each individual gateway operation.
func WithOperationTimeout(d time.Duration) Option {
	return func(e *Engine) { e.opTimeout = d }
}

func WithTimeoutPolicy(p TimeoutPolicy) Option {
	return func(e *Engine) { e.timeoutPolicy = p }
}

func WithEventCallback(cb EventCallback) Option {
	return func(e *Engine) { e.callback = cb }
}

func New(gw gateway.Gateway, opts ...Option) *Engine {
	e := &Engine{
		gw:          gw,
		clock:       clock.WallClock,
		logger:      slog.Default(),
		poll:        DefaultPollConfig(),
		parallelism: 1,
		opTimeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.poller = NewPoller(gw, e.clock, e.logger)
	return e
}

// EnsureResource creates ref from spec unless it already exists. An existing
// resource is returned as is; its properties are never reconciled with spec.
// Read errors other than not-found are returned unchanged and nothing is
// written.
func (e *Engine) EnsureResource(ctx context.Context, ref resource.Ref, spec ir.Spec) (*gateway.Resource, Outcome, error) {
	logger := e.logger.With("kind", ref.Kind.String(), "name", ref.LeafName())

	existing, err := e.gw.Get(ctx, ref)
	if err == nil {
		logger.Info("resource already exists", "id", existing.ID)
		return existing, OutcomeAlreadyExists, nil
	}
	if !gateway.IsNotFound(err) {
		return nil, OutcomeNone, err
	}

	logger.Debug("resource absent, creating")
	created, err := e.gw.CreateOrUpdate(ctx, ref, spec)
	if err != nil {
		return nil, OutcomeNone, err
	}
	logger.Info("resource created", "id", created.ID)
	return created, OutcomeCreated, nil
}

// ApplyUpdate sends a partial update for ref without checking for
// existence first.
func (e *Engine) ApplyUpdate(ctx context.Context, ref resource.Ref, patch ir.Patch) (*gateway.Resource, error) {
	start := e.clock.Now()
	e.emit(Event{Ref: ref, Stage: StageUpdate, Status: StatusStarted})

	opCtx, cancel := withTimeout(ctx, e.opTimeout)
	defer cancel()

	res, err := e.gw.Patch(opCtx, ref, patch)
	if err != nil {
		err = &UpdateFailedError{Ref: ref, Err: err}
		e.emit(Event{Ref: ref, Stage: StageUpdate, Status: StatusFailed, Duration: e.clock.Now().Sub(start), Err: err})
		return nil, err
	}

	e.logger.Info("update applied", "kind", ref.Kind.String(), "name", ref.LeafName(), "id", res.ID)
	e.emit(Event{Ref: ref, ID: res.ID, Stage: StageUpdate, Status: StatusCompleted, State: StateUpdateApplied, Duration: e.clock.Now().Sub(start)})
	return res, nil
}

// Inspect reads every node of plan and reports whether it exists. It stops
// at the first read error that is not a not-found.
func (e *Engine) Inspect(ctx context.Context, plan *Plan) (*Report, error) {
	report := newReport()
	for _, node := range plan.CreationOrder() {
		if err := ctx.Err(); err != nil {
			return report, cancelled(err)
		}
		res, err := e.gw.Get(ctx, node.Ref)
		switch {
		case err == nil:
			report.record(&NodeResult{Ref: node.Ref, ID: res.ID, State: StateVerifiedPresent, Resource: res})
			e.emit(Event{Ref: node.Ref, ID: res.ID, Stage: StageInspect, Status: StatusCompleted, State: StateVerifiedPresent})
		case gateway.IsNotFound(err):
			report.record(&NodeResult{Ref: node.Ref, State: StateVerifiedAbsent})
			e.emit(Event{Ref: node.Ref, Stage: StageInspect, Status: StatusCompleted, State: StateVerifiedAbsent})
		default:
			err = &StageError{Stage: StageInspect, Ref: node.Ref, Err: err}
			e.emit(Event{Ref: node.Ref, Stage: StageInspect, Status: StatusFailed, Err: err})
			return report, err
		}
	}
	return report, nil
}

// WaitForAbsence exposes the engine's poller with its configured clock.
func (e *Engine) WaitForAbsence(ctx context.Context, ref resource.Ref, cfg PollConfig) (Absence, error) {
	return e.poller.WaitForAbsence(ctx, ref, cfg)
}
