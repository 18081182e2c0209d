// Package metrics exposes Prometheus metrics for gateway calls and
// lifecycle stages.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/picklr-io/anfctl/internal/engine"
	"github.com/picklr-io/anfctl/internal/gateway"
	"github.com/picklr-io/anfctl/internal/ir"
	"github.com/picklr-io/anfctl/internal/resource"
)

const (
	MetricGatewayRequestsTotal   = "anfctl_gateway_requests_total"
	MetricGatewayRequestDuration = "anfctl_gateway_request_duration_seconds"
	MetricStageTotal             = "anfctl_stage_total"
	MetricStageDuration          = "anfctl_stage_duration_seconds"
)

// Registry holds every anfctl collector.
var Registry = prometheus.NewRegistry()

var (
	gatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricGatewayRequestsTotal,
			Help: "Management API calls by resource kind, operation and result",
		},
		[]string{"kind", "op", "result"},
	)

	gatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricGatewayRequestDuration,
			Help:    "Duration of management API calls",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
		},
		[]string{"kind", "op"},
	)

	stageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricStageTotal,
			Help: "Finished lifecycle stages by resource kind, stage and status",
		},
		[]string{"kind", "stage", "status"},
	)

	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricStageDuration,
			Help:    "Duration of lifecycle stages, deletion confirmation included",
			Buckets: []float64{0.1, 1, 10, 60, 300, 900, 1800},
		},
		[]string{"kind", "stage"},
	)
)

func init() {
	Registry.MustRegister(
		gatewayRequests,
		gatewayDuration,
		stageTotal,
		stageDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// result buckets a gateway error for the result label.
func result(err error) string {
	var gwErr *gateway.Error
	switch {
	case err == nil:
		return "ok"
	case gateway.IsNotFound(err):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.As(err, &gwErr) && gwErr.Transient:
		return "transient"
	default:
		return "error"
	}
}

// Instrumented records a request counter and latency for every call.
type Instrumented struct {
	next gateway.Gateway
}

func InstrumentGateway(next gateway.Gateway) *Instrumented {
	return &Instrumented{next: next}
}

func observe(kind resource.Kind, op string, start time.Time, err error) {
	gatewayRequests.WithLabelValues(kind.String(), op, result(err)).Inc()
	gatewayDuration.WithLabelValues(kind.String(), op).Observe(time.Since(start).Seconds())
}

func (i *Instrumented) Get(ctx context.Context, ref resource.Ref) (*gateway.Resource, error) {
	start := time.Now()
	res, err := i.next.Get(ctx, ref)
	observe(ref.Kind, gateway.OpGet, start, err)
	return res, err
}

func (i *Instrumented) CreateOrUpdate(ctx context.Context, ref resource.Ref, spec ir.Spec) (*gateway.Resource, error) {
	start := time.Now()
	res, err := i.next.CreateOrUpdate(ctx, ref, spec)
	observe(ref.Kind, gateway.OpCreateOrUpdate, start, err)
	return res, err
}

func (i *Instrumented) Patch(ctx context.Context, ref resource.Ref, patch ir.Patch) (*gateway.Resource, error) {
	start := time.Now()
	res, err := i.next.Patch(ctx, ref, patch)
	observe(ref.Kind, gateway.OpPatch, start, err)
	return res, err
}

func (i *Instrumented) Delete(ctx context.Context, ref resource.Ref) error {
	start := time.Now()
	err := i.next.Delete(ctx, ref)
	observe(ref.Kind, gateway.OpDelete, start, err)
	return err
}

// ObserveEvent is an engine event callback that counts finished stages.
func ObserveEvent(ev engine.Event) {
	if ev.Status == engine.StatusStarted {
		return
	}
	kind := ev.Ref.Kind.String()
	stageTotal.WithLabelValues(kind, string(ev.Stage), string(ev.Status)).Inc()
	if ev.Duration > 0 {
		stageDuration.WithLabelValues(kind, string(ev.Stage)).Observe(ev.Duration.Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// Serve exposes /metrics on addr until ctx is done. It returns the bound
// address once listening.
func Serve(ctx context.Context, addr string) (net.Addr, <-chan error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return ln.Addr(), done, nil
}
