package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/juju/clock"
	"golang.org/x/time/rate"

	"github.com/picklr-io/anfctl/internal/ir"
	"github.com/picklr-io/anfctl/internal/resource"
)

// DefaultRetryMax is the default maximum number of retries for transient errors.
const DefaultRetryMax = 3

// RetryPolicy defines retry behavior for transient management API errors.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries: DefaultRetryMax,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// RetryWithBackoff executes fn with exponential backoff and jitter.
// It retries only if shouldRetry returns true for the error.
func RetryWithBackoff(ctx context.Context, clk clock.Clock, policy *RetryPolicy, fn func() error, shouldRetry func(error) bool) error {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !shouldRetry(lastErr) {
			return lastErr
		}

		if attempt < policy.MaxRetries {
			delay := calculateBackoff(attempt, policy.BaseDelay, policy.MaxDelay)
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-clk.After(delay):
			}
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", policy.MaxRetries, lastErr)
}

// calculateBackoff returns exponential backoff with full jitter.
func calculateBackoff(attempt int, base, max time.Duration) time.Duration {
	backoff := float64(base) * math.Pow(2, float64(attempt))
	if backoff > float64(max) {
		backoff = float64(max)
	}
	return time.Duration(rand.Float64() * backoff)
}

// Retrying retries transient failures of the wrapped gateway. Not-found and
// permanent errors are returned on the first attempt.
type Retrying struct {
	next   Gateway
	policy *RetryPolicy
	clock  clock.Clock
	logger *slog.Logger
}

func WithRetry(next Gateway, policy *RetryPolicy, clk clock.Clock, logger *slog.Logger) *Retrying {
	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{next: next, policy: policy, clock: clk, logger: logger}
}

func (r *Retrying) do(ctx context.Context, op string, ref resource.Ref, fn func() error) error {
	attempt := 0
	return RetryWithBackoff(ctx, r.clock, r.policy, func() error {
		attempt++
		if attempt > 1 {
			r.logger.Debug("retrying gateway call", "op", op, "kind", ref.Kind.String(), "attempt", attempt)
		}
		return fn()
	}, IsTransient)
}

func (r *Retrying) Get(ctx context.Context, ref resource.Ref) (res *Resource, err error) {
	err = r.do(ctx, OpGet, ref, func() error {
		res, err = r.next.Get(ctx, ref)
		return err
	})
	return res, err
}

func (r *Retrying) CreateOrUpdate(ctx context.Context, ref resource.Ref, spec ir.Spec) (res *Resource, err error) {
	err = r.do(ctx, OpCreateOrUpdate, ref, func() error {
		res, err = r.next.CreateOrUpdate(ctx, ref, spec)
		return err
	})
	return res, err
}

func (r *Retrying) Patch(ctx context.Context, ref resource.Ref, patch ir.Patch) (res *Resource, err error) {
	err = r.do(ctx, OpPatch, ref, func() error {
		res, err = r.next.Patch(ctx, ref, patch)
		return err
	})
	return res, err
}

func (r *Retrying) Delete(ctx context.Context, ref resource.Ref) error {
	return r.do(ctx, OpDelete, ref, func() error {
		return r.next.Delete(ctx, ref)
	})
}

// RateLimited paces calls to the wrapped gateway with a token bucket.
type RateLimited struct {
	next    Gateway
	limiter *rate.Limiter
}

func WithRateLimit(next Gateway, limiter *rate.Limiter) *RateLimited {
	return &RateLimited{next: next, limiter: limiter}
}

func (r *RateLimited) wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

func (r *RateLimited) Get(ctx context.Context, ref resource.Ref) (*Resource, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Get(ctx, ref)
}

func (r *RateLimited) CreateOrUpdate(ctx context.Context, ref resource.Ref, spec ir.Spec) (*Resource, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.CreateOrUpdate(ctx, ref, spec)
}

func (r *RateLimited) Patch(ctx context.Context, ref resource.Ref, patch ir.Patch) (*Resource, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Patch(ctx, ref, patch)
}

func (r *RateLimited) Delete(ctx context.Context, ref resource.Ref) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.Delete(ctx, ref)
}
