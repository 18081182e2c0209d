package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/juju/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/picklr-io/anfctl/internal/ir"
	"github.com/picklr-io/anfctl/internal/resource"
)

var (
	poolRef   = resource.PoolRef("sub", "rg", "acct", "pool")
	volumeRef = resource.VolumeRef("sub", "rg", "acct", "pool", "vol")
)

// stubClient records calls and returns scripted errors in order.
type stubClient struct {
	kind  resource.Kind
	calls []string
	errs  []error
}

func (s *stubClient) next(op string) error {
	s.calls = append(s.calls, op)
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func (s *stubClient) Get(_ context.Context, ref resource.Ref) (*Resource, error) {
	if err := s.next(OpGet); err != nil {
		return nil, err
	}
	return &Resource{Ref: ref, ID: resource.Format(ref)}, nil
}

func (s *stubClient) CreateOrUpdate(_ context.Context, ref resource.Ref, spec ir.Spec) (*Resource, error) {
	if err := s.next(OpCreateOrUpdate); err != nil {
		return nil, err
	}
	return &Resource{Ref: ref, ID: resource.Format(ref), Spec: spec}, nil
}

func (s *stubClient) Patch(_ context.Context, ref resource.Ref, _ ir.Patch) (*Resource, error) {
	if err := s.next(OpPatch); err != nil {
		return nil, err
	}
	return &Resource{Ref: ref, ID: resource.Format(ref)}, nil
}

func (s *stubClient) Delete(_ context.Context, _ resource.Ref) error {
	return s.next(OpDelete)
}

func fastPolicy(retries int) *RetryPolicy {
	return &RetryPolicy{MaxRetries: retries, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDispatcher_RoutesByKind(t *testing.T) {
	pools := &stubClient{kind: resource.KindPool}
	volumes := &stubClient{kind: resource.KindVolume}
	d := NewDispatcher(map[resource.Kind]KindClient{
		resource.KindPool:   pools,
		resource.KindVolume: volumes,
	})
	ctx := context.Background()

	_, err := d.Get(ctx, poolRef)
	require.NoError(t, err)
	require.NoError(t, d.Delete(ctx, volumeRef))

	assert.Equal(t, []string{OpGet}, pools.calls)
	assert.Equal(t, []string{OpDelete}, volumes.calls)
}

func TestDispatcher_Rejects(t *testing.T) {
	d := NewDispatcher(map[resource.Kind]KindClient{resource.KindPool: &stubClient{}})
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"unregistered kind", func() error { _, err := d.Get(ctx, volumeRef); return err }},
		{"invalid ref", func() error { _, err := d.Get(ctx, resource.Ref{Kind: resource.KindPool}); return err }},
		{"spec kind mismatch", func() error { _, err := d.CreateOrUpdate(ctx, poolRef, &ir.VolumeSpec{}); return err }},
		{"nil spec", func() error { _, err := d.CreateOrUpdate(ctx, poolRef, nil); return err }},
		{"patch kind mismatch", func() error { _, err := d.Patch(ctx, poolRef, &ir.VolumePatch{}); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var gwErr *Error
			require.True(t, errors.As(err, &gwErr))
			assert.False(t, gwErr.Transient)
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"not found", NotFound(poolRef), false},
		{"transient gateway error", &Error{Kind: resource.KindPool, Op: OpGet, StatusCode: 429, Transient: true, Err: errors.New("throttled")}, true},
		{"permanent gateway error", &Error{Kind: resource.KindPool, Op: OpGet, StatusCode: 400, Err: errors.New("Too Many Requests in body")}, false},
		{"wrapped transient", fmt.Errorf("ensure pool: %w", &Error{Transient: true, Err: errors.New("x")}), true},
		{"network message", errors.New("read tcp: connection reset by peer"), true},
		{"plain", errors.New("invalid parameter"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientStatus(t *testing.T) {
	for _, s := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientStatus(s), "status %d", s)
	}
	for _, s := range []int{400, 401, 403, 404, 409} {
		assert.False(t, IsTransientStatus(s), "status %d", s)
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{Kind: resource.KindVolume, Op: OpDelete, StatusCode: 409, Code: "Conflict", Err: errors.New("volume has snapshots")}
	assert.Equal(t, "volume delete failed (permanent, status 409, code Conflict): volume has snapshots", err.Error())
}

func TestError_MessageWithoutKind(t *testing.T) {
	err := &Error{Op: OpResolveSubnet, StatusCode: 503, Transient: true, Err: errors.New("unavailable")}
	assert.Equal(t, "resolveSubnet failed (transient, status 503): unavailable", err.Error())
}

func TestRetrying_RetriesTransient(t *testing.T) {
	stub := &stubClient{errs: []error{
		&Error{Transient: true, Err: errors.New("busy")},
		&Error{Transient: true, Err: errors.New("busy")},
	}}
	r := WithRetry(stub, fastPolicy(3), clock.WallClock, nil)

	res, err := r.Get(context.Background(), poolRef)
	require.NoError(t, err)
	assert.Equal(t, resource.Format(poolRef), res.ID)
	assert.Len(t, stub.calls, 3)
}

func TestRetrying_DoesNotRetryNotFoundOrPermanent(t *testing.T) {
	stub := &stubClient{errs: []error{NotFound(poolRef)}}
	r := WithRetry(stub, fastPolicy(3), clock.WallClock, nil)

	_, err := r.Get(context.Background(), poolRef)
	assert.True(t, IsNotFound(err))
	assert.Len(t, stub.calls, 1)

	stub = &stubClient{errs: []error{&Error{Err: errors.New("bad request")}}}
	r = WithRetry(stub, fastPolicy(3), clock.WallClock, nil)
	assert.Error(t, r.Delete(context.Background(), poolRef))
	assert.Len(t, stub.calls, 1)
}

func TestRetrying_Exhausted(t *testing.T) {
	busy := &Error{Transient: true, Err: errors.New("busy")}
	stub := &stubClient{errs: []error{busy, busy, busy}}
	r := WithRetry(stub, fastPolicy(2), clock.WallClock, nil)

	_, err := r.CreateOrUpdate(context.Background(), poolRef, &ir.PoolSpec{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries (2) exceeded")
	var gwErr *Error
	assert.True(t, errors.As(err, &gwErr))
	assert.Len(t, stub.calls, 3)
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, clock.WallClock, &RetryPolicy{MaxRetries: 5, BaseDelay: time.Second, MaxDelay: time.Second},
		func() error { return errors.New("throttled") },
		func(error) bool { return true })
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateBackoff_Capped(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		d := calculateBackoff(attempt, 100*time.Millisecond, time.Second)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
}

func TestRateLimited_PassesThrough(t *testing.T) {
	stub := &stubClient{}
	g := WithRateLimit(stub, rate.NewLimiter(rate.Inf, 1))
	ctx := context.Background()

	_, err := g.Get(ctx, poolRef)
	require.NoError(t, err)
	_, err = g.Patch(ctx, poolRef, &ir.PoolPatch{})
	require.NoError(t, err)
	assert.Equal(t, []string{OpGet, OpPatch}, stub.calls)
}

func TestRateLimited_ContextDone(t *testing.T) {
	stub := &stubClient{}
	g := WithRateLimit(stub, rate.NewLimiter(rate.Every(time.Hour), 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, g.Delete(ctx, poolRef))
	assert.Empty(t, stub.calls)
}
