package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/juju/clock"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picklr-io/anfctl/internal/gateway"
	"github.com/picklr-io/anfctl/internal/ir"
	"github.com/picklr-io/anfctl/providers/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastPoll(retries int) PollConfig {
	return PollConfig{Interval: time.Millisecond, MaxRetries: retries}
}

// deleted returns a memory gateway in which acctRef was deleted and stays
// visible for lag reads.
func deleted(t *testing.T, lag int) *memory.Provider {
	t.Helper()
	mem := memory.New(memory.WithDeleteLag(lag))
	mem.Seed(acctRef, &ir.AccountSpec{})
	require.NoError(t, mem.Delete(context.Background(), acctRef))
	return mem
}

func TestDefaultPollConfig(t *testing.T) {
	assert.Equal(t, PollConfig{Interval: 10 * time.Second, MaxRetries: 60}, DefaultPollConfig())
}

func TestWaitForAbsence_ConfirmedAfterLag(t *testing.T) {
	mem := deleted(t, 2)
	p := NewPoller(mem, clock.WallClock, discardLogger())

	absence, err := p.WaitForAbsence(context.Background(), acctRef, fastPoll(5))
	require.NoError(t, err)
	assert.Equal(t, AbsenceConfirmed, absence)
	assert.Len(t, mem.CallsFor(gateway.OpGet), 3, "present, present, not found")
}

func TestWaitForAbsence_TimedOut(t *testing.T) {
	mem := deleted(t, 100)
	p := NewPoller(mem, clock.WallClock, discardLogger())

	absence, err := p.WaitForAbsence(context.Background(), acctRef, fastPoll(4))
	require.NoError(t, err)
	assert.Equal(t, AbsenceTimedOut, absence)
	assert.Len(t, mem.CallsFor(gateway.OpGet), 4)
}

func TestWaitForAbsence_ZeroRetries(t *testing.T) {
	mem := deleted(t, 0)
	p := NewPoller(mem, clock.WallClock, discardLogger())

	absence, err := p.WaitForAbsence(context.Background(), acctRef, fastPoll(0))
	require.NoError(t, err)
	assert.Equal(t, AbsenceTimedOut, absence)
	assert.Empty(t, mem.CallsFor(gateway.OpGet))
}

func TestWaitForAbsence_IndeterminateErrorAbortsEarly(t *testing.T) {
	mem := deleted(t, 100)
	mem.FailNext(acctRef.Kind, gateway.OpGet, &gateway.Error{Kind: acctRef.Kind, Op: gateway.OpGet, StatusCode: 403, Err: errors.New("forbidden")})
	p := NewPoller(mem, clock.WallClock, discardLogger())

	absence, err := p.WaitForAbsence(context.Background(), acctRef, fastPoll(10))
	require.NoError(t, err)
	assert.Equal(t, AbsenceTimedOut, absence)
	assert.Len(t, mem.CallsFor(gateway.OpGet), 1)
}

func TestWaitForAbsence_CancelledBeforeFirstCheck(t *testing.T) {
	mem := deleted(t, 100)
	clk := testclock.NewClock(time.Now())
	p := NewPoller(mem, clk, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	absence, err := p.WaitForAbsence(ctx, acctRef, DefaultPollConfig())
	assert.Equal(t, AbsenceCancelled, absence)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, mem.CallsFor(gateway.OpGet))
}

func TestWaitForAbsence_CancelledWhileWaiting(t *testing.T) {
	mem := deleted(t, 100)
	clk := testclock.NewClock(time.Now())
	p := NewPoller(mem, clk, discardLogger())
	cfg := DefaultPollConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		absence Absence
		err     error
	}
	done := make(chan result, 1)
	go func() {
		a, err := p.WaitForAbsence(ctx, acctRef, cfg)
		done <- result{a, err}
	}()

	require.NoError(t, clk.WaitAdvance(cfg.Interval, time.Second, 1))
	require.Eventually(t, func() bool {
		return len(mem.CallsFor(gateway.OpGet)) == 1
	}, time.Second, time.Millisecond)
	cancel()

	select {
	case r := <-done:
		assert.Equal(t, AbsenceCancelled, r.absence)
		assert.ErrorIs(t, r.err, ErrCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not observe cancellation")
	}
	assert.Len(t, mem.CallsFor(gateway.OpGet), 1)
}

func TestAbsence_String(t *testing.T) {
	assert.Equal(t, "Confirmed", AbsenceConfirmed.String())
	assert.Equal(t, "TimedOut", AbsenceTimedOut.String())
	assert.Equal(t, "Cancelled", AbsenceCancelled.String())
}
