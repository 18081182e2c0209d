package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/juju/clock"

	"github.com/picklr-io/anfctl/internal/gateway"
	"github.com/picklr-io/anfctl/internal/resource"
)

// PollConfig bounds how long deletion is waited for.
type PollConfig struct {
	Interval   time.Duration
	MaxRetries int
}

// DefaultPollConfig waits up to ten minutes in ten second steps.
func DefaultPollConfig() PollConfig {
	return PollConfig{Interval: 10 * time.Second, MaxRetries: 60}
}

// Absence is the result of waiting for a resource to disappear.
type Absence int

const (
	AbsenceConfirmed Absence = iota
	AbsenceTimedOut
	AbsenceCancelled
)

func (a Absence) String() string {
	switch a {
	case AbsenceConfirmed:
		return "Confirmed"
	case AbsenceTimedOut:
		return "TimedOut"
	default:
		return "Cancelled"
	}
}

// Poller confirms that deleted resources have become invisible to reads.
type Poller struct {
	gw     gateway.Gateway
	clock  clock.Clock
	logger *slog.Logger
}

func NewPoller(gw gateway.Gateway, clk clock.Clock, logger *slog.Logger) *Poller {
	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{gw: gw, clock: clk, logger: logger}
}

// WaitForAbsence sleeps cfg.Interval before each of at most cfg.MaxRetries
// reads of ref. A not-found read confirms absence. Any other read error ends
// the wait early and is reported as AbsenceTimedOut, since it says nothing
// about whether the resource is gone. A done context yields
// AbsenceCancelled and the context error.
func (p *Poller) WaitForAbsence(ctx context.Context, ref resource.Ref, cfg PollConfig) (Absence, error) {
	logger := p.logger.With("kind", ref.Kind.String(), "name", ref.LeafName())

	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return AbsenceCancelled, cancelled(ctx.Err())
		case <-p.clock.After(cfg.Interval):
		}

		_, err := p.gw.Get(ctx, ref)
		switch {
		case gateway.IsNotFound(err):
			logger.Debug("deletion confirmed", "attempt", attempt)
			return AbsenceConfirmed, nil
		case err != nil:
			if ctx.Err() != nil {
				return AbsenceCancelled, cancelled(ctx.Err())
			}
			logger.Warn("could not confirm deletion, giving up", "attempt", attempt, "error", err)
			return AbsenceTimedOut, nil
		}
		logger.Debug("resource still present", "attempt", attempt, "max_retries", cfg.MaxRetries)
	}

	return AbsenceTimedOut, nil
}
