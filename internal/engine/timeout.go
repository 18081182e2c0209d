package engine

import (
	"context"
	"fmt"
	"time"
)

// DefaultTimeout is the default per-resource operation timeout.
const DefaultTimeout = 30 * time.Minute

// TimeoutPolicy decides what teardown does when deletion of a resource is
// not confirmed in time.
type TimeoutPolicy int

const (
	// TimeoutPolicyWarn logs a warning and moves on to the next resource.
	TimeoutPolicyWarn TimeoutPolicy = iota
	// TimeoutPolicyFail stops teardown with ErrTimedOut.
	TimeoutPolicyFail
)

// ParseTimeoutPolicy accepts "warn" or "fail".
func ParseTimeoutPolicy(s string) (TimeoutPolicy, error) {
	switch s {
	case "", "warn":
		return TimeoutPolicyWarn, nil
	case "fail":
		return TimeoutPolicyFail, nil
	default:
		return TimeoutPolicyWarn, fmt.Errorf("unknown timeout policy %q", s)
	}
}

func (p TimeoutPolicy) String() string {
	if p == TimeoutPolicyFail {
		return "fail"
	}
	return "warn"
}

// withTimeout wraps a context with a per-resource timeout.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
