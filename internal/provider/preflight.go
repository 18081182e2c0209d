package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/juju/clock"
	"golang.org/x/time/rate"

	"github.com/picklr-io/anfctl/internal/gateway"
	"github.com/picklr-io/anfctl/internal/workflow"
)

// preflight paces and retries the environment checks the same way the
// gateway calls are handled. It shares the gateway's limiter.
type preflight struct {
	next    workflow.Preflighter
	limiter *rate.Limiter // nil when unlimited
	policy  *gateway.RetryPolicy
	clock   clock.Clock
	logger  *slog.Logger
}

func (p *preflight) do(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	return gateway.RetryWithBackoff(ctx, p.clock, p.policy, func() error {
		attempt++
		if attempt > 1 {
			p.logger.Debug("retrying preflight check", "op", op, "attempt", attempt)
		}
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}
		}
		return fn()
	}, gateway.IsTransient)
}

func (p *preflight) CheckResourceGroup(ctx context.Context, name string) error {
	return p.do(ctx, gateway.OpCheckResourceGroup, func() error {
		return p.next.CheckResourceGroup(ctx, name)
	})
}

func (p *preflight) ResolveSubnetID(ctx context.Context, subscriptionID, resourceGroup, vnet, subnet string) (id string, err error) {
	err = p.do(ctx, gateway.OpResolveSubnet, func() error {
		id, err = p.next.ResolveSubnetID(ctx, subscriptionID, resourceGroup, vnet, subnet)
		return err
	})
	return id, err
}
