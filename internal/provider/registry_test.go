package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picklr-io/anfctl/internal/gateway"
	"github.com/picklr-io/anfctl/internal/ir"
	"github.com/picklr-io/anfctl/internal/logging"
	"github.com/picklr-io/anfctl/internal/resource"
	"github.com/picklr-io/anfctl/providers/memory"
)

func TestRegistry_Names(t *testing.T) {
	assert.Equal(t, []string{"azure", "memory"}, NewRegistry().Names())
}

func TestRegistry_OpenUnknown(t *testing.T) {
	_, err := NewRegistry().Open(context.Background(), "gcp", Settings{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown gateway "gcp"`)
}

func TestRegistry_OpenMemory(t *testing.T) {
	opened, err := NewRegistry().Open(context.Background(), "memory", Settings{Logger: logging.Discard(), RequestsPerSecond: 1000})
	require.NoError(t, err)
	assert.Equal(t, "memory", opened.Name)

	ctx := context.Background()
	ref := resource.AccountRef("sub", "rg", "acct")
	_, err = opened.Gateway.CreateOrUpdate(ctx, ref, &ir.AccountSpec{Location: "westus2"})
	require.NoError(t, err)

	res, err := opened.Gateway.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "westus2", res.Location)
	assert.NoError(t, opened.Preflight.CheckResourceGroup(ctx, "rg"))
}

func TestRegistry_FactoryError(t *testing.T) {
	r := NewRegistry()
	r.Register("broken", func(context.Context, Settings) (Backend, error) {
		return nil, errors.New("no credentials")
	})

	_, err := r.Open(context.Background(), "broken", Settings{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials")
}

func TestRegistry_RetriesTransientErrors(t *testing.T) {
	mem := memory.New()
	ref := resource.AccountRef("sub", "rg", "acct")
	mem.Seed(ref, &ir.AccountSpec{Location: "westus2"})
	mem.FailNext(resource.KindAccount, gateway.OpGet, &gateway.Error{Kind: resource.KindAccount, Op: gateway.OpGet, StatusCode: 503, Transient: true, Err: errors.New("unavailable")})

	r := NewRegistry()
	r.Register("stub", func(context.Context, Settings) (Backend, error) { return mem, nil })

	opened, err := r.Open(context.Background(), "stub", Settings{
		Logger: logging.Discard(),
		Retry:  &gateway.RetryPolicy{MaxRetries: 2, BaseDelay: 0, MaxDelay: 0},
	})
	require.NoError(t, err)

	_, err = opened.Gateway.Get(context.Background(), ref)
	require.NoError(t, err)
	assert.Len(t, mem.CallsFor(gateway.OpGet), 2)
}

func TestRegistry_PreflightRetriesTransientErrors(t *testing.T) {
	mem := memory.New(memory.WithResourceGroups("rg"))
	unavailable := &gateway.Error{Op: gateway.OpCheckResourceGroup, StatusCode: 503, Transient: true, Err: errors.New("unavailable")}
	mem.FailNext(resource.KindUnknown, gateway.OpCheckResourceGroup, unavailable)
	mem.FailNext(resource.KindUnknown, gateway.OpResolveSubnet, unavailable)

	r := NewRegistry()
	r.Register("stub", func(context.Context, Settings) (Backend, error) { return mem, nil })

	opened, err := r.Open(context.Background(), "stub", Settings{
		Logger:            logging.Discard(),
		RequestsPerSecond: 1000,
		Retry:             &gateway.RetryPolicy{MaxRetries: 2},
	})
	require.NoError(t, err)

	require.NoError(t, opened.Preflight.CheckResourceGroup(context.Background(), "rg"))
	id, err := opened.Preflight.ResolveSubnetID(context.Background(), "sub", "rg", "vnet", "anf")
	require.NoError(t, err)
	assert.Contains(t, id, "/subnets/anf")
}

func TestRegistry_PreflightDoesNotRetryNotFound(t *testing.T) {
	mem := memory.New(memory.WithResourceGroups("rg"))
	r := NewRegistry()
	r.Register("stub", func(context.Context, Settings) (Backend, error) { return mem, nil })

	opened, err := r.Open(context.Background(), "stub", Settings{
		Logger: logging.Discard(),
		Retry:  &gateway.RetryPolicy{MaxRetries: 2},
	})
	require.NoError(t, err)

	err = opened.Preflight.CheckResourceGroup(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, gateway.IsNotFound(err))
	assert.NotContains(t, err.Error(), "max retries")
}
