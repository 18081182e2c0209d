// Package gateway defines the boundary between the orchestrator and the
// remote management API.
package gateway

import (
	"context"
	"fmt"

	"github.com/picklr-io/anfctl/internal/ir"
	"github.com/picklr-io/anfctl/internal/resource"
)

// Resource is the observed state of a remote resource.
type Resource struct {
	Ref resource.Ref
	// ID is the opaque identifier assigned by the remote side. It is used for
	// reporting and for linking resources to each other.
	ID                string
	Location          string
	ProvisioningState string
	// Spec is the observed representation in domain terms. It may be nil
	// when the remote side returned no properties.
	Spec ir.Spec
}

// Gateway performs single operations against the management API. A missing
// resource is reported by Get as an error matching ErrNotFound.
//
// Delete returns once the remote side has accepted the deletion; it does not
// wait for the resource to disappear.
type Gateway interface {
	Get(ctx context.Context, ref resource.Ref) (*Resource, error)
	CreateOrUpdate(ctx context.Context, ref resource.Ref, spec ir.Spec) (*Resource, error)
	Patch(ctx context.Context, ref resource.Ref, patch ir.Patch) (*Resource, error)
	Delete(ctx context.Context, ref resource.Ref) error
}

// KindClient is implemented once per resource kind. Dispatcher routes
// Gateway calls to the KindClient registered for the ref's kind.
type KindClient interface {
	Gateway
}

// Dispatcher implements Gateway by selecting a KindClient from ref.Kind.
type Dispatcher struct {
	clients map[resource.Kind]KindClient
}

func NewDispatcher(clients map[resource.Kind]KindClient) *Dispatcher {
	return &Dispatcher{clients: clients}
}

func (d *Dispatcher) client(op string, ref resource.Ref) (KindClient, error) {
	if err := ref.Validate(); err != nil {
		return nil, &Error{Kind: ref.Kind, Op: op, Err: err}
	}
	c, ok := d.clients[ref.Kind]
	if !ok {
		return nil, &Error{Kind: ref.Kind, Op: op, Err: fmt.Errorf("no client registered for kind %s", ref.Kind)}
	}
	return c, nil
}

func (d *Dispatcher) Get(ctx context.Context, ref resource.Ref) (*Resource, error) {
	c, err := d.client(OpGet, ref)
	if err != nil {
		return nil, err
	}
	return c.Get(ctx, ref)
}

func (d *Dispatcher) CreateOrUpdate(ctx context.Context, ref resource.Ref, spec ir.Spec) (*Resource, error) {
	c, err := d.client(OpCreateOrUpdate, ref)
	if err != nil {
		return nil, err
	}
	if spec == nil || spec.Kind() != ref.Kind {
		return nil, &Error{Kind: ref.Kind, Op: OpCreateOrUpdate, Err: fmt.Errorf("spec does not match %s ref", ref.Kind)}
	}
	return c.CreateOrUpdate(ctx, ref, spec)
}

func (d *Dispatcher) Patch(ctx context.Context, ref resource.Ref, patch ir.Patch) (*Resource, error) {
	c, err := d.client(OpPatch, ref)
	if err != nil {
		return nil, err
	}
	if patch == nil || patch.Kind() != ref.Kind {
		return nil, &Error{Kind: ref.Kind, Op: OpPatch, Err: fmt.Errorf("patch does not match %s ref", ref.Kind)}
	}
	return c.Patch(ctx, ref, patch)
}

func (d *Dispatcher) Delete(ctx context.Context, ref resource.Ref) error {
	c, err := d.client(OpDelete, ref)
	if err != nil {
		return err
	}
	return c.Delete(ctx, ref)
}
