// Package memory implements an in-process gateway that behaves like the
// management API closely enough for dry runs and tests: parents must exist
// before children, deletes are accepted before they become visible, and
// failures can be injected per kind and operation.
package memory

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/picklr-io/anfctl/internal/gateway"
	"github.com/picklr-io/anfctl/internal/ir"
	"github.com/picklr-io/anfctl/internal/resource"
)

const (
	stateSucceeded = "Succeeded"
	stateDeleting  = "Deleting"
)

// Call is one recorded gateway invocation.
type Call struct {
	Op  string
	Ref resource.Ref
}

type entry struct {
	res      *gateway.Resource
	deleting bool
	// visibleReads is how many more Gets observe the resource after delete.
	visibleReads int
}

type failureKey struct {
	kind resource.Kind
	op   string
}

// Provider is a thread-safe in-memory gateway.
type Provider struct {
	mu             sync.Mutex
	entries        map[resource.Ref]*entry
	deleteLag      int
	failures       map[failureKey][]error
	calls          []Call
	resourceGroups []string
}

type Option func(*Provider)

// WithDeleteLag makes a deleted resource visible to n further Gets before it
// disappears, simulating asynchronous deletion.
func WithDeleteLag(n int) Option {
	return func(p *Provider) { p.deleteLag = n }
}

// WithResourceGroups restricts CheckResourceGroup to the named groups.
func WithResourceGroups(names ...string) Option {
	return func(p *Provider) { p.resourceGroups = names }
}

func New(opts ...Option) *Provider {
	p := &Provider{
		entries:  make(map[resource.Ref]*entry),
		failures: make(map[failureKey][]error),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FailNext queues err to be returned by the next op call on a resource of
// kind. Queued errors are consumed in order.
func (p *Provider) FailNext(kind resource.Kind, op string, errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := failureKey{kind, op}
	p.failures[k] = append(p.failures[k], errs...)
}

// Seed stores a resource as if it had been created earlier.
func (p *Provider) Seed(ref resource.Ref, spec ir.Spec) *gateway.Resource {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store(ref, spec)
}

// Calls returns a copy of every recorded call in order.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}

// CallsFor returns the refs of recorded calls of one operation.
func (p *Provider) CallsFor(op string) []resource.Ref {
	p.mu.Lock()
	defer p.mu.Unlock()
	var refs []resource.Ref
	for _, c := range p.calls {
		if c.Op == op {
			refs = append(refs, c.Ref)
		}
	}
	return refs
}

// Exists reports whether ref is stored and not pending deletion.
func (p *Provider) Exists(ref resource.Ref) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[ref]
	return ok && !e.deleting
}

func (p *Provider) Get(_ context.Context, ref resource.Ref) (*gateway.Resource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record(gateway.OpGet, ref); err != nil {
		return nil, err
	}

	e, ok := p.entries[ref]
	if !ok {
		return nil, gateway.NotFound(ref)
	}
	if e.deleting {
		if e.visibleReads <= 0 {
			delete(p.entries, ref)
			return nil, gateway.NotFound(ref)
		}
		e.visibleReads--
	}
	return copyResource(e.res), nil
}

func (p *Provider) CreateOrUpdate(_ context.Context, ref resource.Ref, spec ir.Spec) (*gateway.Resource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record(gateway.OpCreateOrUpdate, ref); err != nil {
		return nil, err
	}
	if spec == nil || spec.Kind() != ref.Kind {
		return nil, &gateway.Error{Kind: ref.Kind, Op: gateway.OpCreateOrUpdate, StatusCode: http.StatusBadRequest,
			Code: "InvalidParameter", Err: fmt.Errorf("spec does not match %s ref", ref.Kind)}
	}
	if parent, ok := ref.Parent(); ok && !p.live(parent) {
		return nil, &gateway.Error{Kind: ref.Kind, Op: gateway.OpCreateOrUpdate, StatusCode: http.StatusNotFound,
			Code: "ParentResourceNotFound", Err: fmt.Errorf("parent %s %s does not exist", parent.Kind, parent.LeafName())}
	}
	if e, ok := p.entries[ref]; ok && e.deleting {
		return nil, &gateway.Error{Kind: ref.Kind, Op: gateway.OpCreateOrUpdate, StatusCode: http.StatusConflict,
			Code: "Conflict", Err: fmt.Errorf("%s %s is being deleted", ref.Kind, ref.LeafName())}
	}
	return copyResource(p.store(ref, spec)), nil
}

func (p *Provider) Patch(_ context.Context, ref resource.Ref, patch ir.Patch) (*gateway.Resource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record(gateway.OpPatch, ref); err != nil {
		return nil, err
	}
	e, ok := p.entries[ref]
	if !ok || e.deleting {
		return nil, gateway.NotFound(ref)
	}
	spec, err := patch.Apply(e.res.Spec)
	if err != nil {
		return nil, &gateway.Error{Kind: ref.Kind, Op: gateway.OpPatch, StatusCode: http.StatusBadRequest,
			Code: "InvalidParameter", Err: err}
	}
	return copyResource(p.store(ref, spec)), nil
}

func (p *Provider) Delete(_ context.Context, ref resource.Ref) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record(gateway.OpDelete, ref); err != nil {
		return err
	}
	e, ok := p.entries[ref]
	if !ok || e.deleting {
		return nil
	}
	if blocker := p.blockerOf(ref); blocker != "" {
		return &gateway.Error{Kind: ref.Kind, Op: gateway.OpDelete, StatusCode: http.StatusConflict,
			Code: "CannotDeleteResource", Err: fmt.Errorf("%s %s is still referenced by %s", ref.Kind, ref.LeafName(), blocker)}
	}
	if p.deleteLag == 0 {
		delete(p.entries, ref)
		return nil
	}
	e.deleting = true
	e.visibleReads = p.deleteLag
	e.res.ProvisioningState = stateDeleting
	return nil
}

// CheckResourceGroup succeeds for any group unless WithResourceGroups was
// used. Failures queued with FailNext(resource.KindUnknown,
// gateway.OpCheckResourceGroup, ...) are returned first.
func (p *Provider) CheckResourceGroup(_ context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.nextFailure(failureKey{resource.KindUnknown, gateway.OpCheckResourceGroup}); err != nil {
		return err
	}
	if p.resourceGroups == nil || slices.Contains(p.resourceGroups, name) {
		return nil
	}
	return fmt.Errorf("resource group %q: %w", name, gateway.ErrNotFound)
}

// ResolveSubnetID composes the subnet identifier from its names.
func (p *Provider) ResolveSubnetID(_ context.Context, subscriptionID, resourceGroup, vnet, subnet string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.nextFailure(failureKey{resource.KindUnknown, gateway.OpResolveSubnet}); err != nil {
		return "", err
	}
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Network/virtualNetworks/%s/subnets/%s",
		subscriptionID, resourceGroup, vnet, subnet), nil
}

// record must be called with p.mu held.
func (p *Provider) record(op string, ref resource.Ref) error {
	p.calls = append(p.calls, Call{Op: op, Ref: ref})
	return p.nextFailure(failureKey{ref.Kind, op})
}

// nextFailure pops the first queued error for k. p.mu must be held.
func (p *Provider) nextFailure(k failureKey) error {
	if queued := p.failures[k]; len(queued) > 0 {
		p.failures[k] = queued[1:]
		return queued[0]
	}
	return nil
}

func (p *Provider) live(ref resource.Ref) bool {
	e, ok := p.entries[ref]
	return ok && !e.deleting
}

// blockerOf returns a description of a stored resource that prevents ref
// from being deleted, or "" if there is none. Resources whose deletion was
// already accepted do not block.
func (p *Provider) blockerOf(ref resource.Ref) string {
	id := resource.Format(ref)
	for other, e := range p.entries {
		if e.deleting {
			continue
		}
		if parent, ok := other.Parent(); ok && parent == ref {
			return fmt.Sprintf("child %s %s", other.Kind, other.LeafName())
		}
		if vol, ok := e.res.Spec.(*ir.VolumeSpec); ok && ref.Kind == resource.KindSnapshotPolicy && vol.SnapshotPolicyID == id {
			return fmt.Sprintf("volume %s", other.LeafName())
		}
	}
	return ""
}

func (p *Provider) store(ref resource.Ref, spec ir.Spec) *gateway.Resource {
	res := &gateway.Resource{
		Ref:               ref,
		ID:                resource.Format(ref),
		Location:          locationOf(spec),
		ProvisioningState: stateSucceeded,
		Spec:              ir.CloneSpec(spec),
	}
	p.entries[ref] = &entry{res: res}
	return res
}

func copyResource(r *gateway.Resource) *gateway.Resource {
	out := *r
	if r.Spec != nil {
		out.Spec = ir.CloneSpec(r.Spec)
	}
	return &out
}

func locationOf(spec ir.Spec) string {
	switch s := spec.(type) {
	case *ir.AccountSpec:
		return s.Location
	case *ir.SnapshotPolicySpec:
		return s.Location
	case *ir.PoolSpec:
		return s.Location
	case *ir.VolumeSpec:
		return s.Location
	case *ir.SnapshotSpec:
		return s.Location
	}
	return ""
}
