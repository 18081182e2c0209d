package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/netapp/armnetapp/v7"

	"github.com/picklr-io/anfctl/internal/gateway"
	"github.com/picklr-io/anfctl/internal/ir"
	"github.com/picklr-io/anfctl/internal/resource"
)

// Each client below serves one resource kind. Long running creates and
// patches are polled to completion; deletes return once the service has
// accepted them.

type accountClient struct {
	api *armnetapp.AccountsClient
}

func (c *accountClient) Get(ctx context.Context, ref resource.Ref) (*gateway.Resource, error) {
	resp, err := c.api.Get(ctx, ref.ResourceGroup, ref.Account, nil)
	if err != nil {
		return nil, classify(gateway.OpGet, ref, err)
	}
	return accountResource(ref, resp.Account), nil
}

func (c *accountClient) CreateOrUpdate(ctx context.Context, ref resource.Ref, spec ir.Spec) (*gateway.Resource, error) {
	poller, err := c.api.BeginCreateOrUpdate(ctx, ref.ResourceGroup, ref.Account, accountModel(spec.(*ir.AccountSpec)), nil)
	if err == nil {
		var resp armnetapp.AccountsClientCreateOrUpdateResponse
		if resp, err = poller.PollUntilDone(ctx, nil); err == nil {
			return accountResource(ref, resp.Account), nil
		}
	}
	return nil, classify(gateway.OpCreateOrUpdate, ref, err)
}

func (c *accountClient) Patch(ctx context.Context, ref resource.Ref, patch ir.Patch) (*gateway.Resource, error) {
	poller, err := c.api.BeginUpdate(ctx, ref.ResourceGroup, ref.Account, accountPatchModel(patch.(*ir.AccountPatch)), nil)
	if err == nil {
		var resp armnetapp.AccountsClientUpdateResponse
		if resp, err = poller.PollUntilDone(ctx, nil); err == nil {
			return accountResource(ref, resp.Account), nil
		}
	}
	return nil, classify(gateway.OpPatch, ref, err)
}

func (c *accountClient) Delete(ctx context.Context, ref resource.Ref) error {
	_, err := c.api.BeginDelete(ctx, ref.ResourceGroup, ref.Account, nil)
	return deleteError(ref, err)
}

type poolClient struct {
	api *armnetapp.PoolsClient
}

func (c *poolClient) Get(ctx context.Context, ref resource.Ref) (*gateway.Resource, error) {
	resp, err := c.api.Get(ctx, ref.ResourceGroup, ref.Account, ref.Pool, nil)
	if err != nil {
		return nil, classify(gateway.OpGet, ref, err)
	}
	return poolResource(ref, resp.CapacityPool), nil
}

func (c *poolClient) CreateOrUpdate(ctx context.Context, ref resource.Ref, spec ir.Spec) (*gateway.Resource, error) {
	poller, err := c.api.BeginCreateOrUpdate(ctx, ref.ResourceGroup, ref.Account, ref.Pool, poolModel(spec.(*ir.PoolSpec)), nil)
	if err == nil {
		var resp armnetapp.PoolsClientCreateOrUpdateResponse
		if resp, err = poller.PollUntilDone(ctx, nil); err == nil {
			return poolResource(ref, resp.CapacityPool), nil
		}
	}
	return nil, classify(gateway.OpCreateOrUpdate, ref, err)
}

func (c *poolClient) Patch(ctx context.Context, ref resource.Ref, patch ir.Patch) (*gateway.Resource, error) {
	poller, err := c.api.BeginUpdate(ctx, ref.ResourceGroup, ref.Account, ref.Pool, poolPatchModel(patch.(*ir.PoolPatch)), nil)
	if err == nil {
		var resp armnetapp.PoolsClientUpdateResponse
		if resp, err = poller.PollUntilDone(ctx, nil); err == nil {
			return poolResource(ref, resp.CapacityPool), nil
		}
	}
	return nil, classify(gateway.OpPatch, ref, err)
}

func (c *poolClient) Delete(ctx context.Context, ref resource.Ref) error {
	_, err := c.api.BeginDelete(ctx, ref.ResourceGroup, ref.Account, ref.Pool, nil)
	return deleteError(ref, err)
}

type volumeClient struct {
	api *armnetapp.VolumesClient
}

func (c *volumeClient) Get(ctx context.Context, ref resource.Ref) (*gateway.Resource, error) {
	resp, err := c.api.Get(ctx, ref.ResourceGroup, ref.Account, ref.Pool, ref.Volume, nil)
	if err != nil {
		return nil, classify(gateway.OpGet, ref, err)
	}
	return volumeResource(ref, resp.Volume), nil
}

func (c *volumeClient) CreateOrUpdate(ctx context.Context, ref resource.Ref, spec ir.Spec) (*gateway.Resource, error) {
	poller, err := c.api.BeginCreateOrUpdate(ctx, ref.ResourceGroup, ref.Account, ref.Pool, ref.Volume, volumeModel(spec.(*ir.VolumeSpec)), nil)
	if err == nil {
		var resp armnetapp.VolumesClientCreateOrUpdateResponse
		if resp, err = poller.PollUntilDone(ctx, nil); err == nil {
			return volumeResource(ref, resp.Volume), nil
		}
	}
	return nil, classify(gateway.OpCreateOrUpdate, ref, err)
}

func (c *volumeClient) Patch(ctx context.Context, ref resource.Ref, patch ir.Patch) (*gateway.Resource, error) {
	poller, err := c.api.BeginUpdate(ctx, ref.ResourceGroup, ref.Account, ref.Pool, ref.Volume, volumePatchModel(patch.(*ir.VolumePatch)), nil)
	if err == nil {
		var resp armnetapp.VolumesClientUpdateResponse
		if resp, err = poller.PollUntilDone(ctx, nil); err == nil {
			return volumeResource(ref, resp.Volume), nil
		}
	}
	return nil, classify(gateway.OpPatch, ref, err)
}

func (c *volumeClient) Delete(ctx context.Context, ref resource.Ref) error {
	_, err := c.api.BeginDelete(ctx, ref.ResourceGroup, ref.Account, ref.Pool, ref.Volume, nil)
	return deleteError(ref, err)
}

type snapshotClient struct {
	api *armnetapp.SnapshotsClient
}

func (c *snapshotClient) Get(ctx context.Context, ref resource.Ref) (*gateway.Resource, error) {
	resp, err := c.api.Get(ctx, ref.ResourceGroup, ref.Account, ref.Pool, ref.Volume, ref.Name, nil)
	if err != nil {
		return nil, classify(gateway.OpGet, ref, err)
	}
	return snapshotResource(ref, resp.Snapshot), nil
}

func (c *snapshotClient) CreateOrUpdate(ctx context.Context, ref resource.Ref, spec ir.Spec) (*gateway.Resource, error) {
	poller, err := c.api.BeginCreate(ctx, ref.ResourceGroup, ref.Account, ref.Pool, ref.Volume, ref.Name, snapshotModel(spec.(*ir.SnapshotSpec)), nil)
	if err == nil {
		var resp armnetapp.SnapshotsClientCreateResponse
		if resp, err = poller.PollUntilDone(ctx, nil); err == nil {
			return snapshotResource(ref, resp.Snapshot), nil
		}
	}
	return nil, classify(gateway.OpCreateOrUpdate, ref, err)
}

// Patch is not supported: a snapshot has no mutable properties.
func (c *snapshotClient) Patch(_ context.Context, ref resource.Ref, _ ir.Patch) (*gateway.Resource, error) {
	return nil, &gateway.Error{Kind: ref.Kind, Op: gateway.OpPatch, Err: fmt.Errorf("%s cannot be patched", ref.Kind.DisplayName())}
}

func (c *snapshotClient) Delete(ctx context.Context, ref resource.Ref) error {
	_, err := c.api.BeginDelete(ctx, ref.ResourceGroup, ref.Account, ref.Pool, ref.Volume, ref.Name, nil)
	return deleteError(ref, err)
}

type policyClient struct {
	api *armnetapp.SnapshotPoliciesClient
}

func (c *policyClient) Get(ctx context.Context, ref resource.Ref) (*gateway.Resource, error) {
	resp, err := c.api.Get(ctx, ref.ResourceGroup, ref.Account, ref.Name, nil)
	if err != nil {
		return nil, classify(gateway.OpGet, ref, err)
	}
	return policyResource(ref, resp.SnapshotPolicy), nil
}

// CreateOrUpdate uses the synchronous create call of the snapshot policy API.
func (c *policyClient) CreateOrUpdate(ctx context.Context, ref resource.Ref, spec ir.Spec) (*gateway.Resource, error) {
	resp, err := c.api.Create(ctx, ref.ResourceGroup, ref.Account, ref.Name, policyModel(spec.(*ir.SnapshotPolicySpec)), nil)
	if err != nil {
		return nil, classify(gateway.OpCreateOrUpdate, ref, err)
	}
	return policyResource(ref, resp.SnapshotPolicy), nil
}

func (c *policyClient) Patch(ctx context.Context, ref resource.Ref, patch ir.Patch) (*gateway.Resource, error) {
	poller, err := c.api.BeginUpdate(ctx, ref.ResourceGroup, ref.Account, ref.Name, policyPatchModel(patch.(*ir.SnapshotPolicyPatch)), nil)
	if err == nil {
		var resp armnetapp.SnapshotPoliciesClientUpdateResponse
		if resp, err = poller.PollUntilDone(ctx, nil); err == nil {
			return policyResource(ref, resp.SnapshotPolicy), nil
		}
	}
	return nil, classify(gateway.OpPatch, ref, err)
}

func (c *policyClient) Delete(ctx context.Context, ref resource.Ref) error {
	_, err := c.api.BeginDelete(ctx, ref.ResourceGroup, ref.Account, ref.Name, nil)
	return deleteError(ref, err)
}
