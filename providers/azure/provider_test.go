package azure

import (
	"context"
	"net/http"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	azfake "github.com/Azure/azure-sdk-for-go/sdk/azcore/fake"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/netapp/armnetapp/v7"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/netapp/armnetapp/v7/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picklr-io/anfctl/internal/gateway"
	"github.com/picklr-io/anfctl/internal/ir"
	"github.com/picklr-io/anfctl/internal/resource"
)

func newFakeProvider(t *testing.T, srv *fake.ServerFactory) *Provider {
	t.Helper()
	opts := &arm.ClientOptions{
		ClientOptions: azcore.ClientOptions{Transport: fake.NewServerFactoryTransport(srv)},
	}
	p, err := New("sub", &azfake.TokenCredential{}, opts)
	require.NoError(t, err)
	return p
}

func TestNew_RequiresSubscription(t *testing.T) {
	_, err := New("", &azfake.TokenCredential{}, nil)
	assert.Error(t, err)
}

func TestProvider_GetMissingPolicy(t *testing.T) {
	p := newFakeProvider(t, &fake.ServerFactory{
		SnapshotPoliciesServer: fake.SnapshotPoliciesServer{
			Get: func(_ context.Context, rg, account, policy string, _ *armnetapp.SnapshotPoliciesClientGetOptions) (resp azfake.Responder[armnetapp.SnapshotPoliciesClientGetResponse], errResp azfake.ErrorResponder) {
				errResp.SetResponseError(http.StatusNotFound, "ResourceNotFound")
				return
			},
		},
	})

	_, err := p.Get(context.Background(), testPolicyRef)
	require.Error(t, err)
	assert.True(t, gateway.IsNotFound(err))
}

func TestProvider_CreatePolicy(t *testing.T) {
	var got armnetapp.SnapshotPolicy
	p := newFakeProvider(t, &fake.ServerFactory{
		SnapshotPoliciesServer: fake.SnapshotPoliciesServer{
			Create: func(_ context.Context, rg, account, policy string, body armnetapp.SnapshotPolicy, _ *armnetapp.SnapshotPoliciesClientCreateOptions) (resp azfake.Responder[armnetapp.SnapshotPoliciesClientCreateResponse], errResp azfake.ErrorResponder) {
				assert.Equal(t, "rg", rg)
				assert.Equal(t, "acct", account)
				assert.Equal(t, "policy", policy)
				got = body
				body.ID = to.Ptr(resource.Format(testPolicyRef))
				body.Properties.ProvisioningState = to.Ptr("Succeeded")
				resp.SetResponse(http.StatusCreated, armnetapp.SnapshotPoliciesClientCreateResponse{SnapshotPolicy: body}, nil)
				return
			},
		},
	})

	spec := &ir.SnapshotPolicySpec{Location: "westus2", Enabled: true, Schedules: *ir.DefaultSchedules()}
	res, err := p.CreateOrUpdate(context.Background(), testPolicyRef, spec)
	require.NoError(t, err)

	assert.Equal(t, "Succeeded", res.ProvisioningState)
	assert.Equal(t, resource.Format(testPolicyRef), res.ID)
	assert.Equal(t, int32(5), *got.Properties.HourlySchedule.SnapshotsToKeep)
	assert.True(t, *got.Properties.Enabled)
}

func TestProvider_DeleteReturnsOnAcceptance(t *testing.T) {
	ref := resource.PoolRef("sub", "rg", "acct", "pool")
	calls := 0
	p := newFakeProvider(t, &fake.ServerFactory{
		PoolsServer: fake.PoolsServer{
			BeginDelete: func(_ context.Context, rg, account, pool string, _ *armnetapp.PoolsClientBeginDeleteOptions) (resp azfake.PollerResponder[armnetapp.PoolsClientDeleteResponse], errResp azfake.ErrorResponder) {
				calls++
				resp.AddNonTerminalResponse(http.StatusAccepted, nil)
				resp.SetTerminalResponse(http.StatusOK, armnetapp.PoolsClientDeleteResponse{}, nil)
				return
			},
		},
	})

	require.NoError(t, p.Delete(context.Background(), ref))
	assert.Equal(t, 1, calls)
}

func TestProvider_DeleteConflict(t *testing.T) {
	p := newFakeProvider(t, &fake.ServerFactory{
		PoolsServer: fake.PoolsServer{
			BeginDelete: func(_ context.Context, rg, account, pool string, _ *armnetapp.PoolsClientBeginDeleteOptions) (resp azfake.PollerResponder[armnetapp.PoolsClientDeleteResponse], errResp azfake.ErrorResponder) {
				errResp.SetResponseError(http.StatusConflict, "CannotDeleteResource")
				return
			},
		},
	})

	err := p.Delete(context.Background(), resource.PoolRef("sub", "rg", "acct", "pool"))
	var gwErr *gateway.Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusConflict, gwErr.StatusCode)
	assert.Equal(t, "CannotDeleteResource", gwErr.Code)
	assert.False(t, gwErr.Transient)
}

func TestProvider_SnapshotPatchUnsupported(t *testing.T) {
	p := newFakeProvider(t, &fake.ServerFactory{})
	ref := resource.SnapshotRef("sub", "rg", "acct", "pool", "vol", "snap")

	_, err := p.Patch(context.Background(), ref, &ir.PoolPatch{})
	require.Error(t, err, "dispatcher rejects a mismatched patch")
}
