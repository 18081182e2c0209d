// Package azure implements the gateway against the Azure Resource Manager
// NetApp Files API.
package azure

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/netapp/armnetapp/v7"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"

	"github.com/picklr-io/anfctl/internal/gateway"
	"github.com/picklr-io/anfctl/internal/resource"
)

// Provider routes gateway calls to one ARM client per resource kind and
// answers preflight questions about the surrounding environment.
type Provider struct {
	*gateway.Dispatcher
	groups  *armresources.ResourceGroupsClient
	subnets *armnetwork.SubnetsClient
}

// NewFromEnvironment authenticates with the default Azure credential chain
// (environment, workload identity, managed identity, Azure CLI).
func NewFromEnvironment(subscriptionID string) (*Provider, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain Azure credential: %w", err)
	}
	return New(subscriptionID, cred, nil)
}

func New(subscriptionID string, cred azcore.TokenCredential, opts *arm.ClientOptions) (*Provider, error) {
	if subscriptionID == "" {
		return nil, errors.New("subscription ID is required")
	}

	factory, err := armnetapp.NewClientFactory(subscriptionID, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create NetApp client factory: %w", err)
	}
	groups, err := armresources.NewResourceGroupsClient(subscriptionID, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource groups client: %w", err)
	}
	subnets, err := armnetwork.NewSubnetsClient(subscriptionID, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create subnets client: %w", err)
	}

	return &Provider{
		Dispatcher: gateway.NewDispatcher(map[resource.Kind]gateway.KindClient{
			resource.KindAccount:        &accountClient{api: factory.NewAccountsClient()},
			resource.KindPool:           &poolClient{api: factory.NewPoolsClient()},
			resource.KindVolume:         &volumeClient{api: factory.NewVolumesClient()},
			resource.KindSnapshot:       &snapshotClient{api: factory.NewSnapshotsClient()},
			resource.KindSnapshotPolicy: &policyClient{api: factory.NewSnapshotPoliciesClient()},
		}),
		groups:  groups,
		subnets: subnets,
	}, nil
}

// CheckResourceGroup fails when the resource group does not exist.
func (p *Provider) CheckResourceGroup(ctx context.Context, name string) error {
	resp, err := p.groups.CheckExistence(ctx, name, nil)
	if err != nil {
		return preflightError(gateway.OpCheckResourceGroup, fmt.Sprintf("resource group %q", name), err)
	}
	if !resp.Success {
		return fmt.Errorf("resource group %q: %w", name, gateway.ErrNotFound)
	}
	return nil
}

// ResolveSubnetID looks up the delegated subnet and returns its identifier.
func (p *Provider) ResolveSubnetID(ctx context.Context, _, resourceGroup, vnet, subnet string) (string, error) {
	resp, err := p.subnets.Get(ctx, resourceGroup, vnet, subnet, nil)
	if err != nil {
		return "", preflightError(gateway.OpResolveSubnet, fmt.Sprintf("subnet %s in virtual network %s", subnet, vnet), err)
	}
	if resp.ID == nil {
		return "", fmt.Errorf("subnet %s has no identifier", subnet)
	}
	return *resp.ID, nil
}
