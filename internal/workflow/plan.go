package workflow

import (
	"fmt"

	"github.com/picklr-io/anfctl/internal/engine"
	"github.com/picklr-io/anfctl/internal/ir"
	"github.com/picklr-io/anfctl/internal/resource"
)

// Refs are the addresses of every resource a config describes.
type Refs struct {
	Account        resource.Ref
	SnapshotPolicy resource.Ref
	Pool           resource.Ref
	Volume         resource.Ref
	// Snapshot is nil unless the config asks for an on-demand snapshot.
	Snapshot *resource.Ref
}

// RefsFor derives resource addresses from cfg.
func RefsFor(cfg *ir.Config) Refs {
	sub, rg, acct := cfg.SubscriptionID, cfg.ResourceGroup, cfg.AccountName
	refs := Refs{
		Account:        resource.AccountRef(sub, rg, acct),
		SnapshotPolicy: resource.SnapshotPolicyRef(sub, rg, acct, cfg.SnapshotPolicyName),
		Pool:           resource.PoolRef(sub, rg, acct, cfg.PoolName),
		Volume:         resource.VolumeRef(sub, rg, acct, cfg.PoolName, cfg.VolumeName),
	}
	if cfg.SnapshotName != "" {
		snap := resource.SnapshotRef(sub, rg, acct, cfg.PoolName, cfg.VolumeName, cfg.SnapshotName)
		refs.Snapshot = &snap
	}
	return refs
}

// SubnetID composes the delegated subnet identifier from names.
func SubnetID(cfg *ir.Config) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Network/virtualNetworks/%s/subnets/%s",
		cfg.SubscriptionID, cfg.ResourceGroup, cfg.VNetName, cfg.SubnetName)
}

// BuildPlan turns cfg into the resource graph: the account first, then the
// snapshot policy and the capacity pool, then the volume which references
// both, then the optional snapshot.
func BuildPlan(cfg *ir.Config, subnetID string) (*engine.Plan, Refs, error) {
	refs := RefsFor(cfg)
	policyRef := refs.SnapshotPolicy

	var schedules ir.Schedules
	if cfg.Schedules != nil {
		schedules = *cfg.Schedules
	}

	nodes := []*engine.Node{
		{
			Ref:  refs.Account,
			Spec: &ir.AccountSpec{Location: cfg.Location},
		},
		{
			Ref: refs.SnapshotPolicy,
			Spec: ir.CloneSpec(&ir.SnapshotPolicySpec{
				Location:  cfg.Location,
				Enabled:   true,
				Schedules: schedules,
			}),
		},
		{
			Ref: refs.Pool,
			Spec: &ir.PoolSpec{
				Location:     cfg.Location,
				ServiceLevel: cfg.ServiceLevel,
				SizeBytes:    cfg.PoolSizeBytes,
			},
		},
		{
			Ref: refs.Volume,
			Spec: &ir.VolumeSpec{
				Location:            cfg.Location,
				ServiceLevel:        cfg.ServiceLevel,
				CreationToken:       cfg.VolumeName,
				SubnetID:            subnetID,
				UsageThresholdBytes: cfg.VolumeSizeBytes,
				ProtocolTypes:       append([]string(nil), cfg.ProtocolTypes...),
				SnapshotPolicy:      &policyRef,
			},
			DependsOn: []resource.Ref{refs.SnapshotPolicy},
		},
	}
	if refs.Snapshot != nil {
		nodes = append(nodes, &engine.Node{
			Ref:  *refs.Snapshot,
			Spec: &ir.SnapshotSpec{Location: cfg.Location},
		})
	}

	plan, err := engine.NewPlan(nodes...)
	if err != nil {
		return nil, refs, &ConfigError{Err: err}
	}
	return plan, refs, nil
}
