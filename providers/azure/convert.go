package azure

import (
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/netapp/armnetapp/v7"

	"github.com/picklr-io/anfctl/internal/gateway"
	"github.com/picklr-io/anfctl/internal/ir"
	"github.com/picklr-io/anfctl/internal/resource"
)

func value[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func tagsModel(tags map[string]string) map[string]*string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]*string, len(tags))
	for k, v := range tags {
		out[k] = to.Ptr(v)
	}
	return out
}

func tagsFromModel(tags map[string]*string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = value(v)
	}
	return out
}

func newResource(ref resource.Ref, id, location *string, state *string, spec ir.Spec) *gateway.Resource {
	res := &gateway.Resource{
		Ref:               ref,
		ID:                value(id),
		Location:          value(location),
		ProvisioningState: value(state),
		Spec:              spec,
	}
	if res.ID == "" {
		res.ID = resource.Format(ref)
	}
	return res
}

// Accounts

func accountModel(spec *ir.AccountSpec) armnetapp.Account {
	return armnetapp.Account{
		Location: to.Ptr(spec.Location),
		Tags:     tagsModel(spec.Tags),
	}
}

func accountPatchModel(p *ir.AccountPatch) armnetapp.AccountPatch {
	return armnetapp.AccountPatch{Tags: tagsModel(p.Tags)}
}

func accountResource(ref resource.Ref, a armnetapp.Account) *gateway.Resource {
	var state *string
	if a.Properties != nil {
		state = a.Properties.ProvisioningState
	}
	spec := &ir.AccountSpec{Location: value(a.Location), Tags: tagsFromModel(a.Tags)}
	return newResource(ref, a.ID, a.Location, state, spec)
}

// Capacity pools

func poolModel(spec *ir.PoolSpec) armnetapp.CapacityPool {
	return armnetapp.CapacityPool{
		Location: to.Ptr(spec.Location),
		Properties: &armnetapp.PoolProperties{
			ServiceLevel: to.Ptr(armnetapp.ServiceLevel(spec.ServiceLevel)),
			Size:         to.Ptr(spec.SizeBytes),
		},
	}
}

func poolPatchModel(p *ir.PoolPatch) armnetapp.CapacityPoolPatch {
	return armnetapp.CapacityPoolPatch{
		Properties: &armnetapp.PoolPatchProperties{Size: p.SizeBytes},
	}
}

func poolResource(ref resource.Ref, cp armnetapp.CapacityPool) *gateway.Resource {
	spec := &ir.PoolSpec{Location: value(cp.Location)}
	var state *string
	if props := cp.Properties; props != nil {
		spec.ServiceLevel = string(value(props.ServiceLevel))
		spec.SizeBytes = value(props.Size)
		state = props.ProvisioningState
	}
	return newResource(ref, cp.ID, cp.Location, state, spec)
}

// Volumes

func volumeModel(spec *ir.VolumeSpec) armnetapp.Volume {
	props := &armnetapp.VolumeProperties{
		CreationToken:  to.Ptr(spec.CreationToken),
		SubnetID:       to.Ptr(spec.SubnetID),
		UsageThreshold: to.Ptr(spec.UsageThresholdBytes),
		ProtocolTypes:  to.SliceOfPtrs(spec.ProtocolTypes...),
	}
	if spec.ServiceLevel != "" {
		props.ServiceLevel = to.Ptr(armnetapp.ServiceLevel(spec.ServiceLevel))
	}
	if spec.SnapshotPolicyID != "" {
		props.DataProtection = &armnetapp.VolumePropertiesDataProtection{
			Snapshot: &armnetapp.VolumeSnapshotProperties{SnapshotPolicyID: to.Ptr(spec.SnapshotPolicyID)},
		}
	}
	return armnetapp.Volume{
		Location:   to.Ptr(spec.Location),
		Properties: props,
	}
}

func volumePatchModel(p *ir.VolumePatch) armnetapp.VolumePatch {
	props := &armnetapp.VolumePatchProperties{UsageThreshold: p.UsageThresholdBytes}
	if p.SnapshotPolicyID != nil {
		props.DataProtection = &armnetapp.VolumePatchPropertiesDataProtection{
			Snapshot: &armnetapp.VolumeSnapshotProperties{SnapshotPolicyID: p.SnapshotPolicyID},
		}
	}
	return armnetapp.VolumePatch{Properties: props}
}

func volumeResource(ref resource.Ref, v armnetapp.Volume) *gateway.Resource {
	spec := &ir.VolumeSpec{Location: value(v.Location)}
	var state *string
	if props := v.Properties; props != nil {
		spec.ServiceLevel = string(value(props.ServiceLevel))
		spec.CreationToken = value(props.CreationToken)
		spec.SubnetID = value(props.SubnetID)
		spec.UsageThresholdBytes = value(props.UsageThreshold)
		for _, p := range props.ProtocolTypes {
			spec.ProtocolTypes = append(spec.ProtocolTypes, value(p))
		}
		if dp := props.DataProtection; dp != nil && dp.Snapshot != nil {
			spec.SnapshotPolicyID = value(dp.Snapshot.SnapshotPolicyID)
		}
		state = props.ProvisioningState
	}
	return newResource(ref, v.ID, v.Location, state, spec)
}

// Snapshots

func snapshotModel(spec *ir.SnapshotSpec) armnetapp.Snapshot {
	return armnetapp.Snapshot{Location: to.Ptr(spec.Location)}
}

func snapshotResource(ref resource.Ref, s armnetapp.Snapshot) *gateway.Resource {
	var state *string
	if s.Properties != nil {
		state = s.Properties.ProvisioningState
	}
	return newResource(ref, s.ID, s.Location, state, &ir.SnapshotSpec{Location: value(s.Location)})
}

// Snapshot policies

func policyModel(spec *ir.SnapshotPolicySpec) armnetapp.SnapshotPolicy {
	props := schedulesModel(spec.Schedules)
	props.Enabled = to.Ptr(spec.Enabled)
	return armnetapp.SnapshotPolicy{
		Location:   to.Ptr(spec.Location),
		Properties: props,
	}
}

func policyPatchModel(p *ir.SnapshotPolicyPatch) armnetapp.SnapshotPolicyPatch {
	props := schedulesModel(ir.Schedules{Hourly: p.Hourly, Daily: p.Daily, Weekly: p.Weekly, Monthly: p.Monthly})
	props.Enabled = p.Enabled
	patch := armnetapp.SnapshotPolicyPatch{Properties: props}
	if p.Location != "" {
		patch.Location = to.Ptr(p.Location)
	}
	return patch
}

func schedulesModel(s ir.Schedules) *armnetapp.SnapshotPolicyProperties {
	props := &armnetapp.SnapshotPolicyProperties{}
	if h := s.Hourly; h != nil {
		props.HourlySchedule = &armnetapp.HourlySchedule{
			SnapshotsToKeep: to.Ptr(h.SnapshotsToKeep),
			Minute:          to.Ptr(h.Minute),
		}
	}
	if d := s.Daily; d != nil {
		props.DailySchedule = &armnetapp.DailySchedule{
			SnapshotsToKeep: to.Ptr(d.SnapshotsToKeep),
			Hour:            to.Ptr(d.Hour),
			Minute:          to.Ptr(d.Minute),
		}
	}
	if w := s.Weekly; w != nil {
		props.WeeklySchedule = &armnetapp.WeeklySchedule{
			SnapshotsToKeep: to.Ptr(w.SnapshotsToKeep),
			Day:             to.Ptr(w.Day),
			Hour:            to.Ptr(w.Hour),
			Minute:          to.Ptr(w.Minute),
		}
	}
	if m := s.Monthly; m != nil {
		props.MonthlySchedule = &armnetapp.MonthlySchedule{
			SnapshotsToKeep: to.Ptr(m.SnapshotsToKeep),
			DaysOfMonth:     to.Ptr(m.DaysOfMonth),
			Hour:            to.Ptr(m.Hour),
			Minute:          to.Ptr(m.Minute),
		}
	}
	return props
}

func policyResource(ref resource.Ref, sp armnetapp.SnapshotPolicy) *gateway.Resource {
	spec := &ir.SnapshotPolicySpec{Location: value(sp.Location)}
	var state *string
	if props := sp.Properties; props != nil {
		spec.Enabled = value(props.Enabled)
		state = props.ProvisioningState
		if h := props.HourlySchedule; h != nil {
			spec.Hourly = &ir.HourlySchedule{SnapshotsToKeep: value(h.SnapshotsToKeep), Minute: value(h.Minute)}
		}
		if d := props.DailySchedule; d != nil {
			spec.Daily = &ir.DailySchedule{SnapshotsToKeep: value(d.SnapshotsToKeep), Hour: value(d.Hour), Minute: value(d.Minute)}
		}
		if w := props.WeeklySchedule; w != nil {
			spec.Weekly = &ir.WeeklySchedule{SnapshotsToKeep: value(w.SnapshotsToKeep), Day: value(w.Day), Hour: value(w.Hour), Minute: value(w.Minute)}
		}
		if m := props.MonthlySchedule; m != nil {
			spec.Monthly = &ir.MonthlySchedule{SnapshotsToKeep: value(m.SnapshotsToKeep), DaysOfMonth: value(m.DaysOfMonth), Hour: value(m.Hour), Minute: value(m.Minute)}
		}
	}
	return newResource(ref, sp.ID, sp.Location, state, spec)
}
