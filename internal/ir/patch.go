package ir

import (
	"fmt"
	"maps"

	"github.com/picklr-io/anfctl/internal/resource"
)

// Patch is a partial spec. Only non-nil fields are sent to the remote side.
type Patch interface {
	Kind() resource.Kind
	// Apply merges the patch onto a copy of base.
	Apply(base Spec) (Spec, error)
}

type AccountPatch struct {
	Tags map[string]string
}

func (*AccountPatch) Kind() resource.Kind { return resource.KindAccount }

func (p *AccountPatch) Apply(base Spec) (Spec, error) {
	spec, ok := CloneSpec(base).(*AccountSpec)
	if !ok {
		return nil, patchMismatch(p, base)
	}
	if p.Tags != nil {
		spec.Tags = maps.Clone(p.Tags)
	}
	return spec, nil
}

type SnapshotPolicyPatch struct {
	Location string
	Enabled  *bool
	Hourly   *HourlySchedule
	Daily    *DailySchedule
	Weekly   *WeeklySchedule
	Monthly  *MonthlySchedule
}

func (*SnapshotPolicyPatch) Kind() resource.Kind { return resource.KindSnapshotPolicy }

func (p *SnapshotPolicyPatch) Apply(base Spec) (Spec, error) {
	spec, ok := CloneSpec(base).(*SnapshotPolicySpec)
	if !ok {
		return nil, patchMismatch(p, base)
	}
	if p.Location != "" {
		spec.Location = p.Location
	}
	if p.Enabled != nil {
		spec.Enabled = *p.Enabled
	}
	patched := Schedules{Hourly: p.Hourly, Daily: p.Daily, Weekly: p.Weekly, Monthly: p.Monthly}.clone()
	if patched.Hourly != nil {
		spec.Hourly = patched.Hourly
	}
	if patched.Daily != nil {
		spec.Daily = patched.Daily
	}
	if patched.Weekly != nil {
		spec.Weekly = patched.Weekly
	}
	if patched.Monthly != nil {
		spec.Monthly = patched.Monthly
	}
	return spec, nil
}

type PoolPatch struct {
	SizeBytes *int64
}

func (*PoolPatch) Kind() resource.Kind { return resource.KindPool }

func (p *PoolPatch) Apply(base Spec) (Spec, error) {
	spec, ok := CloneSpec(base).(*PoolSpec)
	if !ok {
		return nil, patchMismatch(p, base)
	}
	if p.SizeBytes != nil {
		spec.SizeBytes = *p.SizeBytes
	}
	return spec, nil
}

type VolumePatch struct {
	UsageThresholdBytes *int64
	SnapshotPolicyID    *string
}

func (*VolumePatch) Kind() resource.Kind { return resource.KindVolume }

func (p *VolumePatch) Apply(base Spec) (Spec, error) {
	spec, ok := CloneSpec(base).(*VolumeSpec)
	if !ok {
		return nil, patchMismatch(p, base)
	}
	if p.UsageThresholdBytes != nil {
		spec.UsageThresholdBytes = *p.UsageThresholdBytes
	}
	if p.SnapshotPolicyID != nil {
		spec.SnapshotPolicyID = *p.SnapshotPolicyID
	}
	return spec, nil
}

func patchMismatch(p Patch, base Spec) error {
	if base == nil {
		return fmt.Errorf("cannot apply %s patch to nil spec", p.Kind())
	}
	return fmt.Errorf("cannot apply %s patch to %s spec", p.Kind(), base.Kind())
}
