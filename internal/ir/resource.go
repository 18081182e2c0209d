package ir

import (
	"maps"
	"slices"

	"github.com/picklr-io/anfctl/internal/resource"
)

// Spec is the desired representation of a resource handed to a gateway on
// creation. Each kind has exactly one Spec type.
type Spec interface {
	Kind() resource.Kind
}

// DependencyBinder is implemented by specs that embed identifiers of other
// resources. The orchestrator calls it with the remote IDs of already
// ensured resources before creating the node.
type DependencyBinder interface {
	BindDependencies(ids map[resource.Ref]string) Spec
}

type AccountSpec struct {
	Location string            `yaml:"location"`
	Tags     map[string]string `yaml:"tags,omitempty"`
}

func (*AccountSpec) Kind() resource.Kind { return resource.KindAccount }

type HourlySchedule struct {
	SnapshotsToKeep int32 `pkl:"snapshotsToKeep" yaml:"snapshotsToKeep"`
	Minute          int32 `pkl:"minute" yaml:"minute"`
}

type DailySchedule struct {
	SnapshotsToKeep int32 `pkl:"snapshotsToKeep" yaml:"snapshotsToKeep"`
	Hour            int32 `pkl:"hour" yaml:"hour"`
	Minute          int32 `pkl:"minute" yaml:"minute"`
}

type WeeklySchedule struct {
	SnapshotsToKeep int32  `pkl:"snapshotsToKeep" yaml:"snapshotsToKeep"`
	Day             string `pkl:"day" yaml:"day"`
	Hour            int32  `pkl:"hour" yaml:"hour"`
	Minute          int32  `pkl:"minute" yaml:"minute"`
}

type MonthlySchedule struct {
	SnapshotsToKeep int32  `pkl:"snapshotsToKeep" yaml:"snapshotsToKeep"`
	DaysOfMonth     string `pkl:"daysOfMonth" yaml:"daysOfMonth"`
	Hour            int32  `pkl:"hour" yaml:"hour"`
	Minute          int32  `pkl:"minute" yaml:"minute"`
}

// Schedules groups the four snapshot policy schedules. A nil schedule is
// left unset on the remote policy.
type Schedules struct {
	Hourly  *HourlySchedule  `pkl:"hourly" yaml:"hourly,omitempty"`
	Daily   *DailySchedule   `pkl:"daily" yaml:"daily,omitempty"`
	Weekly  *WeeklySchedule  `pkl:"weekly" yaml:"weekly,omitempty"`
	Monthly *MonthlySchedule `pkl:"monthly" yaml:"monthly,omitempty"`
}

type SnapshotPolicySpec struct {
	Location  string `yaml:"location"`
	Enabled   bool   `yaml:"enabled"`
	Schedules `yaml:",inline"`
}

func (*SnapshotPolicySpec) Kind() resource.Kind { return resource.KindSnapshotPolicy }

type PoolSpec struct {
	Location     string `yaml:"location"`
	ServiceLevel string `yaml:"serviceLevel"`
	SizeBytes    int64  `yaml:"sizeBytes"`
}

func (*PoolSpec) Kind() resource.Kind { return resource.KindPool }

type VolumeSpec struct {
	Location            string   `yaml:"location"`
	ServiceLevel        string   `yaml:"serviceLevel"`
	CreationToken       string   `yaml:"creationToken"`
	SubnetID            string   `yaml:"subnetId"`
	UsageThresholdBytes int64    `yaml:"usageThresholdBytes"`
	ProtocolTypes       []string `yaml:"protocolTypes"`

	// SnapshotPolicy names the policy to attach. Its remote ID is filled
	// into SnapshotPolicyID by BindDependencies.
	SnapshotPolicy   *resource.Ref `yaml:"-"`
	SnapshotPolicyID string        `yaml:"snapshotPolicyId,omitempty"`
}

func (*VolumeSpec) Kind() resource.Kind { return resource.KindVolume }

// BindDependencies returns a copy of s with SnapshotPolicyID set from
// the ID recorded for SnapshotPolicy. An unresolved policy keeps any ID the
// spec already had.
func (s *VolumeSpec) BindDependencies(ids map[resource.Ref]string) Spec {
	out := *s
	out.ProtocolTypes = slices.Clone(s.ProtocolTypes)
	if s.SnapshotPolicy != nil {
		if id, ok := ids[*s.SnapshotPolicy]; ok {
			out.SnapshotPolicyID = id
		}
	}
	return &out
}

type SnapshotSpec struct {
	Location string `yaml:"location"`
}

func (*SnapshotSpec) Kind() resource.Kind { return resource.KindSnapshot }

// CloneSpec returns a deep copy of a spec.
func CloneSpec(s Spec) Spec {
	switch v := s.(type) {
	case *AccountSpec:
		out := *v
		out.Tags = maps.Clone(v.Tags)
		return &out
	case *SnapshotPolicySpec:
		out := *v
		out.Schedules = v.Schedules.clone()
		return &out
	case *PoolSpec:
		out := *v
		return &out
	case *VolumeSpec:
		out := *v
		out.ProtocolTypes = slices.Clone(v.ProtocolTypes)
		if v.SnapshotPolicy != nil {
			ref := *v.SnapshotPolicy
			out.SnapshotPolicy = &ref
		}
		return &out
	case *SnapshotSpec:
		out := *v
		return &out
	default:
		return s
	}
}

func (s Schedules) clone() Schedules {
	var out Schedules
	if s.Hourly != nil {
		h := *s.Hourly
		out.Hourly = &h
	}
	if s.Daily != nil {
		d := *s.Daily
		out.Daily = &d
	}
	if s.Weekly != nil {
		w := *s.Weekly
		out.Weekly = &w
	}
	if s.Monthly != nil {
		m := *s.Monthly
		out.Monthly = &m
	}
	return out
}
