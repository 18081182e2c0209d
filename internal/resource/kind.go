package resource

import (
	"fmt"
	"strings"
)

// Kind identifies one of the Azure NetApp Files resource types managed here.
type Kind int

const (
	KindUnknown Kind = iota
	KindAccount
	KindPool
	KindVolume
	KindSnapshot
	KindSnapshotPolicy
)

// Kinds lists every known kind in hierarchy order.
var Kinds = []Kind{KindAccount, KindSnapshotPolicy, KindPool, KindVolume, KindSnapshot}

func (k Kind) String() string {
	switch k {
	case KindAccount:
		return "account"
	case KindPool:
		return "pool"
	case KindVolume:
		return "volume"
	case KindSnapshot:
		return "snapshot"
	case KindSnapshotPolicy:
		return "snapshotPolicy"
	default:
		return "unknown"
	}
}

// DisplayName is the human readable form used in console output.
func (k Kind) DisplayName() string {
	switch k {
	case KindAccount:
		return "Account"
	case KindPool:
		return "Capacity Pool"
	case KindVolume:
		return "Volume"
	case KindSnapshot:
		return "Snapshot"
	case KindSnapshotPolicy:
		return "Snapshot Policy"
	default:
		return "Unknown"
	}
}

// ParseKind maps the output of Kind.String back to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(k.String(), s) {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown resource kind %q", s)
}

// MarshalText lets Kind appear as a string in YAML and JSON documents.
func (k Kind) MarshalText() ([]byte, error) {
	if k == KindUnknown {
		return nil, fmt.Errorf("cannot marshal unknown resource kind")
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// collection returns the ARM path key under which resources of this kind live.
func (k Kind) collection() string {
	switch k {
	case KindAccount:
		return "netAppAccounts"
	case KindPool:
		return "capacityPools"
	case KindVolume:
		return "volumes"
	case KindSnapshot:
		return "snapshots"
	case KindSnapshotPolicy:
		return "snapshotPolicies"
	default:
		return ""
	}
}

// depth is the number of name segments below the resource group.
func (k Kind) depth() int {
	switch k {
	case KindAccount:
		return 1
	case KindPool, KindSnapshotPolicy:
		return 2
	case KindVolume:
		return 3
	case KindSnapshot:
		return 4
	default:
		return 0
	}
}
