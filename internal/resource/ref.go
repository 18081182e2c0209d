package resource

import (
	"fmt"
	"strings"
)

const providerNamespace = "Microsoft.NetApp"

// Ref is the hierarchical address of a NetApp resource. The zero value is
// invalid. Refs are comparable and can be used as map keys.
type Ref struct {
	Kind           Kind
	SubscriptionID string
	ResourceGroup  string
	Account        string
	Pool           string
	Volume         string
	// Name is the leaf segment of snapshots and snapshot policies.
	Name string
}

// MalformedIdentifierError is returned when a raw identifier does not match
// the segment schema of any known kind.
type MalformedIdentifierError struct {
	ID     string
	Reason string
}

func (e *MalformedIdentifierError) Error() string {
	return fmt.Sprintf("malformed resource identifier %q: %s", e.ID, e.Reason)
}

func AccountRef(subscriptionID, resourceGroup, account string) Ref {
	return Ref{Kind: KindAccount, SubscriptionID: subscriptionID, ResourceGroup: resourceGroup, Account: account}
}

func PoolRef(subscriptionID, resourceGroup, account, pool string) Ref {
	return Ref{Kind: KindPool, SubscriptionID: subscriptionID, ResourceGroup: resourceGroup, Account: account, Pool: pool}
}

func VolumeRef(subscriptionID, resourceGroup, account, pool, volume string) Ref {
	return Ref{Kind: KindVolume, SubscriptionID: subscriptionID, ResourceGroup: resourceGroup, Account: account, Pool: pool, Volume: volume}
}

func SnapshotRef(subscriptionID, resourceGroup, account, pool, volume, snapshot string) Ref {
	return Ref{Kind: KindSnapshot, SubscriptionID: subscriptionID, ResourceGroup: resourceGroup, Account: account, Pool: pool, Volume: volume, Name: snapshot}
}

func SnapshotPolicyRef(subscriptionID, resourceGroup, account, policy string) Ref {
	return Ref{Kind: KindSnapshotPolicy, SubscriptionID: subscriptionID, ResourceGroup: resourceGroup, Account: account, Name: policy}
}

// Segments returns the ordered name segments below the subscription:
// resource group, account, then pool, volume and leaf as the kind requires.
func (r Ref) Segments() []string {
	segs := []string{r.ResourceGroup, r.Account}
	switch r.Kind {
	case KindPool:
		segs = append(segs, r.Pool)
	case KindVolume:
		segs = append(segs, r.Pool, r.Volume)
	case KindSnapshot:
		segs = append(segs, r.Pool, r.Volume, r.Name)
	case KindSnapshotPolicy:
		segs = append(segs, r.Name)
	}
	return segs
}

// LeafName is the name of the addressed resource itself.
func (r Ref) LeafName() string {
	segs := r.Segments()
	return segs[len(segs)-1]
}

// Parent returns the ref of the containing resource. Accounts have no
// parent and return false.
func (r Ref) Parent() (Ref, bool) {
	switch r.Kind {
	case KindPool, KindSnapshotPolicy:
		return AccountRef(r.SubscriptionID, r.ResourceGroup, r.Account), true
	case KindVolume:
		return PoolRef(r.SubscriptionID, r.ResourceGroup, r.Account, r.Pool), true
	case KindSnapshot:
		return VolumeRef(r.SubscriptionID, r.ResourceGroup, r.Account, r.Pool, r.Volume), true
	default:
		return Ref{}, false
	}
}

// Validate checks that the ref carries exactly the segments its kind needs.
func (r Ref) Validate() error {
	if r.Kind.depth() == 0 {
		return fmt.Errorf("invalid resource ref: unknown kind")
	}
	if err := checkName("subscription", r.SubscriptionID); err != nil {
		return err
	}
	if err := checkName("resource group", r.ResourceGroup); err != nil {
		return err
	}
	if err := checkName("account", r.Account); err != nil {
		return err
	}

	needPool := r.Kind == KindPool || r.Kind == KindVolume || r.Kind == KindSnapshot
	needVolume := r.Kind == KindVolume || r.Kind == KindSnapshot
	needName := r.Kind == KindSnapshot || r.Kind == KindSnapshotPolicy

	for _, f := range []struct {
		label string
		value string
		need  bool
	}{
		{"pool", r.Pool, needPool},
		{"volume", r.Volume, needVolume},
		{"name", r.Name, needName},
	} {
		if f.need {
			if err := checkName(f.label, f.value); err != nil {
				return err
			}
		} else if f.value != "" {
			return fmt.Errorf("invalid %s ref: unexpected %s segment %q", r.Kind, f.label, f.value)
		}
	}
	return nil
}

func (r Ref) String() string {
	return Format(r)
}

func checkName(label, v string) error {
	if v == "" {
		return fmt.Errorf("invalid resource ref: empty %s segment", label)
	}
	if strings.Contains(v, "/") {
		return fmt.Errorf("invalid resource ref: %s segment %q contains '/'", label, v)
	}
	return nil
}

// Format renders r as a canonical ARM resource identifier: the parent's
// identifier followed by the kind's collection key and the leaf name.
func Format(r Ref) string {
	if parent, ok := r.Parent(); ok {
		return Format(parent) + "/" + r.Kind.collection() + "/" + r.LeafName()
	}
	return "/subscriptions/" + r.SubscriptionID +
		"/resourceGroups/" + r.ResourceGroup +
		"/providers/" + providerNamespace +
		"/" + KindAccount.collection() + "/" + r.Account
}

// Parse decodes an ARM resource identifier. Path keys are matched without
// regard to case since the management plane does not always preserve it.
func Parse(raw string) (Ref, error) {
	malformed := func(format string, args ...any) (Ref, error) {
		return Ref{}, &MalformedIdentifierError{ID: raw, Reason: fmt.Sprintf(format, args...)}
	}

	if !strings.HasPrefix(raw, "/") {
		return malformed("must start with '/'")
	}
	parts := strings.Split(raw[1:], "/")
	for i, p := range parts {
		if p == "" {
			return malformed("empty segment at position %d", i)
		}
	}
	if len(parts)%2 != 0 {
		return malformed("segment %q has no value", parts[len(parts)-1])
	}

	pairs := make([][2]string, 0, len(parts)/2)
	for i := 0; i < len(parts); i += 2 {
		pairs = append(pairs, [2]string{parts[i], parts[i+1]})
	}

	expect := func(i int, key string) bool {
		return i < len(pairs) && strings.EqualFold(pairs[i][0], key)
	}

	if !expect(0, "subscriptions") {
		return malformed("expected 'subscriptions' segment")
	}
	if !expect(1, "resourceGroups") {
		return malformed("expected 'resourceGroups' segment")
	}
	if !expect(2, "providers") || !strings.EqualFold(pairs[2][1], providerNamespace) {
		return malformed("expected provider %s", providerNamespace)
	}
	if !expect(3, KindAccount.collection()) {
		return malformed("expected 'netAppAccounts' segment")
	}

	ref := Ref{
		Kind:           KindAccount,
		SubscriptionID: pairs[0][1],
		ResourceGroup:  pairs[1][1],
		Account:        pairs[3][1],
	}

	rest := pairs[4:]
	switch {
	case len(rest) == 0:
	case strings.EqualFold(rest[0][0], KindSnapshotPolicy.collection()):
		if len(rest) > 1 {
			return malformed("unexpected segment %q below snapshot policy", rest[1][0])
		}
		ref.Kind = KindSnapshotPolicy
		ref.Name = rest[0][1]
	case strings.EqualFold(rest[0][0], KindPool.collection()):
		ref.Kind = KindPool
		ref.Pool = rest[0][1]
		if len(rest) > 1 {
			if !strings.EqualFold(rest[1][0], KindVolume.collection()) {
				return malformed("unexpected segment %q below capacity pool", rest[1][0])
			}
			ref.Kind = KindVolume
			ref.Volume = rest[1][1]
		}
		if len(rest) > 2 {
			if !strings.EqualFold(rest[2][0], KindSnapshot.collection()) {
				return malformed("unexpected segment %q below volume", rest[2][0])
			}
			ref.Kind = KindSnapshot
			ref.Name = rest[2][1]
		}
		if len(rest) > 3 {
			return malformed("unexpected segment %q below snapshot", rest[3][0])
		}
	default:
		return malformed("unknown child collection %q", rest[0][0])
	}

	if err := ref.Validate(); err != nil {
		return malformed("%v", err)
	}
	return ref, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// constant identifiers.
func MustParse(raw string) Ref {
	ref, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return ref
}
