package resource

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sub = "00000000-1111-2222-3333-444444444444"
	rg  = "anf-rg"
)

func sampleRefs() []Ref {
	return []Ref{
		AccountRef(sub, rg, "acct"),
		PoolRef(sub, rg, "acct", "pool1"),
		VolumeRef(sub, rg, "acct", "pool1", "vol1"),
		SnapshotRef(sub, rg, "acct", "pool1", "vol1", "snap1"),
		SnapshotPolicyRef(sub, rg, "acct", "policy1"),
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		ref  Ref
		want string
	}{
		{AccountRef(sub, rg, "acct"), "/subscriptions/" + sub + "/resourceGroups/anf-rg/providers/Microsoft.NetApp/netAppAccounts/acct"},
		{PoolRef(sub, rg, "acct", "p"), "/subscriptions/" + sub + "/resourceGroups/anf-rg/providers/Microsoft.NetApp/netAppAccounts/acct/capacityPools/p"},
		{VolumeRef(sub, rg, "acct", "p", "v"), "/subscriptions/" + sub + "/resourceGroups/anf-rg/providers/Microsoft.NetApp/netAppAccounts/acct/capacityPools/p/volumes/v"},
		{SnapshotRef(sub, rg, "acct", "p", "v", "s"), "/subscriptions/" + sub + "/resourceGroups/anf-rg/providers/Microsoft.NetApp/netAppAccounts/acct/capacityPools/p/volumes/v/snapshots/s"},
		{SnapshotPolicyRef(sub, rg, "acct", "sp"), "/subscriptions/" + sub + "/resourceGroups/anf-rg/providers/Microsoft.NetApp/netAppAccounts/acct/snapshotPolicies/sp"},
	}

	for _, tt := range tests {
		t.Run(tt.ref.Kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.ref))
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	for _, ref := range sampleRefs() {
		t.Run(ref.Kind.String(), func(t *testing.T) {
			require.NoError(t, ref.Validate())

			parsed, err := Parse(Format(ref))
			require.NoError(t, err)
			if diff := cmp.Diff(ref, parsed); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_CaseInsensitiveKeys(t *testing.T) {
	raw := "/SUBSCRIPTIONS/" + sub + "/resourcegroups/anf-rg/providers/microsoft.netapp/NetAppAccounts/acct/CapacityPools/p/Volumes/v"

	ref, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, VolumeRef(sub, rg, "acct", "p", "v"), ref)
}

func TestParse_Malformed(t *testing.T) {
	base := "/subscriptions/" + sub + "/resourceGroups/anf-rg/providers/Microsoft.NetApp/netAppAccounts/acct"

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"no leading slash", "subscriptions/" + sub},
		{"missing account value", "/subscriptions/" + sub + "/resourceGroups/anf-rg/providers/Microsoft.NetApp/netAppAccounts"},
		{"trailing slash", base + "/"},
		{"double slash", "/subscriptions/" + sub + "//resourceGroups/anf-rg"},
		{"wrong provider", "/subscriptions/" + sub + "/resourceGroups/anf-rg/providers/Microsoft.Storage/netAppAccounts/acct"},
		{"unknown child", base + "/backups/b1"},
		{"volume without pool", base + "/volumes/v"},
		{"child of policy", base + "/snapshotPolicies/sp/volumes/v"},
		{"too deep", base + "/capacityPools/p/volumes/v/snapshots/s/extra/x"},
		{"snapshot under pool", base + "/capacityPools/p/snapshots/s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			require.Error(t, err)

			var malformed *MalformedIdentifierError
			require.True(t, errors.As(err, &malformed), "expected MalformedIdentifierError, got %T", err)
			assert.Equal(t, tt.raw, malformed.ID)
		})
	}
}

func TestRef_Parent(t *testing.T) {
	snap := SnapshotRef(sub, rg, "acct", "p", "v", "s")

	vol, ok := snap.Parent()
	require.True(t, ok)
	assert.Equal(t, VolumeRef(sub, rg, "acct", "p", "v"), vol)

	pool, ok := vol.Parent()
	require.True(t, ok)
	assert.Equal(t, PoolRef(sub, rg, "acct", "p"), pool)

	acct, ok := SnapshotPolicyRef(sub, rg, "acct", "sp").Parent()
	require.True(t, ok)
	assert.Equal(t, AccountRef(sub, rg, "acct"), acct)

	_, ok = acct.Parent()
	assert.False(t, ok)
}

func TestRef_Segments(t *testing.T) {
	assert.Equal(t, []string{rg, "acct"}, AccountRef(sub, rg, "acct").Segments())
	assert.Equal(t, []string{rg, "acct", "p", "v", "s"}, SnapshotRef(sub, rg, "acct", "p", "v", "s").Segments())
	assert.Equal(t, []string{rg, "acct", "sp"}, SnapshotPolicyRef(sub, rg, "acct", "sp").Segments())
	assert.Equal(t, "v", VolumeRef(sub, rg, "acct", "p", "v").LeafName())
}

func TestRef_Validate(t *testing.T) {
	tests := []struct {
		name string
		ref  Ref
	}{
		{"zero", Ref{}},
		{"missing pool", Ref{Kind: KindVolume, SubscriptionID: sub, ResourceGroup: rg, Account: "a", Volume: "v"}},
		{"stray pool on policy", Ref{Kind: KindSnapshotPolicy, SubscriptionID: sub, ResourceGroup: rg, Account: "a", Pool: "p", Name: "sp"}},
		{"slash in name", AccountRef(sub, rg, "a/b")},
		{"missing subscription", AccountRef("", rg, "a")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.ref.Validate())
		})
	}
}

func TestKind_TextRoundTrip(t *testing.T) {
	for _, k := range Kinds {
		b, err := k.MarshalText()
		require.NoError(t, err)

		var got Kind
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, k, got)
	}

	_, err := KindUnknown.MarshalText()
	assert.Error(t, err)
	_, err = ParseKind("bucket")
	assert.Error(t, err)
}

func TestFormat_EndsWithCollectionAndLeaf(t *testing.T) {
	for _, ref := range sampleRefs() {
		t.Run(ref.Kind.String(), func(t *testing.T) {
			require.NotEmpty(t, ref.Kind.collection())
			assert.True(t, strings.HasSuffix(Format(ref), "/"+ref.Kind.collection()+"/"+ref.LeafName()))
		})
	}
	assert.Empty(t, KindUnknown.collection())
}
