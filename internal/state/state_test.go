package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picklr-io/anfctl/internal/ir"
	"github.com/picklr-io/anfctl/internal/resource"
)

func sampleLedger() *ir.Ledger {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &ir.Ledger{
		Version: 1,
		Serial:  3,
		Lineage: "7f1c7d1e-2b7a-4a8f-9d1f-3b0e6c9a1d42",
		LastRun: &ir.RunRecord{
			ID:         "run-1",
			Command:    "run",
			StartedAt:  at,
			FinishedAt: at.Add(time.Minute),
			Succeeded:  true,
		},
		Resources: []*ir.ResourceRecord{
			{
				Kind:      resource.KindAccount,
				ID:        "/subscriptions/sub/resourceGroups/rg/providers/Microsoft.NetApp/netAppAccounts/acct",
				State:     "Created",
				UpdatedAt: at,
			},
			{
				Kind:      resource.KindSnapshotPolicy,
				ID:        "/subscriptions/sub/resourceGroups/rg/providers/Microsoft.NetApp/netAppAccounts/acct/snapshotPolicies/policy",
				State:     "UpdateApplied",
				UpdatedAt: at,
			},
		},
	}
}

func TestManager_ReadWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.yaml")
	mgr := NewManager(path)
	ctx := context.Background()

	l, err := mgr.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Version)
	assert.Equal(t, 0, l.Serial)

	want := sampleLedger()
	require.NoError(t, mgr.Write(ctx, want))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# anfctl run ledger")
	assert.Contains(t, string(content), "kind: snapshotPolicy")
	assert.Contains(t, string(content), "state: UpdateApplied")

	got, err := mgr.Read(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ledger mismatch (-want +got):\n%s", diff)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestManager_Encrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	ctx := context.Background()

	require.NoError(t, NewManager(path, WithEncryptionKey("secret")).Write(ctx, sampleLedger()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, IsEncrypted(raw))
	assert.NotContains(t, string(raw), "UpdateApplied")

	got, err := NewManager(path, WithEncryptionKey("secret")).Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Serial)

	_, err = NewManager(path).Read(ctx)
	assert.ErrorIs(t, err, ErrNoEncryptionKey)
}

func TestManager_CorruptLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte("resources: [unterminated"), 0o644))

	_, err := NewManager(path).Read(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestUnmarshal_UnknownKind(t *testing.T) {
	_, err := Unmarshal([]byte("resources:\n  - kind: disk\n    id: x\n"), "")
	assert.Error(t, err)
}

func TestManager_Lock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	a := NewManager(path)
	b := NewManager(path)

	require.NoError(t, a.Lock())
	err := b.Lock()
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, a.Unlock())
	require.NoError(t, b.Lock())
	require.NoError(t, b.Unlock())
	require.NoError(t, b.Unlock(), "unlocking twice is harmless")
}

func TestManager_StaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	m := NewManager(path)

	require.NoError(t, os.WriteFile(m.lockPath(), []byte("pid=1\n"), 0o644))
	old := time.Now().Add(-2 * StaleLockAge)
	require.NoError(t, os.Chtimes(m.lockPath(), old, old))

	require.NoError(t, m.Lock())
	require.NoError(t, m.Unlock())
}

func TestParseLocation(t *testing.T) {
	cfg, err := ParseLocation("")
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Type)
	assert.Equal(t, DefaultPath, cfg.Config["path"])

	cfg, err = ParseLocation("state/ledger.yaml")
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Type)
	assert.Equal(t, "state/ledger.yaml", cfg.Config["path"])

	cfg, err = ParseLocation("s3://my-bucket/runs/ledger.yaml?region=eu-west-1&lock_table=anfctl-locks")
	require.NoError(t, err)
	assert.Equal(t, "s3", cfg.Type)
	assert.Equal(t, map[string]string{
		"bucket":     "my-bucket",
		"key":        "runs/ledger.yaml",
		"region":     "eu-west-1",
		"lock_table": "anfctl-locks",
	}, cfg.Config)
}

func TestNewBackend(t *testing.T) {
	_, err := NewBackend(context.Background(), nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil")

	_, err = NewBackend(context.Background(), &BackendConfig{Type: "redis"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend type")

	b, err := NewBackend(context.Background(), &BackendConfig{Type: "local", Config: map[string]string{"path": "x.yaml"}}, "")
	require.NoError(t, err)
	mgr, ok := b.(*Manager)
	require.True(t, ok)
	assert.Equal(t, "x.yaml", mgr.Path())
}
