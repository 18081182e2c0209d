package state

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/picklr-io/anfctl/internal/ir"
)

// Backend stores the run ledger.
type Backend interface {
	// Read loads the ledger. A ledger that was never written reads as empty.
	Read(ctx context.Context) (*ir.Ledger, error)

	// Write replaces the stored ledger.
	Write(ctx context.Context, ledger *ir.Ledger) error

	// Lock acquires an exclusive lock on the ledger.
	Lock() error

	// Unlock releases the lock.
	Unlock() error
}

// BackendConfig selects and configures a ledger backend.
type BackendConfig struct {
	Type   string            `json:"type"` // "local" or "s3"
	Config map[string]string `json:"config"`
}

// ParseLocation turns a ledger location into a backend configuration.
// Plain paths select the local backend. An s3:// URL selects the S3 backend;
// its query may carry region, lock_table, encrypt and profile.
func ParseLocation(raw string) (*BackendConfig, error) {
	if raw == "" {
		raw = DefaultPath
	}
	if !strings.HasPrefix(raw, "s3://") {
		return &BackendConfig{Type: "local", Config: map[string]string{"path": raw}}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger location %q: %w", raw, err)
	}
	cfg := map[string]string{
		"bucket": u.Host,
		"key":    strings.TrimPrefix(u.Path, "/"),
	}
	for k, v := range u.Query() {
		if len(v) > 0 {
			cfg[k] = v[0]
		}
	}
	return &BackendConfig{Type: "s3", Config: cfg}, nil
}

// NewBackend creates a ledger backend. passphrase enables client side
// encryption of the ledger content when set.
func NewBackend(ctx context.Context, cfg *BackendConfig, passphrase string) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("backend configuration is nil")
	}

	switch cfg.Type {
	case "local", "":
		path := cfg.Config["path"]
		if path == "" {
			path = DefaultPath
		}
		return NewManager(path, WithEncryptionKey(passphrase)), nil
	case "s3":
		return newS3Backend(ctx, cfg.Config, passphrase)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}
