// Package state stores the run ledger: what each resource was last seen to
// be and how the last run ended.
package state

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/picklr-io/anfctl/internal/ir"
)

const ledgerHeader = "# anfctl run ledger\n"

// DefaultPath is where the local ledger lives unless configured otherwise.
const DefaultPath = ".anfctl/ledger.yaml"

// Marshal renders the ledger as YAML and encrypts it when passphrase is set.
func Marshal(ledger *ir.Ledger, passphrase string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(ledgerHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(ledger); err != nil {
		return nil, fmt.Errorf("failed to encode ledger: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode ledger: %w", err)
	}

	out, err := Encrypt(buf.Bytes(), passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt ledger: %w", err)
	}
	return out, nil
}

// Unmarshal parses a ledger written by Marshal.
func Unmarshal(data []byte, passphrase string) (*ir.Ledger, error) {
	plain, err := Decrypt(data, passphrase)
	if err != nil {
		return nil, err
	}
	ledger := &ir.Ledger{}
	if err := yaml.Unmarshal(plain, ledger); err != nil {
		return nil, fmt.Errorf("failed to parse ledger: %w", err)
	}
	if ledger.Version == 0 {
		ledger.Version = 1
	}
	return ledger, nil
}

// Manager keeps the ledger in a local file.
type Manager struct {
	path       string
	passphrase string
}

type ManagerOption func(*Manager)

// WithEncryptionKey encrypts the ledger file under passphrase.
func WithEncryptionKey(passphrase string) ManagerOption {
	return func(m *Manager) { m.passphrase = passphrase }
}

func NewManager(path string, opts ...ManagerOption) *Manager {
	m := &Manager{path: path}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Path() string {
	return m.path
}

// Read loads the ledger. A missing file yields an empty ledger.
func (m *Manager) Read(_ context.Context) (*ir.Ledger, error) {
	raw, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return &ir.Ledger{Version: 1}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger %s: %w", m.path, err)
	}

	ledger, err := Unmarshal(raw, m.passphrase)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.path, err)
	}
	return ledger, nil
}

// Write replaces the ledger file. The new content is written to a temporary
// file in the same directory and renamed into place.
func (m *Manager) Write(_ context.Context, ledger *ir.Ledger) error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	data, err := Marshal(ledger, m.passphrase)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(m.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary ledger: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("failed to write ledger %s: %w", m.path, err)
	}
	return nil
}
