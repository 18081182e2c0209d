package ir

import (
	"time"

	"github.com/picklr-io/anfctl/internal/resource"
)

// Ledger is the persisted record of what the last runs did to each resource.
type Ledger struct {
	Version   int               `yaml:"version"`
	Serial    int               `yaml:"serial"`
	Lineage   string            `yaml:"lineage"`
	LastRun   *RunRecord        `yaml:"lastRun,omitempty"`
	Resources []*ResourceRecord `yaml:"resources"`
}

// RunRecord describes a single invocation.
type RunRecord struct {
	ID         string    `yaml:"id"`
	Command    string    `yaml:"command"`
	StartedAt  time.Time `yaml:"startedAt"`
	FinishedAt time.Time `yaml:"finishedAt"`
	Succeeded  bool      `yaml:"succeeded"`
	Error      string    `yaml:"error,omitempty"`
}

// ResourceRecord is the last known lifecycle state of one resource.
type ResourceRecord struct {
	Kind      resource.Kind `yaml:"kind"`
	ID        string        `yaml:"id"`
	State     string        `yaml:"state"`
	UpdatedAt time.Time     `yaml:"updatedAt"`
}

// Upsert replaces the record with the same ID or appends a new one.
func (l *Ledger) Upsert(rec *ResourceRecord) {
	for i, r := range l.Resources {
		if r.ID == rec.ID {
			l.Resources[i] = rec
			return
		}
	}
	l.Resources = append(l.Resources, rec)
}

// Find returns the record for id, or nil.
func (l *Ledger) Find(id string) *ResourceRecord {
	for _, r := range l.Resources {
		if r.ID == id {
			return r
		}
	}
	return nil
}
