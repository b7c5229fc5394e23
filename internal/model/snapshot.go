package model

import "time"

// Snapshot is the in-memory copy of the remote directory together with the
// time it was fetched. A Snapshot is immutable once published; refreshes
// replace it wholesale.
type Snapshot struct {
	ID            string         `json:"id,omitempty"`
	Organizations []Organization `json:"organizations"`
	FetchedAt     *time.Time     `json:"fetched_at,omitempty"` // nil until the first successful fetch
}

// Loaded reports whether the snapshot came from a successful fetch.
func (s *Snapshot) Loaded() bool {
	return s != nil && s.FetchedAt != nil
}

// Len returns the number of records in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Organizations)
}

// RefreshAttempt describes one call to the remote source made while
// refreshing a snapshot.
type RefreshAttempt struct {
	ID         string    `json:"id" yaml:"id"`
	SnapshotID string    `json:"snapshot_id,omitempty" yaml:"snapshot_id,omitempty"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	OK         bool      `json:"ok" yaml:"ok"`
	Count      int       `json:"count" yaml:"count"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Duration returns how long the attempt took.
func (a RefreshAttempt) Duration() time.Duration {
	return a.FinishedAt.Sub(a.StartedAt)
}
