// Package monitoring watches refresh history and snapshot freshness and
// raises webhook alerts when either degrades.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reso-directory/internal/model"
	"github.com/sells-group/reso-directory/internal/store"
)

// MetricsSnapshot holds a point-in-time view of directory health.
type MetricsSnapshot struct {
	// Refresh metrics (within lookback window).
	RefreshTotal    int     `json:"refresh_total"`
	RefreshOK       int     `json:"refresh_ok"`
	RefreshFailed   int     `json:"refresh_failed"`
	RefreshFailRate float64 `json:"refresh_fail_rate"`
	LastError       string  `json:"last_error,omitempty"`

	// Published snapshot.
	SnapshotLoaded   bool       `json:"snapshot_loaded"`
	SnapshotID       string     `json:"snapshot_id,omitempty"`
	SnapshotSize     int        `json:"snapshot_size"`
	SnapshotAgeHours float64    `json:"snapshot_age_hours"`
	LastUpdated      *time.Time `json:"last_updated,omitempty"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// AttemptLister abstracts the history store methods needed by the collector.
type AttemptLister interface {
	ListAttempts(ctx context.Context, filter store.AttemptFilter) ([]model.RefreshAttempt, error)
}

// SnapshotReader exposes the currently published snapshot.
type SnapshotReader interface {
	Current() *model.Snapshot
}

// Collector gathers metrics from the history store and the snapshot store.
type Collector struct {
	history   AttemptLister // may be nil
	snapshots SnapshotReader
	now       func() time.Time
}

// NewCollector creates a new metrics collector. history may be nil, in which
// case only snapshot metrics are collected.
func NewCollector(history AttemptLister, snapshots SnapshotReader) *Collector {
	return &Collector{history: history, snapshots: snapshots, now: time.Now}
}

// Collect gathers a snapshot of directory metrics over the given lookback
// window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	ms := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	if cur := c.snapshots.Current(); cur.Loaded() {
		ms.SnapshotLoaded = true
		ms.SnapshotID = cur.ID
		ms.SnapshotSize = cur.Len()
		ms.LastUpdated = cur.FetchedAt
		ms.SnapshotAgeHours = now.Sub(*cur.FetchedAt).Hours()
	}

	if c.history == nil {
		return ms, nil
	}

	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)
	attempts, err := c.history.ListAttempts(ctx, store.AttemptFilter{
		StartedAfter: cutoff,
		Limit:        1000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list refresh attempts")
	}

	// Attempts arrive newest first.
	for _, a := range attempts {
		ms.RefreshTotal++
		if a.OK {
			ms.RefreshOK++
			continue
		}
		ms.RefreshFailed++
		if ms.LastError == "" {
			ms.LastError = a.Error
		}
	}
	if ms.RefreshTotal > 0 {
		ms.RefreshFailRate = float64(ms.RefreshFailed) / float64(ms.RefreshTotal)
	}

	return ms, nil
}
