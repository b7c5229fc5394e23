// Package store persists the log of directory refresh attempts.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reso-directory/internal/model"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// DefaultLimit is the number of attempts returned when a filter sets none.
const DefaultLimit = 20

// maxLimit caps how many attempts a single listing returns.
const maxLimit = 1000

// AttemptFilter specifies criteria for listing refresh attempts.
type AttemptFilter struct {
	Limit        int       `json:"limit,omitempty"`
	FailedOnly   bool      `json:"failed_only,omitempty"`
	StartedAfter time.Time `json:"started_after,omitempty"`
}

func (f AttemptFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultLimit
	case f.Limit > maxLimit:
		return maxLimit
	default:
		return f.Limit
	}
}

// Store defines the persistence interface for refresh history.
type Store interface {
	// Record appends one refresh attempt.
	Record(ctx context.Context, attempt model.RefreshAttempt) error
	// ListAttempts returns attempts newest first.
	ListAttempts(ctx context.Context, filter AttemptFilter) ([]model.RefreshAttempt, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the Store for driver. It returns (nil, nil) for DriverNone.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = "reso-directory.db"
		}
		return NewSQLite(dsn)
	case DriverPostgres:
		return NewPostgres(ctx, dsn, nil)
	case DriverNone, "":
		return nil, nil
	default:
		return nil, eris.Errorf("unsupported history driver: %s", driver)
	}
}
