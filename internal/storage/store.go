// Package storage persists one habit entry per calendar date behind a single
// Store contract, with an embedded SQLite backend and a networked PostgreSQL backend.
package storage

import (
	"context"
	"errors"

	"github.com/naka-gawa/pr-habits/internal/domain"
)

// ErrEntryNotFound is returned by GetEntry when no row exists for a valid date.
var ErrEntryNotFound = errors.New("entry not found")

// Store defines the interface for all habit entry operations.
// Callers depend on the interface, not on a concrete backend.
type Store interface {
	// Initialize creates the schema if it is absent. It is safe to call on every start.
	Initialize(ctx context.Context) error

	// UpsertEntry inserts the date or overwrites its count, refreshing last_updated.
	UpsertEntry(ctx context.Context, date string, count int) error

	GetEntry(ctx context.Context, date string) (*domain.HabitEntry, error)
	GetEntriesByYear(ctx context.Context, year int) ([]domain.HabitEntry, error)
	GetEntriesInRange(ctx context.Context, startDate, endDate string) ([]domain.HabitEntry, error)
	GetStats(ctx context.Context) (domain.HabitStats, error)

	// Lifecycle
	Close() error
	Path() string
}
