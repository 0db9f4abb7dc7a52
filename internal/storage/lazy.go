package storage

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/naka-gawa/pr-habits/internal/domain"
)

// LazyStore initialises the wrapped Store on first use. Concurrent first
// callers share one in-flight Initialize; a failed attempt is reported to
// all of them and retried by the next call.
type LazyStore struct {
	Store

	group singleflight.Group
	mu    sync.Mutex
	ready bool
}

// NewLazyStore wraps s.
func NewLazyStore(s Store) *LazyStore {
	return &LazyStore{Store: s}
}

// Initialize runs the wrapped Initialize at most once successfully.
func (l *LazyStore) Initialize(ctx context.Context) error {
	l.mu.Lock()
	ready := l.ready
	l.mu.Unlock()
	if ready {
		return nil
	}

	_, err, _ := l.group.Do("initialize", func() (interface{}, error) {
		l.mu.Lock()
		done := l.ready
		l.mu.Unlock()
		if done {
			return nil, nil
		}
		if err := l.Store.Initialize(ctx); err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.ready = true
		l.mu.Unlock()
		return nil, nil
	})
	return err
}

func (l *LazyStore) UpsertEntry(ctx context.Context, date string, count int) error {
	if err := l.Initialize(ctx); err != nil {
		return err
	}
	return l.Store.UpsertEntry(ctx, date, count)
}

func (l *LazyStore) GetEntry(ctx context.Context, date string) (*domain.HabitEntry, error) {
	if err := l.Initialize(ctx); err != nil {
		return nil, err
	}
	return l.Store.GetEntry(ctx, date)
}

func (l *LazyStore) GetEntriesByYear(ctx context.Context, year int) ([]domain.HabitEntry, error) {
	if err := l.Initialize(ctx); err != nil {
		return nil, err
	}
	return l.Store.GetEntriesByYear(ctx, year)
}

func (l *LazyStore) GetEntriesInRange(ctx context.Context, startDate, endDate string) ([]domain.HabitEntry, error) {
	if err := l.Initialize(ctx); err != nil {
		return nil, err
	}
	return l.Store.GetEntriesInRange(ctx, startDate, endDate)
}

func (l *LazyStore) GetStats(ctx context.Context) (domain.HabitStats, error) {
	if err := l.Initialize(ctx); err != nil {
		return domain.HabitStats{}, err
	}
	return l.Store.GetStats(ctx)
}
