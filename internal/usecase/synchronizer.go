// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/naka-gawa/pr-habits/internal/domain"
	"github.com/naka-gawa/pr-habits/internal/gateway"
)

// Defaults applied by NewSynchronizer to zero-valued Config fields.
const (
	DefaultRefreshDays = 365
	DefaultMaxPages    = 10
	DefaultPageDelay   = time.Second
)

// EntryWriter is the part of the store the synchronizer writes through.
type EntryWriter interface {
	UpsertEntry(ctx context.Context, date string, count int) error
}

// Config controls how a refresh pages through the remote search.
type Config struct {
	Username string
	// PageSize is clamped to 1..gateway.MaxPerPage.
	PageSize int
	// MaxPages bounds a single refresh. The search API stops at 1000 results.
	MaxPages  int
	PageDelay time.Duration
}

// Option customises a Synchronizer.
type Option func(*Synchronizer)

// WithClock sets the clock used to resolve the default range.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

// WithSleep replaces the wait between pages.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Synchronizer) { s.sleep = sleep }
}

// Synchronizer mirrors remote pull request activity into the store,
// one entry per calendar day.
type Synchronizer struct {
	searcher gateway.Searcher
	store    EntryWriter
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewSynchronizer creates a new Synchronizer instance.
func NewSynchronizer(searcher gateway.Searcher, store EntryWriter, cfg Config, logger *slog.Logger, opts ...Option) *Synchronizer {
	if cfg.PageSize <= 0 || cfg.PageSize > gateway.MaxPerPage {
		cfg.PageSize = gateway.MaxPerPage
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.PageDelay < 0 {
		cfg.PageDelay = 0
	}
	s := &Synchronizer{
		searcher: searcher,
		store:    store,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type syncState int

const (
	stateFetching syncState = iota
	stateAggregating
	stateDone
	stateError
)

func (s syncState) String() string {
	switch s {
	case stateFetching:
		return "fetching"
	case stateAggregating:
		return "aggregating"
	case stateDone:
		return "done"
	default:
		return "error"
	}
}

// refreshRun is the mutable state of one Refresh call.
type refreshRun struct {
	dateRange domain.DateRange
	items     []domain.SearchItem
	result    *domain.RefreshResult
	err       error
}

// Refresh pulls every pull request the user created in r and writes one entry
// per day of r, zero for days without activity. A nil r means the trailing
// year ending today.
//
// A failed page ends fetching and the items gathered so far are still written.
// Storage errors abort the refresh.
func (s *Synchronizer) Refresh(ctx context.Context, r *domain.DateRange) (*domain.RefreshResult, error) {
	dateRange := domain.TrailingRange(s.now(), DefaultRefreshDays)
	if r != nil {
		dateRange = *r
	}
	if err := dateRange.Validate(); err != nil {
		return nil, err
	}

	run := &refreshRun{dateRange: dateRange}
	state := stateFetching
	for {
		s.logger.Debug("refresh state", "state", state.String(), "start", dateRange.StartDate, "end", dateRange.EndDate)
		switch state {
		case stateFetching:
			state = s.fetch(ctx, run)
		case stateAggregating:
			state = s.aggregate(ctx, run)
		case stateDone:
			s.logger.Info("refresh complete",
				"days_updated", run.result.DaysUpdated,
				"pull_requests", run.result.TotalPullRequestsFound)
			return run.result, nil
		default:
			s.logger.Error("refresh failed", "error", run.err)
			return nil, run.err
		}
	}
}

// fetch walks the search pages sequentially until one of the stop
// conditions holds.
func (s *Synchronizer) fetch(ctx context.Context, run *refreshRun) syncState {
	query := gateway.PullRequestQuery(s.cfg.Username, run.dateRange)
	cursor := ""
	for page := 1; ; page++ {
		if page > 1 {
			if err := s.sleep(ctx, s.cfg.PageDelay); err != nil {
				run.err = err
				return stateError
			}
		}

		res, err := s.searcher.SearchPullRequests(ctx, query, gateway.PageRequest{Cursor: cursor, PerPage: s.cfg.PageSize})
		if err != nil {
			s.logger.Warn("search page failed, keeping partial results",
				"page", page, "items", len(run.items), "error", err)
			return stateAggregating
		}
		run.items = append(run.items, res.Items...)
		s.logger.Debug("fetched search page", "page", page, "items", len(res.Items))

		switch {
		case len(res.Items) < s.cfg.PageSize:
			return stateAggregating
		case res.NextCursor == "":
			return stateAggregating
		case page >= s.cfg.MaxPages:
			s.logger.Warn("page limit reached", "max_pages", s.cfg.MaxPages, "items", len(run.items))
			return stateAggregating
		}
		cursor = res.NextCursor
	}
}

// aggregate counts items per creation day, writes them, then backfills the
// rest of the range with zero.
func (s *Synchronizer) aggregate(ctx context.Context, run *refreshRun) syncState {
	counts := make(map[string]int)
	for _, item := range run.items {
		counts[item.Day()]++
	}

	days := make([]string, 0, len(counts))
	for day := range counts {
		days = append(days, day)
	}
	sort.Strings(days)

	updated := 0
	for _, day := range days {
		if err := s.store.UpsertEntry(ctx, day, counts[day]); err != nil {
			run.err = err
			return stateError
		}
		updated++
	}

	rangeDays, err := run.dateRange.Days()
	if err != nil {
		run.err = err
		return stateError
	}
	for _, day := range rangeDays {
		if _, ok := counts[day]; ok {
			continue
		}
		if err := s.store.UpsertEntry(ctx, day, 0); err != nil {
			run.err = err
			return stateError
		}
		updated++
	}

	run.result = &domain.RefreshResult{
		DaysUpdated:            updated,
		TotalPullRequestsFound: len(run.items),
		DateRange:              run.dateRange,
	}
	return stateDone
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
