package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/pr-habits/internal/domain"
	"github.com/naka-gawa/pr-habits/internal/storage"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetEntry(ctx context.Context, date string) (*domain.HabitEntry, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.HabitEntry), args.Error(1)
}

func (m *mockStore) GetEntriesByYear(ctx context.Context, year int) ([]domain.HabitEntry, error) {
	args := m.Called(ctx, year)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.HabitEntry), args.Error(1)
}

func (m *mockStore) GetEntriesInRange(ctx context.Context, startDate, endDate string) ([]domain.HabitEntry, error) {
	args := m.Called(ctx, startDate, endDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.HabitEntry), args.Error(1)
}

func (m *mockStore) GetStats(ctx context.Context) (domain.HabitStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.HabitStats), args.Error(1)
}

type mockRefresher struct {
	mock.Mock
}

func (m *mockRefresher) Refresh(ctx context.Context, r *domain.DateRange) (*domain.RefreshResult, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshResult), args.Error(1)
}

var fixedNow = time.Date(2025, 1, 31, 15, 0, 0, 0, time.UTC)

func newTestServer(store EntryReader, refresher Refresher) *httptest.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(store, refresher, logger, WithClock(func() time.Time { return fixedNow }))
	return httptest.NewServer(s.Handler())
}

func do(t *testing.T, method, url, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(new(mockStore), new(mockRefresher))
	defer ts.Close()

	code, body := do(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestRefresh(t *testing.T) {
	explicit := &domain.DateRange{StartDate: "2025-01-15", EndDate: "2025-01-17"}
	result := &domain.RefreshResult{DaysUpdated: 3, TotalPullRequestsFound: 0, DateRange: *explicit}

	testCases := []struct {
		name       string
		body       string
		expectArg  *domain.DateRange
		refreshErr error
		wantCode   int
		wantKind   string
	}{
		{name: "explicit range", body: `{"date_range":{"start_date":"2025-01-15","end_date":"2025-01-17"}}`, expectArg: explicit, wantCode: http.StatusOK},
		{name: "empty body uses default range", body: "", expectArg: nil, wantCode: http.StatusOK},
		{name: "empty object uses default range", body: `{}`, expectArg: nil, wantCode: http.StatusOK},
		{name: "inverted range", body: `{"date_range":{"start_date":"2025-01-17","end_date":"2025-01-15"}}`, wantCode: http.StatusBadRequest, wantKind: "validation_error"},
		{name: "missing end date", body: `{"date_range":{"start_date":"2025-01-15"}}`, wantCode: http.StatusBadRequest, wantKind: "validation_error"},
		{name: "malformed date", body: `{"date_range":{"start_date":"2025/01/15","end_date":"2025-01-17"}}`, wantCode: http.StatusBadRequest, wantKind: "validation_error"},
		{name: "malformed json", body: `{"date_range":`, wantCode: http.StatusBadRequest, wantKind: "validation_error"},
		{name: "storage failure", body: `{}`, expectArg: nil, refreshErr: errors.New("database is locked"), wantCode: http.StatusInternalServerError, wantKind: "internal_error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			refresher := new(mockRefresher)
			if tc.wantKind == "" || tc.refreshErr != nil {
				if tc.refreshErr != nil {
					refresher.On("Refresh", mock.Anything, tc.expectArg).Return(nil, tc.refreshErr).Once()
				} else {
					refresher.On("Refresh", mock.Anything, tc.expectArg).Return(result, nil).Once()
				}
			}
			ts := newTestServer(new(mockStore), refresher)
			defer ts.Close()

			code, body := do(t, http.MethodPost, ts.URL+"/refresh", tc.body)

			assert.Equal(t, tc.wantCode, code)
			if tc.wantKind != "" {
				assert.Equal(t, tc.wantKind, body["error"])
				assert.NotEmpty(t, body["message"])
			} else {
				assert.Equal(t, true, body["success"])
				res := body["result"].(map[string]any)
				assert.Equal(t, float64(3), res["days_updated"])
				assert.Equal(t, float64(0), res["total_pull_requests_found"])
			}
			refresher.AssertExpectations(t)
		})
	}
}

// blockingRefresher holds every refresh until release is closed.
type blockingRefresher struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingRefresher) Refresh(ctx context.Context, r *domain.DateRange) (*domain.RefreshResult, error) {
	close(b.started)
	<-b.release
	return &domain.RefreshResult{}, nil
}

func TestRefreshRejectsOverlap(t *testing.T) {
	refresher := &blockingRefresher{started: make(chan struct{}), release: make(chan struct{})}
	ts := newTestServer(new(mockStore), refresher)
	defer ts.Close()

	firstDone := make(chan int)
	go func() {
		resp, err := http.Post(ts.URL+"/refresh", "application/json", strings.NewReader(`{}`))
		if err != nil {
			firstDone <- 0
			return
		}
		resp.Body.Close()
		firstDone <- resp.StatusCode
	}()
	<-refresher.started

	code, body := do(t, http.MethodPost, ts.URL+"/refresh", `{}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "conflict", body["error"])

	close(refresher.release)
	assert.Equal(t, http.StatusOK, <-firstDone)
}

func TestEntries(t *testing.T) {
	entries := []domain.HabitEntry{
		{Date: "2025-01-11", PullRequestCount: 2},
		{Date: "2025-01-12", PullRequestCount: 0},
	}

	testCases := []struct {
		name      string
		query     string
		wantStart string
		wantEnd   string
		wantCode  int
	}{
		{name: "explicit range", query: "?start_date=2025-01-11&end_date=2025-01-13", wantStart: "2025-01-11", wantEnd: "2025-01-13", wantCode: http.StatusOK},
		{name: "default trailing window", query: "", wantStart: "2025-01-01", wantEnd: "2025-01-31", wantCode: http.StatusOK},
		{name: "only start given", query: "?start_date=2025-01-20", wantStart: "2025-01-20", wantEnd: "2025-01-31", wantCode: http.StatusOK},
		{name: "inverted range", query: "?start_date=2025-01-13&end_date=2025-01-11", wantCode: http.StatusBadRequest},
		{name: "malformed date", query: "?start_date=yesterday", wantCode: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := new(mockStore)
			if tc.wantCode == http.StatusOK {
				store.On("GetEntriesInRange", mock.Anything, tc.wantStart, tc.wantEnd).Return(entries, nil).Once()
			}
			ts := newTestServer(store, new(mockRefresher))
			defer ts.Close()

			code, body := do(t, http.MethodGet, ts.URL+"/entries"+tc.query, "")

			assert.Equal(t, tc.wantCode, code)
			if tc.wantCode == http.StatusOK {
				assert.Len(t, body["entries"], 2)
				dr := body["date_range"].(map[string]any)
				assert.Equal(t, tc.wantStart, dr["start_date"])
				assert.Equal(t, tc.wantEnd, dr["end_date"])
			} else {
				assert.Equal(t, "validation_error", body["error"])
			}
			store.AssertExpectations(t)
		})
	}
}

func TestEntriesEmptyRangeIsArray(t *testing.T) {
	store := new(mockStore)
	store.On("GetEntriesInRange", mock.Anything, mock.Anything, mock.Anything).Return([]domain.HabitEntry{}, nil)
	ts := newTestServer(store, new(mockRefresher))
	defer ts.Close()

	code, body := do(t, http.MethodGet, ts.URL+"/entries", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, body["entries"])
}

func TestEntry(t *testing.T) {
	updated := time.Date(2025, 1, 15, 23, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		date     string
		setup    func(*mockStore)
		wantCode int
		wantKind string
	}{
		{
			name: "found",
			date: "2025-01-15",
			setup: func(m *mockStore) {
				m.On("GetEntry", mock.Anything, "2025-01-15").
					Return(&domain.HabitEntry{Date: "2025-01-15", PullRequestCount: 2, LastUpdated: updated}, nil)
			},
			wantCode: http.StatusOK,
		},
		{
			name: "absent",
			date: "2025-01-16",
			setup: func(m *mockStore) {
				m.On("GetEntry", mock.Anything, "2025-01-16").Return(nil, storage.ErrEntryNotFound)
			},
			wantCode: http.StatusNotFound,
			wantKind: "not_found",
		},
		{
			name:     "malformed",
			date:     "2025-1-16",
			setup:    func(m *mockStore) {},
			wantCode: http.StatusBadRequest,
			wantKind: "validation_error",
		},
		{
			name: "storage failure",
			date: "2025-01-17",
			setup: func(m *mockStore) {
				m.On("GetEntry", mock.Anything, "2025-01-17").Return(nil, fmt.Errorf("querying entry: %w", errors.New("connection reset")))
			},
			wantCode: http.StatusInternalServerError,
			wantKind: "internal_error",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := new(mockStore)
			tc.setup(store)
			ts := newTestServer(store, new(mockRefresher))
			defer ts.Close()

			code, body := do(t, http.MethodGet, ts.URL+"/entries/"+tc.date, "")

			assert.Equal(t, tc.wantCode, code)
			if tc.wantKind != "" {
				assert.Equal(t, tc.wantKind, body["error"])
				return
			}
			assert.Equal(t, "2025-01-15", body["date"])
			assert.Equal(t, float64(2), body["pull_request_count"])
			assert.Equal(t, "2025-01-15T23:00:00Z", body["last_updated"])
		})
	}
}

func TestYearEntries(t *testing.T) {
	store := new(mockStore)
	store.On("GetEntriesByYear", mock.Anything, 2025).
		Return([]domain.HabitEntry{{Date: "2025-03-01", PullRequestCount: 1}}, nil).Once()
	ts := newTestServer(store, new(mockRefresher))
	defer ts.Close()

	code, body := do(t, http.MethodGet, ts.URL+"/years/2025/entries", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2025), body["year"])
	assert.Len(t, body["entries"], 1)

	code, body = do(t, http.MethodGet, ts.URL+"/years/twenty/entries", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_error", body["error"])
	store.AssertExpectations(t)
}

func TestStats(t *testing.T) {
	store := new(mockStore)
	store.On("GetStats", mock.Anything).Return(domain.HabitStats{
		TotalDays: 3, TotalPullRequests: 4, AveragePerDay: 1.3,
		MaxInSingleDay: 2, CurrentStreak: 3, LongestStreak: 3,
	}, nil).Once()
	ts := newTestServer(store, new(mockRefresher))
	defer ts.Close()

	code, body := do(t, http.MethodGet, ts.URL+"/stats", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{
		"total_days": float64(3), "total_pull_requests": float64(4), "average_per_day": 1.3,
		"max_in_single_day": float64(2), "current_streak": float64(3), "longest_streak": float64(3),
	}, body)
}

func TestStatsStorageFailure(t *testing.T) {
	store := new(mockStore)
	store.On("GetStats", mock.Anything).Return(domain.HabitStats{}, errors.New("disk I/O error")).Once()
	ts := newTestServer(store, new(mockRefresher))
	defer ts.Close()

	code, body := do(t, http.MethodGet, ts.URL+"/stats", "")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal_error", body["error"])
	assert.Equal(t, "disk I/O error", body["message"])
}
