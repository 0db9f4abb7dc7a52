// Package server exposes the habit store and the synchronizer over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/naka-gawa/pr-habits/internal/domain"
	"github.com/naka-gawa/pr-habits/internal/storage"
)

// DefaultEntriesDays is the window GET /entries uses when a bound is omitted.
const DefaultEntriesDays = 30

// Error kinds reported in the "error" field of failure responses.
const (
	kindValidation = "validation_error"
	kindNotFound   = "not_found"
	kindConflict   = "conflict"
	kindInternal   = "internal_error"
)

// EntryReader is the read side of the habit store.
type EntryReader interface {
	GetEntry(ctx context.Context, date string) (*domain.HabitEntry, error)
	GetEntriesByYear(ctx context.Context, year int) ([]domain.HabitEntry, error)
	GetEntriesInRange(ctx context.Context, startDate, endDate string) ([]domain.HabitEntry, error)
	GetStats(ctx context.Context) (domain.HabitStats, error)
}

// Refresher synchronizes the store with the remote activity.
type Refresher interface {
	Refresh(ctx context.Context, r *domain.DateRange) (*domain.RefreshResult, error)
}

// Server holds the HTTP handlers.
type Server struct {
	store     EntryReader
	refresher Refresher
	logger    *slog.Logger
	now       func() time.Time

	// refreshing is held for the duration of a refresh.
	refreshing sync.Mutex
}

// Option customises a Server.
type Option func(*Server)

// WithClock sets the clock used for default date windows.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a Server.
func New(store EntryReader, refresher Refresher, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{store: store, refresher: refresher, logger: logger, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the router with middleware and every route registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	s.RegisterHTTP(r)
	return r
}

// RegisterHTTP registers the routes on r.
func (s *Server) RegisterHTTP(r chi.Router) {
	r.Get("/healthz", s.handleHealth)
	r.Post("/refresh", s.handleRefresh)
	r.Get("/entries", s.handleEntries)
	r.Get("/entries/{date}", s.handleEntry)
	r.Get("/years/{year}/entries", s.handleYearEntries)
	r.Get("/stats", s.handleStats)
}

type refreshRequest struct {
	DateRange *domain.DateRange `json:"date_range"`
}

type refreshResponse struct {
	Success bool                  `json:"success"`
	Result  *domain.RefreshResult `json:"result"`
}

type entriesResponse struct {
	Entries   []domain.HabitEntry `json:"entries"`
	DateRange domain.DateRange    `json:"date_range"`
}

type yearEntriesResponse struct {
	Year    int                 `json:"year"`
	Entries []domain.HabitEntry `json:"entries"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, kindValidation, "invalid request body: "+err.Error())
		return
	}
	if dr := req.DateRange; dr != nil {
		if dr.StartDate == "" || dr.EndDate == "" {
			writeError(w, http.StatusBadRequest, kindValidation, "date_range requires both start_date and end_date")
			return
		}
		if err := dr.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, kindValidation, err.Error())
			return
		}
	}

	if !s.refreshing.TryLock() {
		writeError(w, http.StatusConflict, kindConflict, "a refresh is already running")
		return
	}
	defer s.refreshing.Unlock()

	// A refresh runs to completion even if the client goes away.
	result, err := s.refresher.Refresh(context.WithoutCancel(r.Context()), req.DateRange)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{Success: true, Result: result})
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	dr := domain.TrailingRange(s.now(), DefaultEntriesDays)
	if v := r.URL.Query().Get("start_date"); v != "" {
		dr.StartDate = v
	}
	if v := r.URL.Query().Get("end_date"); v != "" {
		dr.EndDate = v
	}
	if err := dr.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, err.Error())
		return
	}

	entries, err := s.store.GetEntriesInRange(r.Context(), dr.StartDate, dr.EndDate)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entriesResponse{Entries: entries, DateRange: dr})
}

func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := domain.ParseDate(date); err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, err.Error())
		return
	}

	entry, err := s.store.GetEntry(r.Context(), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleYearEntries(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1 || year > 9999 {
		writeError(w, http.StatusBadRequest, kindValidation, "year must be a number between 1 and 9999")
		return
	}

	entries, err := s.store.GetEntriesByYear(r.Context(), year)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, yearEntriesResponse{Year: year, Entries: entries})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// fail maps err to a status code and writes it.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, kindNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidDate),
		errors.Is(err, domain.ErrInvalidRange),
		errors.Is(err, domain.ErrNegativeCount):
		writeError(w, http.StatusBadRequest, kindValidation, err.Error())
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, kindInternal, err.Error())
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, kind, message string) {
	writeJSON(w, code, errorResponse{Error: kind, Message: message})
}
