// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// DateLayout is the calendar-date format used for entry keys and API payloads.
const DateLayout = "2006-01-02"

var (
	// ErrInvalidDate is returned for dates that are not well-formed YYYY-MM-DD calendar dates.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidRange is returned when a range starts after it ends.
	ErrInvalidRange = errors.New("invalid date range")
	// ErrNegativeCount is returned when a pull request count below zero is written.
	ErrNegativeCount = errors.New("pull request count must not be negative")
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// HabitEntry is one stored calendar day of pull request activity.
// It is the core domain entity of this application.
type HabitEntry struct {
	Date             string    `json:"date"`
	PullRequestCount int       `json:"pull_request_count"`
	LastUpdated      time.Time `json:"last_updated"`
}

// HabitStats holds the aggregate counters derived from all stored entries.
type HabitStats struct {
	TotalDays         int     `json:"total_days"`
	TotalPullRequests int     `json:"total_pull_requests"`
	AveragePerDay     float64 `json:"average_per_day"`
	MaxInSingleDay    int     `json:"max_in_single_day"`
	CurrentStreak     int     `json:"current_streak"`
	LongestStreak     int     `json:"longest_streak"`
}

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// RefreshResult reports what a synchronization run wrote.
type RefreshResult struct {
	DaysUpdated            int       `json:"days_updated"`
	TotalPullRequestsFound int       `json:"total_pull_requests_found"`
	DateRange              DateRange `json:"date_range"`
}

// SearchItem is a single pull request returned by the remote search.
type SearchItem struct {
	Number     int       `json:"number"`
	Title      string    `json:"title"`
	Repository string    `json:"repository"`
	URL        string    `json:"url"`
	CreatedAt  time.Time `json:"created_at"`
}

// Day returns the UTC calendar date the item was created on.
func (i SearchItem) Day() string {
	return i.CreatedAt.UTC().Format(DateLayout)
}

// ParseDate parses a strict YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	if !dateRe.MatchString(s) {
		return time.Time{}, fmt.Errorf("%w: %q must use YYYY-MM-DD", ErrInvalidDate, s)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, s, err)
	}
	return t, nil
}

// FormatDate renders t as a UTC calendar date.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// TrailingRange returns the range of the given number of days back from now,
// ending today. Both bounds are inclusive.
func TrailingRange(now time.Time, days int) DateRange {
	today := now.UTC()
	return DateRange{
		StartDate: FormatDate(today.AddDate(0, 0, -days)),
		EndDate:   FormatDate(today),
	}
}

// YearRange returns the range covering the whole calendar year.
func YearRange(year int) DateRange {
	return DateRange{
		StartDate: fmt.Sprintf("%04d-01-01", year),
		EndDate:   fmt.Sprintf("%04d-12-31", year),
	}
}

// Validate checks that both bounds are well-formed and ordered.
func (r DateRange) Validate() error {
	start, err := ParseDate(r.StartDate)
	if err != nil {
		return err
	}
	end, err := ParseDate(r.EndDate)
	if err != nil {
		return err
	}
	if start.After(end) {
		return fmt.Errorf("%w: start_date %s is after end_date %s", ErrInvalidRange, r.StartDate, r.EndDate)
	}
	return nil
}

// Days enumerates every calendar date in the range, ascending.
func (r DateRange) Days() ([]string, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	start, _ := ParseDate(r.StartDate)
	end, _ := ParseDate(r.EndDate)

	days := make([]string, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days, nil
}
