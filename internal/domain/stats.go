package domain

import (
	"sort"
	"time"

	"github.com/montanaflynn/stats"
)

// ComputeStats derives totals, the activity average and streaks from entries.
// The entries may be in any order.
//
// The average is taken over days with at least one pull request, not over all
// stored days, and is rounded half-up to one decimal place.
func ComputeStats(entries []HabitEntry) HabitStats {
	if len(entries) == 0 {
		return HabitStats{}
	}

	counts := make(stats.Float64Data, 0, len(entries))
	active := make(stats.Float64Data, 0, len(entries))
	for _, e := range entries {
		counts = append(counts, float64(e.PullRequestCount))
		if e.PullRequestCount > 0 {
			active = append(active, float64(e.PullRequestCount))
		}
	}

	total, _ := counts.Sum()
	maxCount, _ := counts.Max()

	var average float64
	if len(active) > 0 {
		mean, _ := active.Mean()
		average, _ = stats.Round(mean, 1)
	}

	current, longest := streaks(entries)

	return HabitStats{
		TotalDays:         len(entries),
		TotalPullRequests: int(total),
		AveragePerDay:     average,
		MaxInSingleDay:    int(maxCount),
		CurrentStreak:     current,
		LongestStreak:     longest,
	}
}

// streaks walks the entries from the most recent date backwards. A run only
// extends when the earlier date is exactly one calendar day before the later
// one, so missing dates end a run the same way a zero-count day does.
func streaks(entries []HabitEntry) (current, longest int) {
	sorted := make([]HabitEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	var (
		run      int
		later    time.Time
		tracking = true
		last     = len(sorted) - 1
	)
	for i := last; i >= 0; i-- {
		day, err := ParseDate(sorted[i].Date)
		switch {
		case err != nil || sorted[i].PullRequestCount <= 0:
			run = 0
		case run > 0 && later.AddDate(0, 0, -1).Equal(day):
			run++
		default:
			run = 1
		}
		if run > longest {
			longest = run
		}

		// The current streak belongs to the run that includes the most recent date.
		if tracking {
			if run == 0 || (i != last && run == 1) {
				tracking = false
			} else {
				current = run
			}
		}
		later = day
	}
	return current, longest
}
