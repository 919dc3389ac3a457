// Package insights holds the pure aggregation functions behind analytics,
// recommendations, and achievements. Everything here is side-effect free:
// rows in, summaries out.
package insights

import "time"

// day truncates to a UTC calendar date.
func day(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

// CurrentStreak counts consecutive practice days ending today. dates must
// be distinct calendar dates in ascending order. The walk runs backward
// from the most recent date and stops at the first day that does not match
// the expected calendar position.
func CurrentStreak(dates []time.Time, today time.Time) int {
	today = day(today)
	streak := 0
	for i := len(dates) - 1; i >= 0; i-- {
		expected := today.AddDate(0, 0, -streak)
		if !day(dates[i]).Equal(expected) {
			break
		}
		streak++
	}
	return streak
}

// LongestStreak returns the longest run of consecutive calendar days.
// The running counter resets whenever two adjacent dates are more than
// one day apart, so a gapped history never counts as one long run.
func LongestStreak(dates []time.Time) int {
	if len(dates) == 0 {
		return 0
	}
	longest := 1
	run := 1
	for i := 1; i < len(dates); i++ {
		gap := day(dates[i]).Sub(day(dates[i-1]))
		if gap == 24*time.Hour {
			run++
		} else if gap > 24*time.Hour {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}
