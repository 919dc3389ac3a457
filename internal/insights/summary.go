package insights

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"stillmind/pkg/domain"
)

// Timeframe selects the analytics window.
type Timeframe string

const (
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
	TimeframeYear  Timeframe = "year"
)

// ErrUnknownTimeframe is returned for timeframe values outside week/month/year.
var ErrUnknownTimeframe = errors.New("unknown timeframe")

// ParseTimeframe normalizes the client's timeframe selector. Empty input
// defaults to week.
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(strings.ToLower(strings.TrimSpace(s))) {
	case "", TimeframeWeek:
		return TimeframeWeek, nil
	case TimeframeMonth:
		return TimeframeMonth, nil
	case TimeframeYear:
		return TimeframeYear, nil
	default:
		return "", ErrUnknownTimeframe
	}
}

// WindowStart returns the inclusive start of the analytics window.
func WindowStart(now time.Time, tf Timeframe) time.Time {
	switch tf {
	case TimeframeMonth:
		return now.AddDate(0, -1, 0)
	case TimeframeYear:
		return now.AddDate(-1, 0, 0)
	default:
		return now.AddDate(0, 0, -7)
	}
}

// Overview is the headline counter block of a summary.
type Overview struct {
	TotalSessions  int     `json:"totalSessions"`
	TotalMinutes   int     `json:"totalMinutes"`
	CompletionRate int     `json:"completionRate"`
	CurrentStreak  int     `json:"currentStreak"`
	LongestStreak  int     `json:"longestStreak"`
	AverageMood    float64 `json:"averageMood"`
}

// DailyActivity is one day's session totals.
type DailyActivity struct {
	Date     string `json:"date"`
	Sessions int    `json:"sessions"`
	Minutes  int    `json:"minutes"`
}

// MoodPoint is one entry of the mood time series.
type MoodPoint struct {
	Date  string `json:"date"`
	Score int    `json:"score"`
}

// Achievement is a derived milestone. The list is recomputed from the
// aggregated counters on every call and never persisted.
type Achievement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Summary is the full analytics response body.
type Summary struct {
	Timeframe     Timeframe       `json:"timeframe"`
	Overview      Overview        `json:"overview"`
	TypeBreakdown map[string]int  `json:"typeBreakdown"`
	DailyActivity []DailyActivity `json:"dailyActivity"`
	MoodSeries    []MoodPoint     `json:"moodSeries"`
	Achievements  []Achievement   `json:"achievements"`
}

type achievementRule struct {
	id, title, description string
	earned                 func(Overview) bool
}

var achievementRules = []achievementRule{
	{"first_session", "First Step", "Complete your first session",
		func(o Overview) bool { return o.TotalSessions >= 1 }},
	{"ten_sessions", "Getting Into It", "Complete 10 sessions",
		func(o Overview) bool { return o.TotalSessions >= 10 }},
	{"fifty_sessions", "Committed", "Complete 50 sessions",
		func(o Overview) bool { return o.TotalSessions >= 50 }},
	{"week_streak", "One Week Strong", "Practice 7 days in a row",
		func(o Overview) bool { return o.LongestStreak >= 7 }},
	{"month_streak", "Monthly Devotion", "Practice 30 days in a row",
		func(o Overview) bool { return o.LongestStreak >= 30 }},
	{"hour_of_calm", "Hour of Calm", "Accumulate 60 minutes of practice",
		func(o Overview) bool { return o.TotalMinutes >= 60 }},
	{"ten_hours", "Deep Practice", "Accumulate 600 minutes of practice",
		func(o Overview) bool { return o.TotalMinutes >= 600 }},
}

// BuildSummary reduces a user's windowed sessions and moods, plus the
// all-history session dates used for streaks, into one summary object.
func BuildSummary(tf Timeframe, sessions []domain.Session, moods []domain.MoodEntry, allDates []time.Time, now time.Time) Summary {
	overview := Overview{
		CurrentStreak: CurrentStreak(allDates, now),
		LongestStreak: LongestStreak(allDates),
	}

	completed := 0
	totalSeconds := 0
	byType := make(map[string]int)
	byDay := make(map[string]*DailyActivity)
	for _, s := range sessions {
		overview.TotalSessions++
		totalSeconds += s.DurationSeconds
		if s.Completed {
			completed++
		}
		byType[s.SessionType]++
		key := day(s.SessionDate).Format("2006-01-02")
		entry, ok := byDay[key]
		if !ok {
			entry = &DailyActivity{Date: key}
			byDay[key] = entry
		}
		entry.Sessions++
		entry.Minutes += s.DurationSeconds / 60
	}
	overview.TotalMinutes = totalSeconds / 60
	if overview.TotalSessions > 0 {
		overview.CompletionRate = int(math.Round(100 * float64(completed) / float64(overview.TotalSessions)))
	}

	moodSeries := make([]MoodPoint, 0, len(moods))
	moodSum := 0
	for _, e := range moods {
		moodSeries = append(moodSeries, MoodPoint{
			Date:  day(e.TrackingDate).Format("2006-01-02"),
			Score: e.MoodScore,
		})
		moodSum += e.MoodScore
	}
	if len(moods) > 0 {
		overview.AverageMood = math.Round(10*float64(moodSum)/float64(len(moods))) / 10
	}

	daily := make([]DailyActivity, 0, len(byDay))
	for _, entry := range byDay {
		daily = append(daily, *entry)
	}
	sort.Slice(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })

	achievements := make([]Achievement, 0, len(achievementRules))
	for _, rule := range achievementRules {
		if rule.earned(overview) {
			achievements = append(achievements, Achievement{
				ID:          rule.id,
				Title:       rule.title,
				Description: rule.description,
			})
		}
	}

	return Summary{
		Timeframe:     tf,
		Overview:      overview,
		TypeBreakdown: byType,
		DailyActivity: daily,
		MoodSeries:    moodSeries,
		Achievements:  achievements,
	}
}
