package insights

import (
	"math"
	"testing"
	"time"

	"stillmind/pkg/domain"
)

func session(date time.Time, sessionType string, seconds int, completed bool) domain.Session {
	return domain.Session{
		UserID:          "u1",
		ContentID:       "c1",
		SessionType:     sessionType,
		DurationSeconds: seconds,
		Completed:       completed,
		SessionDate:     date,
	}
}

func TestParseTimeframe(t *testing.T) {
	for input, want := range map[string]Timeframe{
		"":      TimeframeWeek,
		"week":  TimeframeWeek,
		"MONTH": TimeframeMonth,
		"year":  TimeframeYear,
	} {
		got, err := ParseTimeframe(input)
		if err != nil {
			t.Fatalf("ParseTimeframe(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseTimeframe(%q) = %q, want %q", input, got, want)
		}
	}
	if _, err := ParseTimeframe("decade"); err == nil {
		t.Fatal("expected error for unknown timeframe")
	}
}

func TestWindowStart(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	if got := WindowStart(now, TimeframeWeek); !got.Equal(now.AddDate(0, 0, -7)) {
		t.Fatalf("week window start = %v", got)
	}
	if got := WindowStart(now, TimeframeMonth); !got.Equal(time.Date(2024, time.February, 15, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("month window start = %v", got)
	}
	if got := WindowStart(now, TimeframeYear); !got.Equal(time.Date(2023, time.March, 15, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("year window start = %v", got)
	}
}

func TestBuildSummaryOverview(t *testing.T) {
	now := d(2024, time.January, 7)
	sessions := []domain.Session{
		session(d(2024, time.January, 5), "meditation", 600, true),
		session(d(2024, time.January, 6), "meditation", 900, true),
		session(d(2024, time.January, 7), "breathing", 300, false),
	}
	moods := []domain.MoodEntry{
		{UserID: "u1", TrackingDate: d(2024, time.January, 6), MoodScore: 7},
		{UserID: "u1", TrackingDate: d(2024, time.January, 7), MoodScore: 8},
	}
	dates := []time.Time{
		d(2024, time.January, 1),
		d(2024, time.January, 2),
		d(2024, time.January, 3),
		d(2024, time.January, 5),
		d(2024, time.January, 6),
		d(2024, time.January, 7),
	}

	sum := BuildSummary(TimeframeWeek, sessions, moods, dates, now)

	if sum.Overview.TotalSessions != 3 {
		t.Fatalf("total sessions = %d, want 3", sum.Overview.TotalSessions)
	}
	if sum.Overview.TotalMinutes != 30 {
		t.Fatalf("total minutes = %d, want 30", sum.Overview.TotalMinutes)
	}
	// 2 of 3 completed -> round(66.67) = 67.
	if sum.Overview.CompletionRate != 67 {
		t.Fatalf("completion rate = %d, want 67", sum.Overview.CompletionRate)
	}
	if sum.Overview.CurrentStreak != 3 || sum.Overview.LongestStreak != 3 {
		t.Fatalf("streaks = %d/%d, want 3/3", sum.Overview.CurrentStreak, sum.Overview.LongestStreak)
	}
	if math.Abs(sum.Overview.AverageMood-7.5) > 1e-9 {
		t.Fatalf("average mood = %v, want 7.5", sum.Overview.AverageMood)
	}
	if sum.TypeBreakdown["meditation"] != 2 || sum.TypeBreakdown["breathing"] != 1 {
		t.Fatalf("type breakdown = %v", sum.TypeBreakdown)
	}
}

func TestBuildSummaryEmptyWindow(t *testing.T) {
	sum := BuildSummary(TimeframeWeek, nil, nil, nil, d(2024, time.January, 1))
	if sum.Overview.CompletionRate != 0 {
		t.Fatalf("completion rate on empty window = %d, want 0", sum.Overview.CompletionRate)
	}
	if sum.Overview.AverageMood != 0 {
		t.Fatalf("average mood on empty window = %v, want 0", sum.Overview.AverageMood)
	}
	if len(sum.Achievements) != 0 {
		t.Fatalf("achievements on empty window = %v, want none", sum.Achievements)
	}
}

func TestBuildSummaryDailyActivitySorted(t *testing.T) {
	now := d(2024, time.February, 3)
	sessions := []domain.Session{
		session(d(2024, time.February, 3), "sleep", 300, true),
		session(d(2024, time.February, 1), "sleep", 300, true),
		session(d(2024, time.February, 1), "sleep", 600, true),
	}
	sum := BuildSummary(TimeframeWeek, sessions, nil, nil, now)
	if len(sum.DailyActivity) != 2 {
		t.Fatalf("daily activity length = %d, want 2", len(sum.DailyActivity))
	}
	first := sum.DailyActivity[0]
	if first.Date != "2024-02-01" || first.Sessions != 2 || first.Minutes != 15 {
		t.Fatalf("first day = %+v", first)
	}
	if sum.DailyActivity[1].Date != "2024-02-03" {
		t.Fatalf("second day = %+v", sum.DailyActivity[1])
	}
}

func TestAchievementThresholds(t *testing.T) {
	now := d(2024, time.June, 30)
	var sessions []domain.Session
	var dates []time.Time
	// 12 completed sessions across 12 consecutive days, 10 minutes each.
	for i := 0; i < 12; i++ {
		date := d(2024, time.June, 1+i)
		sessions = append(sessions, session(date, "meditation", 600, true))
		dates = append(dates, date)
	}
	sum := BuildSummary(TimeframeMonth, sessions, nil, dates, now)

	got := make(map[string]bool, len(sum.Achievements))
	for _, a := range sum.Achievements {
		got[a.ID] = true
	}
	for _, id := range []string{"first_session", "ten_sessions", "week_streak", "hour_of_calm"} {
		if !got[id] {
			t.Fatalf("expected achievement %q, got %v", id, got)
		}
	}
	for _, id := range []string{"fifty_sessions", "month_streak", "ten_hours"} {
		if got[id] {
			t.Fatalf("achievement %q should not be earned, got %v", id, got)
		}
	}
}
