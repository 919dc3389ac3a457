package insights

import (
	"math"
	"testing"

	"stillmind/pkg/domain"
)

func TestScoreContentAdditive(t *testing.T) {
	// Featured advanced item matching the user's most used type, user has
	// 12 completed sessions: 4.0 + 1.0 + 0.5 + 0.3 = 5.8.
	item := domain.Content{
		ID:              "c1",
		ContentType:     domain.ContentMeditation,
		DifficultyLevel: domain.DifficultyAdvanced,
		IsFeatured:      true,
		RatingAverage:   4.0,
	}
	profile := Profile{
		SessionTypes:      []string{"meditation", "breathing", "meditation"},
		CompletedSessions: 12,
	}
	scored := ScoreContent([]domain.Content{item}, profile)
	if len(scored) != 1 {
		t.Fatalf("expected 1 scored item, got %d", len(scored))
	}
	if got := scored[0].RecommendationScore; math.Abs(got-5.8) > 1e-9 {
		t.Fatalf("score = %v, want 5.8", got)
	}
}

func TestScoreContentBeginnerBonus(t *testing.T) {
	item := domain.Content{
		ID:              "c1",
		ContentType:     domain.ContentSleep,
		DifficultyLevel: domain.DifficultyBeginner,
		RatingAverage:   3.0,
	}
	newbie := Profile{CompletedSessions: 2}
	veteran := Profile{CompletedSessions: 20}

	if got := ScoreContent([]domain.Content{item}, newbie)[0].RecommendationScore; math.Abs(got-3.5) > 1e-9 {
		t.Fatalf("newbie score = %v, want 3.5", got)
	}
	if got := ScoreContent([]domain.Content{item}, veteran)[0].RecommendationScore; math.Abs(got-3.0) > 1e-9 {
		t.Fatalf("veteran score = %v, want 3.0", got)
	}
}

func TestScoreMonotonicInRating(t *testing.T) {
	base := domain.Content{
		ID:              "c1",
		ContentType:     domain.ContentBreathing,
		DifficultyLevel: domain.DifficultyIntermediate,
	}
	profile := Profile{CompletedSessions: 7}
	prev := -1.0
	for _, rating := range []float64{0, 1.5, 3.2, 4.9} {
		item := base
		item.RatingAverage = rating
		got := ScoreContent([]domain.Content{item}, profile)[0].RecommendationScore
		if got < prev {
			t.Fatalf("score decreased as rating rose: rating %v -> score %v (prev %v)", rating, got, prev)
		}
		prev = got
	}
}

func TestScoreContentSortsDescendingWithIDTieBreak(t *testing.T) {
	items := []domain.Content{
		{ID: "b", RatingAverage: 2.0},
		{ID: "a", RatingAverage: 2.0},
		{ID: "c", RatingAverage: 4.0},
	}
	scored := ScoreContent(items, Profile{CompletedSessions: 7})
	gotOrder := []string{scored[0].ID, scored[1].ID, scored[2].ID}
	wantOrder := []string{"c", "a", "b"}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("order = %v, want %v", gotOrder, wantOrder)
		}
	}
}

func TestMostUsedSessionType(t *testing.T) {
	cases := []struct {
		name  string
		types []string
		want  string
	}{
		{"empty", nil, ""},
		{"plurality", []string{"sleep", "meditation", "sleep"}, "sleep"},
		{"tie breaks lexicographically", []string{"sleep", "breathing", "breathing", "sleep"}, "breathing"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MostUsedSessionType(tc.types); got != tc.want {
				t.Fatalf("MostUsedSessionType(%v) = %q, want %q", tc.types, got, tc.want)
			}
		})
	}
}
