package insights

import (
	"sort"

	"stillmind/pkg/domain"
)

// Score weights for catalog recommendations. The score is additive and
// order-independent: base rating plus fixed bonuses.
const (
	typeMatchBonus    = 1.0
	featuredBonus     = 0.5
	beginnerBonus     = 0.5
	advancedBonus     = 0.3
	beginnerThreshold = 5
	advancedThreshold = 10
)

// Profile is the slice of user history the scorer needs.
type Profile struct {
	// SessionTypes holds one entry per completed session.
	SessionTypes []string
	// CompletedSessions is the user's all-time completed session count.
	CompletedSessions int
}

// MostUsedSessionType returns the plurality winner of the user's session
// types. Ties break lexicographically so the result is deterministic.
func MostUsedSessionType(types []string) string {
	if len(types) == 0 {
		return ""
	}
	counts := make(map[string]int, len(types))
	for _, t := range types {
		counts[t]++
	}
	best := ""
	bestCount := 0
	for t, n := range counts {
		if n > bestCount || (n == bestCount && t < best) {
			best = t
			bestCount = n
		}
	}
	return best
}

// ScoreContent annotates each catalog item with its recommendation score
// and returns the slice sorted by score descending. Equal scores keep a
// stable order by content id ascending.
func ScoreContent(items []domain.Content, profile Profile) []domain.ScoredContent {
	typeSeen := make(map[domain.ContentType]struct{}, len(profile.SessionTypes))
	for _, t := range profile.SessionTypes {
		typeSeen[domain.ContentType(t)] = struct{}{}
	}

	scored := make([]domain.ScoredContent, 0, len(items))
	for _, item := range items {
		score := item.RatingAverage
		if _, ok := typeSeen[item.ContentType]; ok {
			score += typeMatchBonus
		}
		if item.IsFeatured {
			score += featuredBonus
		}
		if profile.CompletedSessions < beginnerThreshold && item.DifficultyLevel == domain.DifficultyBeginner {
			score += beginnerBonus
		}
		if profile.CompletedSessions >= advancedThreshold && item.DifficultyLevel == domain.DifficultyAdvanced {
			score += advancedBonus
		}
		scored = append(scored, domain.ScoredContent{Content: item, RecommendationScore: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].RecommendationScore != scored[j].RecommendationScore {
			return scored[i].RecommendationScore > scored[j].RecommendationScore
		}
		return scored[i].ID < scored[j].ID
	})
	return scored
}
