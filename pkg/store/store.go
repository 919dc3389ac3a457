package store

import (
	"time"

	"stillmind/pkg/domain"
)

// ContentFilter narrows catalog reads for search and recommendations.
// Zero values mean "no constraint".
type ContentFilter struct {
	Query          string
	ContentType    domain.ContentType
	Category       string
	Difficulty     domain.Difficulty
	MinDuration    int
	MaxDuration    int
	ExcludeIDs     []string
	IncludePremium bool
	Limit          int
	Offset         int
}

// Store defines persistence operations for sessions, moods, the content
// catalog, favorites, billing state, and admin accounts.
type Store interface {
	// sessions
	SaveSession(domain.Session) error
	ListSessionsSince(userID string, since time.Time) ([]domain.Session, error)
	SessionDates(userID string) ([]time.Time, error)
	SessionTypes(userID string) ([]string, error)
	CompletedSessionCount(userID string) (int, error)
	CompletedContentIDs(userID string) ([]string, error)

	// moods
	UpsertMood(domain.MoodEntry) error
	ListMoodsSince(userID string, since time.Time) ([]domain.MoodEntry, error)

	// content catalog
	SaveContent(domain.Content) error
	GetContent(id string) (domain.Content, bool, error)
	SearchContent(filter ContentFilter) ([]domain.Content, int64, error)

	// favorites
	ToggleFavorite(userID, contentID string) (bool, error)
	ListFavorites(userID string) ([]domain.Content, error)

	// per-user stats
	GetStats(userID string) (domain.UserStats, bool, error)
	SaveStats(domain.UserStats) error

	// billing
	UpsertSubscription(domain.Subscription) error
	HasActiveSubscription(userID string) (bool, error)
	InsertPayment(domain.Payment) (bool, error)

	// admin
	GetAdminByUsername(username string) (domain.AdminUser, bool, error)
	SaveAdmin(domain.AdminUser) error
	ListUserStats() ([]domain.UserStats, error)
	PlatformStats() (domain.PlatformStats, error)
}
