package domain

import "time"

type ContentType string

const (
	ContentMeditation ContentType = "meditation"
	ContentBreathing  ContentType = "breathing"
	ContentSleep      ContentType = "sleep"
	ContentSoundscape ContentType = "soundscape"
)

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// Session is one recorded practice instance for a user.
type Session struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	ContentID       string    `json:"contentId"`
	SessionType     string    `json:"sessionType"`
	DurationSeconds int       `json:"durationSeconds"`
	Completed       bool      `json:"completed"`
	SessionDate     time.Time `json:"sessionDate"`
	CreatedAt       time.Time `json:"createdAt"`
}

// MoodEntry is a single daily mood record. One entry per user per day;
// a second write for the same day replaces the first.
type MoodEntry struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	TrackingDate time.Time `json:"trackingDate"`
	MoodScore    int       `json:"moodScore"`
	Emotions     []string  `json:"emotions"`
}

// Content is a catalog item (guided meditation, breathing exercise, ...).
type Content struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	ContentType     ContentType `json:"contentType"`
	Category        string      `json:"category"`
	DifficultyLevel Difficulty  `json:"difficultyLevel"`
	DurationSeconds int         `json:"durationSeconds"`
	IsPremium       bool        `json:"isPremium"`
	IsFeatured      bool        `json:"isFeatured"`
	RatingAverage   float64     `json:"ratingAverage"`
	Tags            []string    `json:"tags"`
	MediaKey        string      `json:"-"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// ScoredContent is a catalog item annotated with its recommendation score.
type ScoredContent struct {
	Content
	RecommendationScore float64 `json:"recommendationScore"`
}

// UserStats is the running per-user counter row maintained on each
// recorded session.
type UserStats struct {
	UserID          string    `json:"userId"`
	TotalSessions   int       `json:"totalSessions"`
	TotalMinutes    int       `json:"totalMinutes"`
	CurrentStreak   int       `json:"currentStreak"`
	LongestStreak   int       `json:"longestStreak"`
	LastSessionDate time.Time `json:"lastSessionDate"`
}

// Subscription mirrors the payment provider's subscription state for a user.
type Subscription struct {
	UserID                 string             `json:"userId"`
	ProviderCustomerID     string             `json:"providerCustomerId"`
	ProviderSubscriptionID string             `json:"providerSubscriptionId"`
	Plan                   string             `json:"plan"`
	Status                 SubscriptionStatus `json:"status"`
	CurrentPeriodEnd       time.Time          `json:"currentPeriodEnd"`
	UpdatedAt              time.Time          `json:"updatedAt"`
}

// Payment is one settled (or failed) charge, keyed by the provider's
// event id so replayed webhook deliveries are no-ops.
type Payment struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	ProviderEventID string    `json:"providerEventId"`
	AmountCents     int64     `json:"amountCents"`
	Currency        string    `json:"currency"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
}

// AdminUser is an operator account for the admin surface.
type AdminUser struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ChatReply is the companion's answer to one chat turn.
type ChatReply struct {
	UserID    string    `json:"userId"`
	Message   string    `json:"message"`
	Reply     string    `json:"reply"`
	CreatedAt time.Time `json:"createdAt"`
}

// PlatformStats are the admin dashboard totals.
type PlatformStats struct {
	TotalUsers          int   `json:"totalUsers"`
	TotalSessions       int64 `json:"totalSessions"`
	TotalMinutes        int64 `json:"totalMinutes"`
	TotalContent        int   `json:"totalContent"`
	ActiveSubscriptions int   `json:"activeSubscriptions"`
	SessionsLastWeek    int64 `json:"sessionsLastWeek"`
}
