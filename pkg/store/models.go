package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"stillmind/pkg/domain"
)

// GORM models used for persistence.
type SessionModel struct {
	ID              string    `gorm:"primaryKey"`
	UserID          string    `gorm:"not null;index"`
	ContentID       string    `gorm:"not null;index"`
	SessionType     string    `gorm:"not null"`
	DurationSeconds int       `gorm:"not null"`
	Completed       bool      `gorm:"not null"`
	SessionDate     time.Time `gorm:"not null;index"`
	CreatedAt       time.Time `gorm:"not null"`
}

type MoodModel struct {
	ID           string         `gorm:"primaryKey"`
	UserID       string         `gorm:"not null;uniqueIndex:idx_mood_user_date"`
	TrackingDate time.Time      `gorm:"not null;uniqueIndex:idx_mood_user_date"`
	MoodScore    int            `gorm:"not null"`
	Emotions     datatypes.JSON `gorm:"type:jsonb"`
}

type ContentModel struct {
	ID              string `gorm:"primaryKey"`
	Title           string `gorm:"not null"`
	Description     string
	ContentType     string `gorm:"not null;index"`
	Category        string `gorm:"index"`
	DifficultyLevel string `gorm:"not null"`
	DurationSeconds int    `gorm:"not null"`
	IsPremium       bool   `gorm:"not null"`
	IsFeatured      bool   `gorm:"not null"`
	RatingAverage   float64
	Tags            datatypes.JSON `gorm:"type:jsonb"`
	MediaKey        string
	CreatedAt       time.Time `gorm:"not null"`
}

type FavoriteModel struct {
	UserID    string    `gorm:"primaryKey"`
	ContentID string    `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
}

type UserStatsModel struct {
	UserID          string `gorm:"primaryKey"`
	TotalSessions   int    `gorm:"not null"`
	TotalMinutes    int    `gorm:"not null"`
	CurrentStreak   int    `gorm:"not null"`
	LongestStreak   int    `gorm:"not null"`
	LastSessionDate time.Time
}

type SubscriptionModel struct {
	UserID                 string `gorm:"primaryKey"`
	ProviderCustomerID     string `gorm:"index"`
	ProviderSubscriptionID string `gorm:"index"`
	Plan                   string
	Status                 string    `gorm:"not null"`
	CurrentPeriodEnd       time.Time `gorm:"not null"`
	UpdatedAt              time.Time `gorm:"not null"`
}

type PaymentModel struct {
	ID              string    `gorm:"primaryKey"`
	UserID          string    `gorm:"not null;index"`
	ProviderEventID string    `gorm:"uniqueIndex;not null"`
	AmountCents     int64     `gorm:"not null"`
	Currency        string    `gorm:"not null"`
	Status          string    `gorm:"not null"`
	CreatedAt       time.Time `gorm:"not null"`
}

type AdminUserModel struct {
	ID           string    `gorm:"primaryKey"`
	Username     string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func sessionToModel(s domain.Session) SessionModel {
	return SessionModel{
		ID:              s.ID,
		UserID:          s.UserID,
		ContentID:       s.ContentID,
		SessionType:     s.SessionType,
		DurationSeconds: s.DurationSeconds,
		Completed:       s.Completed,
		SessionDate:     s.SessionDate,
		CreatedAt:       s.CreatedAt,
	}
}

func sessionFromModel(m SessionModel) domain.Session {
	return domain.Session{
		ID:              m.ID,
		UserID:          m.UserID,
		ContentID:       m.ContentID,
		SessionType:     m.SessionType,
		DurationSeconds: m.DurationSeconds,
		Completed:       m.Completed,
		SessionDate:     m.SessionDate,
		CreatedAt:       m.CreatedAt,
	}
}

func moodToModel(e domain.MoodEntry) MoodModel {
	return MoodModel{
		ID:           e.ID,
		UserID:       e.UserID,
		TrackingDate: e.TrackingDate,
		MoodScore:    e.MoodScore,
		Emotions:     stringsToJSON(e.Emotions),
	}
}

func moodFromModel(m MoodModel) domain.MoodEntry {
	return domain.MoodEntry{
		ID:           m.ID,
		UserID:       m.UserID,
		TrackingDate: m.TrackingDate,
		MoodScore:    m.MoodScore,
		Emotions:     jsonToStrings(m.Emotions),
	}
}

func contentToModel(c domain.Content) ContentModel {
	return ContentModel{
		ID:              c.ID,
		Title:           c.Title,
		Description:     c.Description,
		ContentType:     string(c.ContentType),
		Category:        c.Category,
		DifficultyLevel: string(c.DifficultyLevel),
		DurationSeconds: c.DurationSeconds,
		IsPremium:       c.IsPremium,
		IsFeatured:      c.IsFeatured,
		RatingAverage:   c.RatingAverage,
		Tags:            stringsToJSON(c.Tags),
		MediaKey:        c.MediaKey,
		CreatedAt:       c.CreatedAt,
	}
}

func contentFromModel(m ContentModel) domain.Content {
	return domain.Content{
		ID:              m.ID,
		Title:           m.Title,
		Description:     m.Description,
		ContentType:     domain.ContentType(m.ContentType),
		Category:        m.Category,
		DifficultyLevel: domain.Difficulty(m.DifficultyLevel),
		DurationSeconds: m.DurationSeconds,
		IsPremium:       m.IsPremium,
		IsFeatured:      m.IsFeatured,
		RatingAverage:   m.RatingAverage,
		Tags:            jsonToStrings(m.Tags),
		MediaKey:        m.MediaKey,
		CreatedAt:       m.CreatedAt,
	}
}

func statsToModel(s domain.UserStats) UserStatsModel {
	return UserStatsModel{
		UserID:          s.UserID,
		TotalSessions:   s.TotalSessions,
		TotalMinutes:    s.TotalMinutes,
		CurrentStreak:   s.CurrentStreak,
		LongestStreak:   s.LongestStreak,
		LastSessionDate: s.LastSessionDate,
	}
}

func statsFromModel(m UserStatsModel) domain.UserStats {
	return domain.UserStats{
		UserID:          m.UserID,
		TotalSessions:   m.TotalSessions,
		TotalMinutes:    m.TotalMinutes,
		CurrentStreak:   m.CurrentStreak,
		LongestStreak:   m.LongestStreak,
		LastSessionDate: m.LastSessionDate,
	}
}

func subscriptionToModel(s domain.Subscription) SubscriptionModel {
	return SubscriptionModel{
		UserID:                 s.UserID,
		ProviderCustomerID:     s.ProviderCustomerID,
		ProviderSubscriptionID: s.ProviderSubscriptionID,
		Plan:                   s.Plan,
		Status:                 string(s.Status),
		CurrentPeriodEnd:       s.CurrentPeriodEnd,
		UpdatedAt:              s.UpdatedAt,
	}
}

func paymentToModel(p domain.Payment) PaymentModel {
	return PaymentModel{
		ID:              p.ID,
		UserID:          p.UserID,
		ProviderEventID: p.ProviderEventID,
		AmountCents:     p.AmountCents,
		Currency:        p.Currency,
		Status:          p.Status,
		CreatedAt:       p.CreatedAt,
	}
}

func adminToModel(a domain.AdminUser) AdminUserModel {
	return AdminUserModel{
		ID:           a.ID,
		Username:     a.Username,
		PasswordHash: a.PasswordHash,
		CreatedAt:    a.CreatedAt,
	}
}

func adminFromModel(m AdminUserModel) domain.AdminUser {
	return domain.AdminUser{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
	}
}

func stringsToJSON(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(raw)
}

func jsonToStrings(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}
