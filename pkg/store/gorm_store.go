package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"stillmind/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(
		&SessionModel{},
		&MoodModel{},
		&ContentModel{},
		&FavoriteModel{},
		&UserStatsModel{},
		&SubscriptionModel{},
		&PaymentModel{},
		&AdminUserModel{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveSession stores one recorded session.
func (s *GormStore) SaveSession(sess domain.Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	model := sessionToModel(sess)
	return s.db.Create(&model).Error
}

// ListSessionsSince returns the user's sessions on or after since,
// oldest first.
func (s *GormStore) ListSessionsSince(userID string, since time.Time) ([]domain.Session, error) {
	var models []SessionModel
	err := s.db.
		Where("user_id = ? AND session_date >= ?", userID, since).
		Order("session_date ASC, created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.Session, 0, len(models))
	for _, m := range models {
		res = append(res, sessionFromModel(m))
	}
	return res, nil
}

// SessionDates returns the distinct dates carrying at least one
// completed session, ascending. Streaks only count completed practice.
func (s *GormStore) SessionDates(userID string) ([]time.Time, error) {
	var dates []time.Time
	err := s.db.Model(&SessionModel{}).
		Where("user_id = ? AND completed = ?", userID, true).
		Distinct("session_date").
		Order("session_date ASC").
		Pluck("session_date", &dates).Error
	if err != nil {
		return nil, err
	}
	return dates, nil
}

// SessionTypes returns the type of every completed session, one entry
// per session so callers can count pluralities.
func (s *GormStore) SessionTypes(userID string) ([]string, error) {
	var types []string
	err := s.db.Model(&SessionModel{}).
		Where("user_id = ? AND completed = ?", userID, true).
		Order("created_at ASC").
		Pluck("session_type", &types).Error
	if err != nil {
		return nil, err
	}
	return types, nil
}

// CompletedSessionCount returns the number of completed sessions.
func (s *GormStore) CompletedSessionCount(userID string) (int, error) {
	var count int64
	err := s.db.Model(&SessionModel{}).
		Where("user_id = ? AND completed = ?", userID, true).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// CompletedContentIDs returns the distinct catalog ids the user finished.
func (s *GormStore) CompletedContentIDs(userID string) ([]string, error) {
	var ids []string
	err := s.db.Model(&SessionModel{}).
		Where("user_id = ? AND completed = ?", userID, true).
		Distinct("content_id").
		Pluck("content_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// UpsertMood writes the day's mood entry, replacing an earlier one for
// the same user and tracking date.
func (s *GormStore) UpsertMood(e domain.MoodEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	model := moodToModel(e)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "tracking_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"mood_score", "emotions"}),
	}).Create(&model).Error
}

// ListMoodsSince returns mood entries on or after since, oldest first.
func (s *GormStore) ListMoodsSince(userID string, since time.Time) ([]domain.MoodEntry, error) {
	var models []MoodModel
	err := s.db.
		Where("user_id = ? AND tracking_date >= ?", userID, since).
		Order("tracking_date ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.MoodEntry, 0, len(models))
	for _, m := range models {
		res = append(res, moodFromModel(m))
	}
	return res, nil
}

// SaveContent stores or updates a catalog item.
func (s *GormStore) SaveContent(c domain.Content) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	model := contentToModel(c)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "description", "content_type", "category", "difficulty_level",
			"duration_seconds", "is_premium", "is_featured", "rating_average", "tags", "media_key",
		}),
	}).Create(&model).Error
}

// GetContent retrieves a catalog item.
func (s *GormStore) GetContent(id string) (domain.Content, bool, error) {
	var model ContentModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Content{}, false, nil
		}
		return domain.Content{}, false, err
	}
	return contentFromModel(model), true, nil
}

// SearchContent returns matching catalog items plus the unpaginated total.
// Results keep a stable order (created_at, then id) so ties are
// reproducible across calls.
func (s *GormStore) SearchContent(filter ContentFilter) ([]domain.Content, int64, error) {
	tx := s.db.Model(&ContentModel{})
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		tx = tx.Where("title ILIKE ? OR description ILIKE ? OR tags::text ILIKE ?", like, like, like)
	}
	if filter.ContentType != "" {
		tx = tx.Where("content_type = ?", string(filter.ContentType))
	}
	if filter.Category != "" {
		tx = tx.Where("category = ?", filter.Category)
	}
	if filter.Difficulty != "" {
		tx = tx.Where("difficulty_level = ?", string(filter.Difficulty))
	}
	if filter.MinDuration > 0 {
		tx = tx.Where("duration_seconds >= ?", filter.MinDuration)
	}
	if filter.MaxDuration > 0 {
		tx = tx.Where("duration_seconds <= ?", filter.MaxDuration)
	}
	if !filter.IncludePremium {
		tx = tx.Where("is_premium = ?", false)
	}
	if len(filter.ExcludeIDs) > 0 {
		tx = tx.Where("id NOT IN ?", filter.ExcludeIDs)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	tx = tx.Order("created_at ASC, id ASC")
	if filter.Limit > 0 {
		tx = tx.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		tx = tx.Offset(filter.Offset)
	}
	var models []ContentModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, 0, err
	}
	res := make([]domain.Content, 0, len(models))
	for _, m := range models {
		res = append(res, contentFromModel(m))
	}
	return res, total, nil
}

// ToggleFavorite flips the favorite mark and reports the new state.
func (s *GormStore) ToggleFavorite(userID, contentID string) (bool, error) {
	res := s.db.Delete(&FavoriteModel{}, "user_id = ? AND content_id = ?", userID, contentID)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return false, nil
	}
	fav := FavoriteModel{UserID: userID, ContentID: contentID, CreatedAt: time.Now().UTC()}
	if err := s.db.Create(&fav).Error; err != nil {
		return false, err
	}
	return true, nil
}

// ListFavorites returns the user's favorited catalog items, most recent
// favorite first.
func (s *GormStore) ListFavorites(userID string) ([]domain.Content, error) {
	var models []ContentModel
	err := s.db.Model(&ContentModel{}).
		Joins("JOIN favorite_models ON favorite_models.content_id = content_models.id").
		Where("favorite_models.user_id = ?", userID).
		Order("favorite_models.created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.Content, 0, len(models))
	for _, m := range models {
		res = append(res, contentFromModel(m))
	}
	return res, nil
}

// GetStats returns a user's counter row.
func (s *GormStore) GetStats(userID string) (domain.UserStats, bool, error) {
	var model UserStatsModel
	if err := s.db.First(&model, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.UserStats{}, false, nil
		}
		return domain.UserStats{}, false, err
	}
	return statsFromModel(model), true, nil
}

// SaveStats upserts a user's counter row.
func (s *GormStore) SaveStats(stats domain.UserStats) error {
	model := statsToModel(stats)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_sessions", "total_minutes", "current_streak", "longest_streak", "last_session_date",
		}),
	}).Create(&model).Error
}

// UpsertSubscription mirrors provider subscription state. Reapplying the
// same event is safe.
func (s *GormStore) UpsertSubscription(sub domain.Subscription) error {
	model := subscriptionToModel(sub)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider_customer_id", "provider_subscription_id", "plan", "status",
			"current_period_end", "updated_at",
		}),
	}).Create(&model).Error
}

// HasActiveSubscription reports whether the user currently has premium access.
func (s *GormStore) HasActiveSubscription(userID string) (bool, error) {
	var count int64
	err := s.db.Model(&SubscriptionModel{}).
		Where("user_id = ? AND status = ? AND current_period_end > ?",
			userID, string(domain.SubscriptionActive), time.Now().UTC()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// InsertPayment records a charge. Returns false without error when the
// provider event was already recorded.
func (s *GormStore) InsertPayment(p domain.Payment) (bool, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	model := paymentToModel(p)
	res := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_event_id"}},
		DoNothing: true,
	}).Create(&model)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetAdminByUsername looks up an operator account.
func (s *GormStore) GetAdminByUsername(username string) (domain.AdminUser, bool, error) {
	var model AdminUserModel
	if err := s.db.First(&model, "username = ?", username).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.AdminUser{}, false, nil
		}
		return domain.AdminUser{}, false, err
	}
	return adminFromModel(model), true, nil
}

// SaveAdmin registers or updates an operator account.
func (s *GormStore) SaveAdmin(a domain.AdminUser) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	model := adminToModel(a)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "password_hash"}),
	}).Create(&model).Error
}

// ListUserStats returns every user's counter row for the admin overview.
func (s *GormStore) ListUserStats() ([]domain.UserStats, error) {
	var models []UserStatsModel
	if err := s.db.Order("total_sessions DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.UserStats, 0, len(models))
	for _, m := range models {
		res = append(res, statsFromModel(m))
	}
	return res, nil
}

// PlatformStats aggregates dashboard totals across all users.
func (s *GormStore) PlatformStats() (domain.PlatformStats, error) {
	var out domain.PlatformStats
	var userCount int64
	if err := s.db.Model(&UserStatsModel{}).Count(&userCount).Error; err != nil {
		return out, err
	}
	out.TotalUsers = int(userCount)

	if err := s.db.Model(&SessionModel{}).Count(&out.TotalSessions).Error; err != nil {
		return out, err
	}
	var minutes struct{ Total int64 }
	if err := s.db.Model(&SessionModel{}).
		Select("COALESCE(SUM(duration_seconds), 0) / 60 AS total").
		Scan(&minutes).Error; err != nil {
		return out, err
	}
	out.TotalMinutes = minutes.Total

	var contentCount int64
	if err := s.db.Model(&ContentModel{}).Count(&contentCount).Error; err != nil {
		return out, err
	}
	out.TotalContent = int(contentCount)

	var subCount int64
	if err := s.db.Model(&SubscriptionModel{}).
		Where("status = ?", string(domain.SubscriptionActive)).
		Count(&subCount).Error; err != nil {
		return out, err
	}
	out.ActiveSubscriptions = int(subCount)

	weekAgo := time.Now().UTC().AddDate(0, 0, -7)
	if err := s.db.Model(&SessionModel{}).
		Where("session_date >= ?", weekAgo).
		Count(&out.SessionsLastWeek).Error; err != nil {
		return out, err
	}
	return out, nil
}
