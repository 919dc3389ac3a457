package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"stillmind/pkg/domain"
)

// MemoryStore keeps everything in-process. Used by tests and local runs
// without Postgres.
type MemoryStore struct {
	mu            sync.RWMutex
	sessions      []domain.Session
	moods         map[string]domain.MoodEntry // key: userID|date
	content       map[string]domain.Content
	contentOrder  []string
	favorites     map[string]time.Time // key: userID|contentID
	stats         map[string]domain.UserStats
	subscriptions map[string]domain.Subscription
	payments      map[string]domain.Payment // key: provider event id
	admins        map[string]domain.AdminUser
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		moods:         make(map[string]domain.MoodEntry),
		content:       make(map[string]domain.Content),
		favorites:     make(map[string]time.Time),
		stats:         make(map[string]domain.UserStats),
		subscriptions: make(map[string]domain.Subscription),
		payments:      make(map[string]domain.Payment),
		admins:        make(map[string]domain.AdminUser),
	}
}

func dayKey(userID string, t time.Time) string {
	return userID + "|" + t.UTC().Format("2006-01-02")
}

func pairKey(userID, contentID string) string {
	return userID + "|" + contentID
}

// SaveSession appends a session record.
func (m *MemoryStore) SaveSession(s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	m.sessions = append(m.sessions, s)
	return nil
}

// ListSessionsSince returns sessions on or after since, oldest first.
func (m *MemoryStore) ListSessionsSince(userID string, since time.Time) ([]domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.Session
	for _, s := range m.sessions {
		if s.UserID == userID && !s.SessionDate.Before(since) {
			res = append(res, s)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].SessionDate.Before(res[j].SessionDate) })
	return res, nil
}

// SessionDates returns distinct completed-session dates ascending.
func (m *MemoryStore) SessionDates(userID string) ([]time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]time.Time)
	for _, s := range m.sessions {
		if s.UserID != userID || !s.Completed {
			continue
		}
		day := s.SessionDate.UTC().Truncate(24 * time.Hour)
		seen[day.Format("2006-01-02")] = day
	}
	dates := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

// SessionTypes returns the type of each completed session in insert order.
func (m *MemoryStore) SessionTypes(userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var types []string
	for _, s := range m.sessions {
		if s.UserID == userID && s.Completed {
			types = append(types, s.SessionType)
		}
	}
	return types, nil
}

// CompletedSessionCount counts completed sessions.
func (m *MemoryStore) CompletedSessionCount(userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if s.UserID == userID && s.Completed {
			count++
		}
	}
	return count, nil
}

// CompletedContentIDs returns distinct completed catalog ids.
func (m *MemoryStore) CompletedContentIDs(userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	var ids []string
	for _, s := range m.sessions {
		if s.UserID != userID || !s.Completed {
			continue
		}
		if _, ok := seen[s.ContentID]; ok {
			continue
		}
		seen[s.ContentID] = struct{}{}
		ids = append(ids, s.ContentID)
	}
	return ids, nil
}

// UpsertMood replaces the day's entry when one exists.
func (m *MemoryStore) UpsertMood(e domain.MoodEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := dayKey(e.UserID, e.TrackingDate)
	if existing, ok := m.moods[key]; ok {
		e.ID = existing.ID
	} else if e.ID == "" {
		e.ID = uuid.NewString()
	}
	m.moods[key] = e
	return nil
}

// ListMoodsSince returns mood entries on or after since, oldest first.
func (m *MemoryStore) ListMoodsSince(userID string, since time.Time) ([]domain.MoodEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.MoodEntry
	for _, e := range m.moods {
		if e.UserID == userID && !e.TrackingDate.Before(since) {
			res = append(res, e)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].TrackingDate.Before(res[j].TrackingDate) })
	return res, nil
}

// SaveContent stores or replaces a catalog item, keeping insert order.
func (m *MemoryStore) SaveContent(c domain.Content) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, exists := m.content[c.ID]; !exists {
		m.contentOrder = append(m.contentOrder, c.ID)
	}
	m.content[c.ID] = c
	return nil
}

// GetContent retrieves a catalog item.
func (m *MemoryStore) GetContent(id string) (domain.Content, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.content[id]
	return c, ok, nil
}

// SearchContent filters the catalog in insert order.
func (m *MemoryStore) SearchContent(filter ContentFilter) ([]domain.Content, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	excluded := make(map[string]struct{}, len(filter.ExcludeIDs))
	for _, id := range filter.ExcludeIDs {
		excluded[id] = struct{}{}
	}
	var matched []domain.Content
	for _, id := range m.contentOrder {
		c, ok := m.content[id]
		if !ok {
			continue
		}
		if _, skip := excluded[c.ID]; skip {
			continue
		}
		if !filter.IncludePremium && c.IsPremium {
			continue
		}
		if filter.ContentType != "" && c.ContentType != filter.ContentType {
			continue
		}
		if filter.Category != "" && c.Category != filter.Category {
			continue
		}
		if filter.Difficulty != "" && c.DifficultyLevel != filter.Difficulty {
			continue
		}
		if filter.MinDuration > 0 && c.DurationSeconds < filter.MinDuration {
			continue
		}
		if filter.MaxDuration > 0 && c.DurationSeconds > filter.MaxDuration {
			continue
		}
		if filter.Query != "" && !contentMatchesQuery(c, filter.Query) {
			continue
		}
		matched = append(matched, c)
	}
	total := int64(len(matched))
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func contentMatchesQuery(c domain.Content, query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(c.Title), q) || strings.Contains(strings.ToLower(c.Description), q) {
		return true
	}
	for _, tag := range c.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// ToggleFavorite flips the favorite mark and reports the new state.
func (m *MemoryStore) ToggleFavorite(userID, contentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(userID, contentID)
	if _, ok := m.favorites[key]; ok {
		delete(m.favorites, key)
		return false, nil
	}
	m.favorites[key] = time.Now().UTC()
	return true, nil
}

// ListFavorites returns favorited items, most recent first.
func (m *MemoryStore) ListFavorites(userID string) ([]domain.Content, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	type fav struct {
		content domain.Content
		at      time.Time
	}
	var favs []fav
	prefix := userID + "|"
	for key, at := range m.favorites {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if c, ok := m.content[strings.TrimPrefix(key, prefix)]; ok {
			favs = append(favs, fav{content: c, at: at})
		}
	}
	sort.Slice(favs, func(i, j int) bool { return favs[i].at.After(favs[j].at) })
	res := make([]domain.Content, 0, len(favs))
	for _, f := range favs {
		res = append(res, f.content)
	}
	return res, nil
}

// GetStats returns the user's counter row.
func (m *MemoryStore) GetStats(userID string) (domain.UserStats, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stats[userID]
	return s, ok, nil
}

// SaveStats upserts the user's counter row.
func (m *MemoryStore) SaveStats(s domain.UserStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[s.UserID] = s
	return nil
}

// UpsertSubscription mirrors provider subscription state.
func (m *MemoryStore) UpsertSubscription(sub domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[sub.UserID] = sub
	return nil
}

// HasActiveSubscription reports whether the user has premium access.
func (m *MemoryStore) HasActiveSubscription(userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subscriptions[userID]
	if !ok {
		return false, nil
	}
	return sub.Status == domain.SubscriptionActive && sub.CurrentPeriodEnd.After(time.Now().UTC()), nil
}

// InsertPayment records a charge; duplicates by provider event id are no-ops.
func (m *MemoryStore) InsertPayment(p domain.Payment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[p.ProviderEventID]; ok {
		return false, nil
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	m.payments[p.ProviderEventID] = p
	return true, nil
}

// GetAdminByUsername looks up an operator account.
func (m *MemoryStore) GetAdminByUsername(username string) (domain.AdminUser, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.admins[username]
	return a, ok, nil
}

// SaveAdmin registers or updates an operator account.
func (m *MemoryStore) SaveAdmin(a domain.AdminUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	m.admins[a.Username] = a
	return nil
}

// ListUserStats returns every counter row, most sessions first.
func (m *MemoryStore) ListUserStats() ([]domain.UserStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.UserStats, 0, len(m.stats))
	for _, s := range m.stats {
		res = append(res, s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].TotalSessions > res[j].TotalSessions })
	return res, nil
}

// PlatformStats aggregates dashboard totals.
func (m *MemoryStore) PlatformStats() (domain.PlatformStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := domain.PlatformStats{
		TotalUsers:   len(m.stats),
		TotalContent: len(m.content),
	}
	weekAgo := time.Now().UTC().AddDate(0, 0, -7)
	var seconds int64
	for _, s := range m.sessions {
		out.TotalSessions++
		seconds += int64(s.DurationSeconds)
		if !s.SessionDate.Before(weekAgo) {
			out.SessionsLastWeek++
		}
	}
	out.TotalMinutes = seconds / 60
	now := time.Now().UTC()
	for _, sub := range m.subscriptions {
		if sub.Status == domain.SubscriptionActive && sub.CurrentPeriodEnd.After(now) {
			out.ActiveSubscriptions++
		}
	}
	return out, nil
}
