package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"stillmind/internal/insights"
	"stillmind/internal/util"
	"stillmind/pkg/ai"
	"stillmind/pkg/domain"
	"stillmind/pkg/storage"
	"stillmind/pkg/store"
)

const (
	defaultLimit       = 20
	maxLimit           = 50
	recommendPoolSize  = 100
	recommendCacheTTL  = 5 * time.Minute
	defaultMediaURLTTL = 15 * time.Minute
	maxSuggestions     = 5
	chatSystemPrompt   = "You are a calm, supportive wellness companion. Offer short, practical guidance on meditation, breathing, sleep, and stress. You are not a medical professional; suggest professional help for anything serious."
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL     string
	Store           store.Store
	RedisAddr       string
	RedisPassword   string
	Cache           *redis.Client
	ChatProvider    string
	GeminiAPIKey    string
	GenerationModel string
	OpenAIBaseURL   string
	OpenAIAPIKey    string
	Generator       ai.TextGenerator
	Media           storage.MediaStore
	MediaURLTTL     time.Duration
}

// App is the core application service wiring storage, the recommendation
// cache, the chat generator, and the media store.
type App struct {
	store       store.Store
	cache       *redis.Client
	generator   ai.TextGenerator
	media       storage.MediaStore
	mediaURLTTL time.Duration
}

// New constructs the application with database-backed storage.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	cache := cfg.Cache
	if cache == nil && cfg.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	}

	generator := cfg.Generator
	if generator == nil {
		provider := strings.ToLower(strings.TrimSpace(cfg.ChatProvider))
		if provider == "" {
			provider = "gemini"
		}
		if cfg.GenerationModel == "" {
			return nil, fmt.Errorf("generation model required")
		}
		switch provider {
		case "gemini":
			gemini, err := ai.NewGeminiClient(cfg.GeminiAPIKey)
			if err != nil {
				return nil, err
			}
			generator = ai.NewGeminiGenerator(gemini, cfg.GenerationModel)
		case "openai":
			generator = ai.NewOpenAICompatGenerator(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.GenerationModel)
		default:
			return nil, fmt.Errorf("unknown chat provider: %s", provider)
		}
	}

	mediaURLTTL := cfg.MediaURLTTL
	if mediaURLTTL <= 0 {
		mediaURLTTL = defaultMediaURLTTL
	}

	return &App{
		store:       dataStore,
		cache:       cache,
		generator:   generator,
		media:       cfg.Media,
		mediaURLTTL: mediaURLTTL,
	}, nil
}

// Summary aggregates a user's sessions, moods, and streaks for the
// requested timeframe. The three store reads run concurrently.
func (a *App) Summary(ctx context.Context, userID, timeframe string) (insights.Summary, error) {
	if strings.TrimSpace(userID) == "" {
		return insights.Summary{}, fmt.Errorf("user id required")
	}
	tf, err := insights.ParseTimeframe(timeframe)
	if err != nil {
		return insights.Summary{}, err
	}
	now := time.Now().UTC()
	since := insights.WindowStart(now, tf)

	var (
		sessions []domain.Session
		moods    []domain.MoodEntry
		allDates []time.Time
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sessions, err = a.store.ListSessionsSince(userID, since)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		moods, err = a.store.ListMoodsSince(userID, since)
		if err != nil {
			return fmt.Errorf("list moods: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		allDates, err = a.store.SessionDates(userID)
		if err != nil {
			return fmt.Errorf("list session dates: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return insights.Summary{}, err
	}
	return insights.BuildSummary(tf, sessions, moods, allDates, now), nil
}

// Recommendations scores the catalog against the user's history and
// returns the top entries, descending by score. Results are cached
// briefly per user/type/limit.
func (a *App) Recommendations(ctx context.Context, userID, contentType string, limit int) ([]domain.ScoredContent, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id required")
	}
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}

	cacheKey := fmt.Sprintf("stillmind:api:recs:%s:%s:%d", userID, contentType, limit)
	if a.cache != nil {
		if raw, err := a.cache.Get(ctx, cacheKey).Result(); err == nil {
			var cached []domain.ScoredContent
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return cached, nil
			}
		}
	}

	sessionTypes, err := a.store.SessionTypes(userID)
	if err != nil {
		return nil, fmt.Errorf("load session types: %w", err)
	}
	completedCount, err := a.store.CompletedSessionCount(userID)
	if err != nil {
		return nil, fmt.Errorf("count completed sessions: %w", err)
	}
	completedIDs, err := a.store.CompletedContentIDs(userID)
	if err != nil {
		return nil, fmt.Errorf("load completed content: %w", err)
	}
	subscribed, err := a.store.HasActiveSubscription(userID)
	if err != nil {
		return nil, fmt.Errorf("check subscription: %w", err)
	}

	filterType := strings.TrimSpace(contentType)
	if filterType == "" {
		filterType = insights.MostUsedSessionType(sessionTypes)
	}
	items, _, err := a.store.SearchContent(store.ContentFilter{
		ContentType:    domain.ContentType(filterType),
		ExcludeIDs:     completedIDs,
		IncludePremium: subscribed,
		Limit:          recommendPoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	scored := insights.ScoreContent(items, insights.Profile{
		SessionTypes:      sessionTypes,
		CompletedSessions: completedCount,
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	if a.cache != nil {
		if raw, err := json.Marshal(scored); err == nil {
			a.cache.Set(ctx, cacheKey, raw, recommendCacheTTL)
		}
	}
	return scored, nil
}

// SearchParams narrows a catalog search request.
type SearchParams struct {
	Query       string
	ContentType string
	Category    string
	Difficulty  string
	MinDuration int
	MaxDuration int
	Limit       int
	Offset      int
}

// SearchResult is one page of catalog matches plus query suggestions.
type SearchResult struct {
	Items       []domain.Content `json:"items"`
	Total       int64            `json:"total"`
	Limit       int              `json:"limit"`
	Offset      int              `json:"offset"`
	Suggestions []string         `json:"suggestions"`
}

// Search runs a paginated catalog search. Suggestions are the distinct
// tags of the matched page, excluding the query term itself.
func (a *App) Search(params SearchParams) (SearchResult, error) {
	limit := params.Limit
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	items, total, err := a.store.SearchContent(store.ContentFilter{
		Query:          params.Query,
		ContentType:    domain.ContentType(params.ContentType),
		Category:       params.Category,
		Difficulty:     domain.Difficulty(params.Difficulty),
		MinDuration:    params.MinDuration,
		MaxDuration:    params.MaxDuration,
		IncludePremium: true,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		return SearchResult{}, fmt.Errorf("search content: %w", err)
	}

	return SearchResult{
		Items:       items,
		Total:       total,
		Limit:       limit,
		Offset:      offset,
		Suggestions: suggestTags(items, params.Query),
	}, nil
}

func suggestTags(items []domain.Content, query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	seen := make(map[string]struct{})
	for _, item := range items {
		for _, tag := range item.Tags {
			tag = strings.TrimSpace(tag)
			if tag == "" || strings.ToLower(tag) == query {
				continue
			}
			seen[tag] = struct{}{}
		}
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	if len(tags) > maxSuggestions {
		tags = tags[:maxSuggestions]
	}
	return tags
}

// RecordSession persists one practice session and refreshes the user's
// running stats row, including streaks.
func (a *App) RecordSession(session domain.Session) (domain.Session, domain.UserStats, error) {
	if strings.TrimSpace(session.UserID) == "" {
		return domain.Session{}, domain.UserStats{}, fmt.Errorf("user id required")
	}
	if strings.TrimSpace(session.SessionType) == "" {
		return domain.Session{}, domain.UserStats{}, fmt.Errorf("session type required")
	}
	if session.DurationSeconds < 0 {
		return domain.Session{}, domain.UserStats{}, fmt.Errorf("duration must not be negative")
	}
	now := time.Now().UTC()
	if session.ID == "" {
		session.ID = util.NewID()
	}
	if session.SessionDate.IsZero() {
		session.SessionDate = now
	}
	session.CreatedAt = now
	if err := a.store.SaveSession(session); err != nil {
		return domain.Session{}, domain.UserStats{}, fmt.Errorf("save session: %w", err)
	}

	stats, _, err := a.store.GetStats(session.UserID)
	if err != nil {
		return domain.Session{}, domain.UserStats{}, fmt.Errorf("load stats: %w", err)
	}
	stats.UserID = session.UserID
	stats.TotalSessions++
	stats.TotalMinutes += session.DurationSeconds / 60
	stats.LastSessionDate = session.SessionDate

	dates, err := a.store.SessionDates(session.UserID)
	if err != nil {
		return domain.Session{}, domain.UserStats{}, fmt.Errorf("list session dates: %w", err)
	}
	stats.CurrentStreak = insights.CurrentStreak(dates, now)
	stats.LongestStreak = insights.LongestStreak(dates)
	if err := a.store.SaveStats(stats); err != nil {
		return domain.Session{}, domain.UserStats{}, fmt.Errorf("save stats: %w", err)
	}
	return session, stats, nil
}

// ToggleFavorite flips the favorite flag for one catalog item and
// reports the new state.
func (a *App) ToggleFavorite(userID, contentID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, fmt.Errorf("user id required")
	}
	if strings.TrimSpace(contentID) == "" {
		return false, fmt.Errorf("content id required")
	}
	if _, ok, err := a.store.GetContent(contentID); err != nil {
		return false, fmt.Errorf("load content: %w", err)
	} else if !ok {
		return false, ErrContentNotFound
	}
	favorited, err := a.store.ToggleFavorite(userID, contentID)
	if err != nil {
		return false, fmt.Errorf("toggle favorite: %w", err)
	}
	return favorited, nil
}

// ListFavorites lists the user's favorited catalog items.
func (a *App) ListFavorites(userID string) ([]domain.Content, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id required")
	}
	items, err := a.store.ListFavorites(userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return items, nil
}

// ListMoods lists mood entries inside the timeframe window.
func (a *App) ListMoods(userID, timeframe string) ([]domain.MoodEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id required")
	}
	tf, err := insights.ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	since := insights.WindowStart(time.Now().UTC(), tf)
	moods, err := a.store.ListMoodsSince(userID, since)
	if err != nil {
		return nil, fmt.Errorf("list moods: %w", err)
	}
	return moods, nil
}

// RecordMood upserts today's mood entry for the user. A second write on
// the same calendar day replaces the first.
func (a *App) RecordMood(entry domain.MoodEntry) (domain.MoodEntry, error) {
	if strings.TrimSpace(entry.UserID) == "" {
		return domain.MoodEntry{}, fmt.Errorf("user id required")
	}
	if entry.MoodScore < 1 || entry.MoodScore > 10 {
		return domain.MoodEntry{}, fmt.Errorf("mood score must be between 1 and 10")
	}
	if entry.ID == "" {
		entry.ID = util.NewID()
	}
	if entry.TrackingDate.IsZero() {
		entry.TrackingDate = time.Now().UTC()
	}
	entry.TrackingDate = entry.TrackingDate.Truncate(24 * time.Hour)
	if err := a.store.UpsertMood(entry); err != nil {
		return domain.MoodEntry{}, fmt.Errorf("save mood: %w", err)
	}
	return entry, nil
}

// Chat sends one companion-chat turn to the generative model.
func (a *App) Chat(ctx context.Context, userID, message string) (domain.ChatReply, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.ChatReply{}, fmt.Errorf("user id required")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return domain.ChatReply{}, fmt.Errorf("message required")
	}
	reply, err := a.generator.GenerateText(ctx, chatSystemPrompt, message)
	if err != nil {
		return domain.ChatReply{}, fmt.Errorf("generate reply: %w", err)
	}
	return domain.ChatReply{
		UserID:    userID,
		Message:   message,
		Reply:     reply,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// MediaURL returns a short-lived presigned download URL for the content's
// media object. Premium items require an active subscription.
func (a *App) MediaURL(ctx context.Context, userID, contentID string) (string, error) {
	if a.media == nil {
		return "", fmt.Errorf("media store not configured")
	}
	content, ok, err := a.store.GetContent(contentID)
	if err != nil {
		return "", fmt.Errorf("load content: %w", err)
	}
	if !ok {
		return "", ErrContentNotFound
	}
	if content.MediaKey == "" {
		return "", ErrNoMedia
	}
	if content.IsPremium {
		subscribed, err := a.store.HasActiveSubscription(userID)
		if err != nil {
			return "", fmt.Errorf("check subscription: %w", err)
		}
		if !subscribed {
			return "", ErrPremiumOnly
		}
	}
	url, err := a.media.PresignGet(ctx, content.MediaKey, content.Title, a.mediaURLTTL)
	if err != nil {
		return "", fmt.Errorf("presign media: %w", err)
	}
	return url, nil
}
