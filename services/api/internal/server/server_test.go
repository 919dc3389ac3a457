package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stillmind/pkg/domain"
	"stillmind/pkg/store"
	"stillmind/services/api/internal/app"
)

type stubGenerator struct {
	reply string
	err   error
}

func (g *stubGenerator) GenerateText(_ context.Context, _, _ string) (string, error) {
	return g.reply, g.err
}

type stubMedia struct{}

func (stubMedia) Put(context.Context, string, io.Reader, int64, string) error { return nil }

func (stubMedia) PresignGet(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://media.test/" + key, nil
}

func (stubMedia) Delete(context.Context, string) error { return nil }

func newTestServer(t *testing.T, dataStore store.Store) *httptest.Server {
	t.Helper()
	appCore, err := app.New(app.Config{
		Store:     dataStore,
		Generator: &stubGenerator{reply: "Take a slow breath in for four counts."},
		Media:     stubMedia{},
	})
	if err != nil {
		t.Fatalf("init app: %v", err)
	}
	srv := httptest.NewServer(New(Config{App: appCore}).Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeData(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func errorMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	envelope := struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return envelope.Error.Message
}

func TestSummaryAggregatesWindow(t *testing.T) {
	dataStore := store.NewMemoryStore()
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		if err := dataStore.SaveSession(domain.Session{
			UserID:          "u1",
			ContentID:       fmt.Sprintf("c%d", i),
			SessionType:     "meditation",
			DurationSeconds: 600,
			Completed:       i < 2,
			SessionDate:     now.AddDate(0, 0, -i),
		}); err != nil {
			t.Fatalf("seed session: %v", err)
		}
	}
	if err := dataStore.UpsertMood(domain.MoodEntry{UserID: "u1", TrackingDate: now, MoodScore: 7}); err != nil {
		t.Fatalf("seed mood: %v", err)
	}
	srv := newTestServer(t, dataStore)

	resp := postJSON(t, srv.URL+"/api/analytics/summary", map[string]string{"userId": "u1", "timeframe": "week"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var summary struct {
		Overview struct {
			TotalSessions  int     `json:"totalSessions"`
			TotalMinutes   int     `json:"totalMinutes"`
			CompletionRate int     `json:"completionRate"`
			CurrentStreak  int     `json:"currentStreak"`
			AverageMood    float64 `json:"averageMood"`
		} `json:"overview"`
		TypeBreakdown map[string]int `json:"typeBreakdown"`
	}
	decodeData(t, resp, &summary)
	if summary.Overview.TotalSessions != 3 {
		t.Fatalf("totalSessions = %d, want 3", summary.Overview.TotalSessions)
	}
	if summary.Overview.TotalMinutes != 30 {
		t.Fatalf("totalMinutes = %d, want 30", summary.Overview.TotalMinutes)
	}
	if summary.Overview.CompletionRate != 67 {
		t.Fatalf("completionRate = %d, want 67", summary.Overview.CompletionRate)
	}
	// Only the two completed sessions (today and yesterday) count
	// toward the streak.
	if summary.Overview.CurrentStreak != 2 {
		t.Fatalf("currentStreak = %d, want 2", summary.Overview.CurrentStreak)
	}
	if summary.Overview.AverageMood != 7 {
		t.Fatalf("averageMood = %v, want 7", summary.Overview.AverageMood)
	}
	if summary.TypeBreakdown["meditation"] != 3 {
		t.Fatalf("typeBreakdown = %v", summary.TypeBreakdown)
	}
}

func TestSummaryRejectsUnknownTimeframe(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore())
	resp := postJSON(t, srv.URL+"/api/analytics/summary", map[string]string{"userId": "u1", "timeframe": "decade"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if msg := errorMessage(t, resp); msg == "" {
		t.Fatal("expected error message")
	}
}

func TestRecommendationsScoreAndOrder(t *testing.T) {
	dataStore := store.NewMemoryStore()
	if err := dataStore.SaveSession(domain.Session{
		UserID: "u1", ContentID: "done", SessionType: "meditation",
		Completed: true, SessionDate: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	seed := []domain.Content{
		{ID: "a", Title: "Morning Calm", ContentType: domain.ContentMeditation, DifficultyLevel: domain.DifficultyBeginner, RatingAverage: 4.0, IsFeatured: true},
		{ID: "b", Title: "Deep Focus", ContentType: domain.ContentBreathing, DifficultyLevel: domain.DifficultyIntermediate, RatingAverage: 4.5},
		{ID: "done", Title: "Completed One", ContentType: domain.ContentMeditation, RatingAverage: 5.0},
		{ID: "p", Title: "Premium Sleep", ContentType: domain.ContentSleep, RatingAverage: 5.0, IsPremium: true},
	}
	for _, c := range seed {
		if err := dataStore.SaveContent(c); err != nil {
			t.Fatalf("seed content: %v", err)
		}
	}
	srv := newTestServer(t, dataStore)

	resp := postJSON(t, srv.URL+"/api/recommendations", map[string]any{"userId": "u1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var items []struct {
		ID    string  `json:"id"`
		Score float64 `json:"recommendationScore"`
	}
	decodeData(t, resp, &items)
	// meditation history filters the catalog to the most-used type;
	// the completed item and premium items are excluded.
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1: %+v", len(items), items)
	}
	// 4.0 rating + 1.0 type match + 0.5 featured + 0.5 beginner bonus
	if items[0].ID != "a" || items[0].Score != 6.0 {
		t.Fatalf("top item = %+v, want a with score 6.0", items[0])
	}
}

func TestSearchPaginatesAndSuggests(t *testing.T) {
	dataStore := store.NewMemoryStore()
	for i := 0; i < 5; i++ {
		if err := dataStore.SaveContent(domain.Content{
			ID:              fmt.Sprintf("c%d", i),
			Title:           fmt.Sprintf("Sleep Story %d", i),
			ContentType:     domain.ContentSleep,
			DurationSeconds: 1200,
			Tags:            []string{"sleep", "night"},
		}); err != nil {
			t.Fatalf("seed content: %v", err)
		}
	}
	srv := newTestServer(t, dataStore)

	resp := postJSON(t, srv.URL+"/api/content/search", map[string]any{
		"query": "sleep", "limit": 2, "offset": 2,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var result struct {
		Items       []domain.Content `json:"items"`
		Total       int64            `json:"total"`
		Suggestions []string         `json:"suggestions"`
	}
	decodeData(t, resp, &result)
	if result.Total != 5 {
		t.Fatalf("total = %d, want 5", result.Total)
	}
	if len(result.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(result.Items))
	}
	if result.Items[0].ID != "c2" {
		t.Fatalf("first item = %s, want c2", result.Items[0].ID)
	}
	// the query term itself is not suggested back
	if len(result.Suggestions) != 1 || result.Suggestions[0] != "night" {
		t.Fatalf("suggestions = %v, want [night]", result.Suggestions)
	}
}

func TestRecordSessionUpdatesStats(t *testing.T) {
	dataStore := store.NewMemoryStore()
	srv := newTestServer(t, dataStore)

	resp := postJSON(t, srv.URL+"/api/sessions", map[string]any{
		"userId": "u1", "contentId": "c1", "sessionType": "breathing",
		"durationSeconds": 300, "completed": true,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var out struct {
		Session domain.Session   `json:"session"`
		Stats   domain.UserStats `json:"stats"`
	}
	decodeData(t, resp, &out)
	if out.Session.ID == "" {
		t.Fatal("expected generated session id")
	}
	if out.Stats.TotalSessions != 1 || out.Stats.TotalMinutes != 5 {
		t.Fatalf("stats = %+v", out.Stats)
	}
	if out.Stats.CurrentStreak != 1 || out.Stats.LongestStreak != 1 {
		t.Fatalf("streaks = %d/%d, want 1/1", out.Stats.CurrentStreak, out.Stats.LongestStreak)
	}
}

func TestRecordSessionRejectsMissingUser(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore())
	resp := postJSON(t, srv.URL+"/api/sessions", map[string]any{"sessionType": "breathing"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestFavoritesToggle(t *testing.T) {
	dataStore := store.NewMemoryStore()
	if err := dataStore.SaveContent(domain.Content{ID: "c1", Title: "Calm"}); err != nil {
		t.Fatalf("seed content: %v", err)
	}
	srv := newTestServer(t, dataStore)

	var state struct {
		Favorited bool `json:"favorited"`
	}
	resp := postJSON(t, srv.URL+"/api/favorites", map[string]string{"userId": "u1", "contentId": "c1"})
	decodeData(t, resp, &state)
	if !state.Favorited {
		t.Fatal("first toggle should favorite")
	}

	listResp, err := http.Get(srv.URL + "/api/favorites?userId=u1")
	if err != nil {
		t.Fatalf("GET favorites: %v", err)
	}
	var items []domain.Content
	decodeData(t, listResp, &items)
	if len(items) != 1 || items[0].ID != "c1" {
		t.Fatalf("favorites = %+v", items)
	}

	resp = postJSON(t, srv.URL+"/api/favorites", map[string]string{"userId": "u1", "contentId": "c1"})
	decodeData(t, resp, &state)
	if state.Favorited {
		t.Fatal("second toggle should unfavorite")
	}
}

func TestFavoriteUnknownContent(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore())
	resp := postJSON(t, srv.URL+"/api/favorites", map[string]string{"userId": "u1", "contentId": "missing"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestMoodUpsertReplacesSameDay(t *testing.T) {
	dataStore := store.NewMemoryStore()
	srv := newTestServer(t, dataStore)

	day := time.Now().UTC().Format("2006-01-02")
	for _, score := range []int{4, 8} {
		resp := postJSON(t, srv.URL+"/api/moods", map[string]any{
			"userId": "u1", "moodScore": score, "trackingDate": day,
			"emotions": []string{"calm"},
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		resp.Body.Close()
	}

	listResp, err := http.Get(srv.URL + "/api/moods?userId=u1&timeframe=week")
	if err != nil {
		t.Fatalf("GET moods: %v", err)
	}
	var moods []domain.MoodEntry
	decodeData(t, listResp, &moods)
	if len(moods) != 1 {
		t.Fatalf("got %d moods, want 1", len(moods))
	}
	if moods[0].MoodScore != 8 {
		t.Fatalf("moodScore = %d, want 8 (second write wins)", moods[0].MoodScore)
	}
}

func TestMoodRejectsOutOfRangeScore(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore())
	resp := postJSON(t, srv.URL+"/api/moods", map[string]any{"userId": "u1", "moodScore": 11})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestChatReturnsReply(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore())
	resp := postJSON(t, srv.URL+"/api/chat", map[string]string{"userId": "u1", "message": "I feel anxious"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var reply domain.ChatReply
	decodeData(t, resp, &reply)
	if reply.Reply != "Take a slow breath in for four counts." {
		t.Fatalf("reply = %q", reply.Reply)
	}
}

func TestMediaPremiumGate(t *testing.T) {
	dataStore := store.NewMemoryStore()
	if err := dataStore.SaveContent(domain.Content{
		ID: "p1", Title: "Premium Sleep", IsPremium: true, MediaKey: "audio/p1.mp3",
	}); err != nil {
		t.Fatalf("seed content: %v", err)
	}
	srv := newTestServer(t, dataStore)

	resp, err := http.Get(srv.URL + "/api/content/p1/media?userId=u1")
	if err != nil {
		t.Fatalf("GET media: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 without subscription", resp.StatusCode)
	}
	resp.Body.Close()

	if err := dataStore.UpsertSubscription(domain.Subscription{
		UserID: "u1", Status: domain.SubscriptionActive,
		CurrentPeriodEnd: time.Now().UTC().Add(24 * time.Hour),
	}); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
	resp, err = http.Get(srv.URL + "/api/content/p1/media?userId=u1")
	if err != nil {
		t.Fatalf("GET media: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 with subscription", resp.StatusCode)
	}
	var out struct {
		URL string `json:"url"`
	}
	decodeData(t, resp, &out)
	if out.URL != "https://media.test/audio/p1.mp3" {
		t.Fatalf("url = %q", out.URL)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore())
	resp, err := http.Post(srv.URL+"/api/chat", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if msg := errorMessage(t, resp); msg != "invalid JSON body" {
		t.Fatalf("message = %q", msg)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore())
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/analytics/summary", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Allow-Origin = %q, want *", got)
	}
}
