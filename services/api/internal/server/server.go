package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"stillmind/internal/ratelimit"
	"stillmind/internal/util"
	"stillmind/pkg/domain"
	"stillmind/services/api/internal/app"
)

const maxBodyBytes = 1 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App         *app.App
	ChatLimiter *ratelimit.FixedWindowLimiter
	// TrustedProxies controls when forwarded headers are believed for
	// client IP resolution. Nil trusts no proxies.
	TrustedProxies *util.TrustedProxies
}

// Server exposes the consumer HTTP endpoints.
type Server struct {
	app            *app.App
	chatLimiter    *ratelimit.FixedWindowLimiter
	trustedProxies *util.TrustedProxies
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:            cfg.App,
		chatLimiter:    cfg.ChatLimiter,
		trustedProxies: cfg.TrustedProxies,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("api", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/analytics/summary", s.handleSummary)
	s.mux.HandleFunc("/api/recommendations", s.handleRecommendations)
	s.mux.HandleFunc("/api/content/", s.handleContent)
	s.mux.HandleFunc("/api/sessions", s.handleSessions)
	s.mux.HandleFunc("/api/favorites", s.handleFavorites)
	s.mux.HandleFunc("/api/moods", s.handleMoods)
	s.mux.HandleFunc("/api/chat", s.handleChat)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type summaryRequest struct {
	UserID    string `json:"userId"`
	Timeframe string `json:"timeframe"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req summaryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	summary, err := s.app.Summary(r.Context(), req.UserID, req.Timeframe)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeData(w, http.StatusOK, summary)
}

type recommendationsRequest struct {
	UserID      string `json:"userId"`
	ContentType string `json:"contentType"`
	Limit       int    `json:"limit"`
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req recommendationsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	items, err := s.app.Recommendations(r.Context(), req.UserID, req.ContentType, req.Limit)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

type searchRequest struct {
	Query       string `json:"query"`
	ContentType string `json:"contentType"`
	Category    string `json:"category"`
	Difficulty  string `json:"difficulty"`
	Duration    *struct {
		Min int `json:"min"`
		Max int `json:"max"`
	} `json:"duration"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/content/")
	switch {
	case path == "search":
		s.handleSearch(w, r)
	case strings.HasSuffix(path, "/media"):
		s.handleMedia(w, r, strings.TrimSuffix(path, "/media"))
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req searchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	params := app.SearchParams{
		Query:       req.Query,
		ContentType: req.ContentType,
		Category:    req.Category,
		Difficulty:  req.Difficulty,
		Limit:       req.Limit,
		Offset:      req.Offset,
	}
	if req.Duration != nil {
		params.MinDuration = req.Duration.Min
		params.MaxDuration = req.Duration.Max
	}
	result, err := s.app.Search(params)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request, contentID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	url, err := s.app.MediaURL(r.Context(), userID, contentID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"url": url})
}

type sessionRequest struct {
	UserID          string `json:"userId"`
	ContentID       string `json:"contentId"`
	SessionType     string `json:"sessionType"`
	DurationSeconds int    `json:"durationSeconds"`
	Completed       bool   `json:"completed"`
	SessionDate     string `json:"sessionDate"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session := domain.Session{
		UserID:          req.UserID,
		ContentID:       req.ContentID,
		SessionType:     req.SessionType,
		DurationSeconds: req.DurationSeconds,
		Completed:       req.Completed,
	}
	if req.SessionDate != "" {
		date, ok := parseDate(req.SessionDate)
		if !ok {
			writeError(w, http.StatusBadRequest, "sessionDate must be YYYY-MM-DD")
			return
		}
		session.SessionDate = date
	}
	saved, stats, err := s.app.RecordSession(session)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]any{
		"session": saved,
		"stats":   stats,
	})
}

type favoriteRequest struct {
	UserID    string `json:"userId"`
	ContentID string `json:"contentId"`
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		userID := strings.TrimSpace(r.URL.Query().Get("userId"))
		if userID == "" {
			writeError(w, http.StatusBadRequest, "userId is required")
			return
		}
		items, err := s.app.ListFavorites(userID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeData(w, http.StatusOK, items)
	case http.MethodPost:
		var req favoriteRequest
		if !decodeBody(w, r, &req) {
			return
		}
		favorited, err := s.app.ToggleFavorite(req.UserID, req.ContentID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]bool{"favorited": favorited})
	default:
		methodNotAllowed(w)
	}
}

type moodRequest struct {
	UserID       string   `json:"userId"`
	MoodScore    int      `json:"moodScore"`
	Emotions     []string `json:"emotions"`
	TrackingDate string   `json:"trackingDate"`
}

func (s *Server) handleMoods(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		userID := strings.TrimSpace(r.URL.Query().Get("userId"))
		if userID == "" {
			writeError(w, http.StatusBadRequest, "userId is required")
			return
		}
		moods, err := s.app.ListMoods(userID, r.URL.Query().Get("timeframe"))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeData(w, http.StatusOK, moods)
	case http.MethodPost:
		var req moodRequest
		if !decodeBody(w, r, &req) {
			return
		}
		entry := domain.MoodEntry{
			UserID:    req.UserID,
			MoodScore: req.MoodScore,
			Emotions:  req.Emotions,
		}
		if req.TrackingDate != "" {
			date, ok := parseDate(req.TrackingDate)
			if !ok {
				writeError(w, http.StatusBadRequest, "trackingDate must be YYYY-MM-DD")
				return
			}
			entry.TrackingDate = date
		}
		saved, err := s.app.RecordMood(entry)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeData(w, http.StatusOK, saved)
	default:
		methodNotAllowed(w)
	}
}

type chatRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.chatLimiter, "too many chat requests") {
		return
	}
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	reply, err := s.app.Chat(r.Context(), req.UserID, req.Message)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeData(w, http.StatusOK, reply)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func parseDate(s string) (t time.Time, ok bool) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrContentNotFound), errors.Is(err, app.ErrNoMedia):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrPremiumOnly):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, payload any) {
	writeJSON(w, status, map[string]any{"data": payload})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"message": msg}})
}
