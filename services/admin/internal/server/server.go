package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"stillmind/internal/credential"
	"stillmind/internal/ratelimit"
	"stillmind/internal/util"
	"stillmind/pkg/domain"
	"stillmind/services/admin/internal/app"
)

const maxBodyBytes = 1 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Verifier       credential.Verifier
	LoginLimiter   *ratelimit.FixedWindowLimiter
	MaxUploadBytes int64
	// TrustedProxies controls when forwarded headers are believed for
	// client IP resolution. Nil trusts no proxies.
	TrustedProxies *util.TrustedProxies
}

// Server exposes the admin HTTP endpoints. Everything except login and
// the health check requires a valid bearer token.
type Server struct {
	app            *app.App
	verifier       credential.Verifier
	loginLimiter   *ratelimit.FixedWindowLimiter
	maxUploadBytes int64
	trustedProxies *util.TrustedProxies
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:            cfg.App,
		verifier:       cfg.Verifier,
		loginLimiter:   cfg.LoginLimiter,
		maxUploadBytes: cfg.MaxUploadBytes,
		trustedProxies: cfg.TrustedProxies,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("admin", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/admin/login", s.handleLogin)
	s.mux.Handle("/api/admin/users", s.withAuth(s.handleUsers))
	s.mux.Handle("/api/admin/content", s.withAuth(s.handleContent))
	s.mux.Handle("/api/admin/content/", s.withAuth(s.handleContentMedia))
	s.mux.Handle("/api/admin/stats", s.withAuth(s.handleStats))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authedHandler func(http.ResponseWriter, *http.Request, string)

// withAuth gates a route behind the bearer-token verifier. A missing or
// malformed header and an invalid token are distinct failures: the
// former is 401, the latter 403.
func (s *Server) withAuth(next authedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := credential.FromHeader(r.Header.Get("Authorization"))
		if err != nil {
			s.audit(r, "admin_auth", "missing_credential")
			writeError(w, http.StatusUnauthorized, "missing or malformed authorization header")
			return
		}
		subject, err := s.verifier.Verify(token)
		if err != nil {
			s.audit(r, "admin_auth", "invalid_credential")
			writeError(w, http.StatusForbidden, "invalid token")
			return
		}
		next(w, r, subject)
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	token, err := s.app.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, app.ErrBadCredentials) {
			s.audit(r, "admin_login", "failure", "username", req.Username)
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.audit(r, "admin_login", "success", "username", req.Username)
	writeData(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request, _ string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	users, err := s.app.ListUsers()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeData(w, http.StatusOK, users)
}

type contentRequest struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	ContentType     string   `json:"contentType"`
	Category        string   `json:"category"`
	DifficultyLevel string   `json:"difficultyLevel"`
	DurationSeconds int      `json:"durationSeconds"`
	IsPremium       bool     `json:"isPremium"`
	IsFeatured      bool     `json:"isFeatured"`
	RatingAverage   float64  `json:"ratingAverage"`
	Tags            []string `json:"tags"`
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request, subject string) {
	switch r.Method {
	case http.MethodGet:
		limit := queryInt(r, "limit")
		offset := queryInt(r, "offset")
		items, total, err := s.app.ListContent(limit, offset)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeData(w, http.StatusOK, map[string]any{"items": items, "total": total})
	case http.MethodPost:
		var req contentRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		saved, err := s.app.UpsertContent(domain.Content{
			ID:              req.ID,
			Title:           req.Title,
			Description:     req.Description,
			ContentType:     domain.ContentType(req.ContentType),
			Category:        req.Category,
			DifficultyLevel: domain.Difficulty(req.DifficultyLevel),
			DurationSeconds: req.DurationSeconds,
			IsPremium:       req.IsPremium,
			IsFeatured:      req.IsFeatured,
			RatingAverage:   req.RatingAverage,
			Tags:            req.Tags,
		})
		if err != nil {
			writeContentError(w, err)
			return
		}
		s.audit(r, "admin_content_upsert", "success", "admin", subject, "contentId", saved.ID)
		writeData(w, http.StatusCreated, saved)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleContentMedia(w http.ResponseWriter, r *http.Request, subject string) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/admin/content/")
	contentID, ok := strings.CutSuffix(rest, "/media")
	if !ok || contentID == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()
	content, err := s.app.UploadMedia(r.Context(), contentID, header.Filename, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		writeContentError(w, err)
		return
	}
	s.audit(r, "admin_media_upload", "success", "admin", subject, "contentId", contentID)
	writeData(w, http.StatusCreated, content)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, _ string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.app.Stats()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeData(w, http.StatusOK, stats)
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

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trustedProxies),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(key)))
	if err != nil {
		return 0
	}
	return n
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeContentError(w http.ResponseWriter, err error) {
	if errors.Is(err, app.ErrContentNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
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
