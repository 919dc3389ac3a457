package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"stillmind/internal/util"
	"stillmind/pkg/queue"
	"stillmind/services/billing/internal/app"
	"stillmind/services/billing/internal/webhook"
)

const maxBodyBytes = 1 << 20

// EventQueue is the slice of the queue the receiver needs.
type EventQueue interface {
	Enqueue(ctx context.Context, id, eventType, payload string) (queue.Event, error)
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	Signature *webhook.Signature
	Queue     EventQueue
}

// Server receives payment provider webhooks. Deliveries are
// authenticated, acknowledged with 200, and processed asynchronously.
type Server struct {
	signature *webhook.Signature
	queue     EventQueue
	mux       *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		signature: cfg.Signature,
		queue:     cfg.Queue,
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("billing", util.WithSecurityHeaders(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/webhooks/payment", s.handlePaymentWebhook)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if err := s.signature.Verify(r.Header.Get(webhook.SignatureHeader), payload, time.Now()); err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, webhook.ErrStaleTimestamp) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	id, eventType, err := app.ParseEvent(payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.queue.Enqueue(r.Context(), id, eventType, string(payload)); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to enqueue event")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]bool{"received": true}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"message": msg}})
}
