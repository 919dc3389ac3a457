package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stillmind/pkg/queue"
	"stillmind/services/billing/internal/webhook"
)

const testSecret = "whsec_test"

type stubQueue struct {
	enqueued []queue.Event
}

func (q *stubQueue) Enqueue(_ context.Context, id, eventType, payload string) (queue.Event, error) {
	event := queue.Event{ID: id, Type: eventType, Payload: payload, Status: queue.StatusQueued}
	q.enqueued = append(q.enqueued, event)
	return event, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *stubQueue, *webhook.Signature) {
	t.Helper()
	signature, err := webhook.NewSignature(testSecret, 0)
	if err != nil {
		t.Fatalf("init signature: %v", err)
	}
	q := &stubQueue{}
	srv := httptest.NewServer(New(Config{Signature: signature, Queue: q}).Router())
	t.Cleanup(srv.Close)
	return srv, q, signature
}

func postWebhook(t *testing.T, url, header string, payload []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if header != "" {
		req.Header.Set(webhook.SignatureHeader, header)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST webhook: %v", err)
	}
	return resp
}

func TestWebhookAcceptsSignedEvent(t *testing.T) {
	srv, q, signature := newTestServer(t)
	payload := []byte(`{"id":"evt_1","type":"invoice.paid","data":{"userId":"u1"}}`)
	resp := postWebhook(t, srv.URL+"/webhooks/payment", signature.Sign(payload, time.Now()), payload)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(q.enqueued) != 1 {
		t.Fatalf("enqueued %d events, want 1", len(q.enqueued))
	}
	if q.enqueued[0].ID != "evt_1" || q.enqueued[0].Type != "invoice.paid" {
		t.Fatalf("enqueued = %+v", q.enqueued[0])
	}
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	srv, q, _ := newTestServer(t)
	resp := postWebhook(t, srv.URL+"/webhooks/payment", "", []byte(`{"id":"evt_1","type":"x"}`))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if len(q.enqueued) != 0 {
		t.Fatal("unsigned event must not be enqueued")
	}
}

func TestWebhookRejectsTamperedPayload(t *testing.T) {
	srv, q, signature := newTestServer(t)
	header := signature.Sign([]byte(`{"id":"evt_1","type":"x"}`), time.Now())
	resp := postWebhook(t, srv.URL+"/webhooks/payment", header, []byte(`{"id":"evt_2","type":"x"}`))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if len(q.enqueued) != 0 {
		t.Fatal("tampered event must not be enqueued")
	}
}

func TestWebhookRejectsStaleTimestamp(t *testing.T) {
	srv, _, signature := newTestServer(t)
	payload := []byte(`{"id":"evt_1","type":"invoice.paid","data":{"userId":"u1"}}`)
	header := signature.Sign(payload, time.Now().Add(-time.Hour))
	resp := postWebhook(t, srv.URL+"/webhooks/payment", header, payload)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWebhookRejectsInvalidEnvelope(t *testing.T) {
	srv, _, signature := newTestServer(t)
	payload := []byte(`{"type":"invoice.paid"}`)
	resp := postWebhook(t, srv.URL+"/webhooks/payment", signature.Sign(payload, time.Now()), payload)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
