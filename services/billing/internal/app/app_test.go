package app

import (
	"context"
	"testing"

	"stillmind/pkg/domain"
	"stillmind/pkg/queue"
	"stillmind/pkg/store"
)

const invoicePaidPayload = `{
	"id": "evt_100",
	"type": "invoice.paid",
	"data": {
		"userId": "u1",
		"subscription": {
			"customerId": "cus_1",
			"subscriptionId": "sub_1",
			"plan": "premium-monthly",
			"status": "active",
			"currentPeriodEnd": 4102444800
		},
		"payment": {
			"amountCents": 999,
			"currency": "usd",
			"status": "succeeded"
		}
	}
}`

func newApp(t *testing.T) (*App, *store.MemoryStore) {
	t.Helper()
	dataStore := store.NewMemoryStore()
	a, err := New(Config{Store: dataStore})
	if err != nil {
		t.Fatalf("init app: %v", err)
	}
	return a, dataStore
}

func TestApplyUpsertsSubscriptionAndPayment(t *testing.T) {
	a, dataStore := newApp(t)
	event := queue.Event{ID: "evt_100", Type: "invoice.paid", Payload: invoicePaidPayload}
	if err := a.Apply(context.Background(), event); err != nil {
		t.Fatalf("apply: %v", err)
	}
	active, err := dataStore.HasActiveSubscription("u1")
	if err != nil {
		t.Fatalf("check subscription: %v", err)
	}
	if !active {
		t.Fatal("expected active subscription after invoice.paid")
	}
	inserted, err := dataStore.InsertPayment(domain.Payment{ProviderEventID: "evt_100"})
	if err != nil {
		t.Fatalf("probe payment: %v", err)
	}
	if inserted {
		t.Fatal("payment for evt_100 should already exist")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	a, dataStore := newApp(t)
	event := queue.Event{ID: "evt_100", Type: "invoice.paid", Payload: invoicePaidPayload}
	for i := 0; i < 3; i++ {
		if err := a.Apply(context.Background(), event); err != nil {
			t.Fatalf("apply #%d: %v", i+1, err)
		}
	}
	active, err := dataStore.HasActiveSubscription("u1")
	if err != nil || !active {
		t.Fatalf("subscription after replays: active=%v err=%v", active, err)
	}
}

func TestApplyCancellationDeactivates(t *testing.T) {
	a, dataStore := newApp(t)
	paid := queue.Event{ID: "evt_100", Type: "invoice.paid", Payload: invoicePaidPayload}
	if err := a.Apply(context.Background(), paid); err != nil {
		t.Fatalf("apply paid: %v", err)
	}
	canceled := queue.Event{
		ID:   "evt_101",
		Type: "customer.subscription.deleted",
		Payload: `{
			"id": "evt_101",
			"type": "customer.subscription.deleted",
			"data": {
				"userId": "u1",
				"subscription": {
					"customerId": "cus_1",
					"subscriptionId": "sub_1",
					"plan": "premium-monthly",
					"status": "canceled",
					"currentPeriodEnd": 0
				}
			}
		}`,
	}
	if err := a.Apply(context.Background(), canceled); err != nil {
		t.Fatalf("apply canceled: %v", err)
	}
	active, err := dataStore.HasActiveSubscription("u1")
	if err != nil {
		t.Fatalf("check subscription: %v", err)
	}
	if active {
		t.Fatal("subscription should be inactive after cancellation")
	}
}

func TestApplyRejectsMissingUser(t *testing.T) {
	a, _ := newApp(t)
	event := queue.Event{ID: "evt_1", Type: "invoice.paid", Payload: `{"id":"evt_1","type":"invoice.paid","data":{}}`}
	if err := a.Apply(context.Background(), event); err == nil {
		t.Fatal("expected error for missing userId")
	}
}

func TestApplyRejectsUnknownStatus(t *testing.T) {
	a, _ := newApp(t)
	event := queue.Event{
		ID:   "evt_2",
		Type: "customer.subscription.updated",
		Payload: `{
			"id": "evt_2",
			"type": "customer.subscription.updated",
			"data": {
				"userId": "u1",
				"subscription": {"status": "paused", "currentPeriodEnd": 0}
			}
		}`,
	}
	if err := a.Apply(context.Background(), event); err == nil {
		t.Fatal("expected error for unknown subscription status")
	}
}

func TestParseEvent(t *testing.T) {
	id, eventType, err := ParseEvent([]byte(invoicePaidPayload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id != "evt_100" || eventType != "invoice.paid" {
		t.Fatalf("got %q/%q", id, eventType)
	}
	if _, _, err := ParseEvent([]byte(`{"type":"invoice.paid"}`)); err == nil {
		t.Fatal("expected error for missing id")
	}
	if _, _, err := ParseEvent([]byte(`not json`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
