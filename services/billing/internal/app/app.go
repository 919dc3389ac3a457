package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stillmind/pkg/domain"
	"stillmind/pkg/queue"
	"stillmind/pkg/store"
)

// Config holds runtime configuration for the billing worker.
type Config struct {
	DatabaseURL string
	Store       store.Store
}

// App applies webhook events to billing state. Every write is
// idempotent: the queue delivers at least once, and providers replay
// deliveries on their own.
type App struct {
	store store.Store
}

// New constructs the billing application.
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
	return &App{store: dataStore}, nil
}

// eventEnvelope is the provider's webhook body. Subscription and payment
// blocks are both optional; an event may carry either or both.
type eventEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		UserID       string `json:"userId"`
		Subscription *struct {
			CustomerID       string `json:"customerId"`
			SubscriptionID   string `json:"subscriptionId"`
			Plan             string `json:"plan"`
			Status           string `json:"status"`
			CurrentPeriodEnd int64  `json:"currentPeriodEnd"`
		} `json:"subscription"`
		Payment *struct {
			AmountCents int64  `json:"amountCents"`
			Currency    string `json:"currency"`
			Status      string `json:"status"`
		} `json:"payment"`
	} `json:"data"`
}

// ParseEvent validates the provider envelope enough to enqueue it.
func ParseEvent(payload []byte) (id, eventType string, err error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return "", "", fmt.Errorf("parse event: %w", err)
	}
	if strings.TrimSpace(envelope.ID) == "" {
		return "", "", fmt.Errorf("event id required")
	}
	if strings.TrimSpace(envelope.Type) == "" {
		return "", "", fmt.Errorf("event type required")
	}
	return envelope.ID, envelope.Type, nil
}

// Apply processes one queued event. Each step is independently
// retryable: the subscription upsert converges on the provider state
// and the payment insert is keyed by provider event id, so replays and
// partial retries are no-ops for whatever already landed.
func (a *App) Apply(ctx context.Context, event queue.Event) error {
	var envelope eventEnvelope
	if err := json.Unmarshal([]byte(event.Payload), &envelope); err != nil {
		return fmt.Errorf("parse event payload: %w", err)
	}
	if strings.TrimSpace(envelope.Data.UserID) == "" {
		return fmt.Errorf("event %s: userId required", event.ID)
	}

	if sub := envelope.Data.Subscription; sub != nil {
		status, err := subscriptionStatus(envelope.Type, sub.Status)
		if err != nil {
			return fmt.Errorf("event %s: %w", event.ID, err)
		}
		if err := a.store.UpsertSubscription(domain.Subscription{
			UserID:                 envelope.Data.UserID,
			ProviderCustomerID:     sub.CustomerID,
			ProviderSubscriptionID: sub.SubscriptionID,
			Plan:                   sub.Plan,
			Status:                 status,
			CurrentPeriodEnd:       time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
			UpdatedAt:              time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("event %s: upsert subscription: %w", event.ID, err)
		}
	}

	if pay := envelope.Data.Payment; pay != nil {
		inserted, err := a.store.InsertPayment(domain.Payment{
			UserID:          envelope.Data.UserID,
			ProviderEventID: envelope.ID,
			AmountCents:     pay.AmountCents,
			Currency:        pay.Currency,
			Status:          pay.Status,
			CreatedAt:       time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("event %s: insert payment: %w", event.ID, err)
		}
		if !inserted {
			slog.Info("duplicate payment event skipped", "eventId", envelope.ID)
		}
	}
	return nil
}

func subscriptionStatus(eventType, raw string) (domain.SubscriptionStatus, error) {
	if strings.HasSuffix(eventType, ".deleted") || strings.HasSuffix(eventType, ".canceled") {
		return domain.SubscriptionCanceled, nil
	}
	switch domain.SubscriptionStatus(raw) {
	case domain.SubscriptionActive, domain.SubscriptionPastDue, domain.SubscriptionCanceled:
		return domain.SubscriptionStatus(raw), nil
	default:
		return "", fmt.Errorf("unknown subscription status: %q", raw)
	}
}
