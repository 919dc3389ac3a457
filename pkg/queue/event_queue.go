// Package queue delivers payment provider webhook events to the billing
// worker over a Redis stream with at-least-once semantics. Handlers must
// be idempotent: a crashed consumer's messages are reclaimed and retried.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// Event is one webhook delivery from the payment provider.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Payload    string    `json:"payload"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Attempts   int       `json:"attempts"`
	ReceivedAt time.Time `json:"receivedAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// RedisEventQueue is a consumer-group backed stream of webhook events.
type RedisEventQueue struct {
	client       *redis.Client
	stream       string
	group        string
	consumerBase string
	eventTTL     time.Duration
	maxRetries   int
	block        time.Duration
	claimIdle    time.Duration
	retryDelay   time.Duration
	maxLen       int64
	readCount    int64
	once         sync.Once
}

// RedisEventQueueConfig configures the queue. Zero values get defaults.
type RedisEventQueueConfig struct {
	Addr       string
	Password   string
	Stream     string
	Group      string
	Consumer   string
	EventTTL   time.Duration
	MaxRetries int
	Block      time.Duration
	ClaimIdle  time.Duration
	RetryDelay time.Duration
	MaxLen     int64
	ReadCount  int64
}

// NewRedisEventQueue validates config and connects.
func NewRedisEventQueue(cfg RedisEventQueueConfig) (*RedisEventQueue, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("queue stream required")
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "billing"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = "worker"
	}
	eventTTL := cfg.EventTTL
	if eventTTL <= 0 {
		eventTTL = 7 * 24 * time.Hour
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	claimIdle := cfg.ClaimIdle
	if claimIdle <= 0 {
		claimIdle = 30 * time.Second
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	readCount := cfg.ReadCount
	if readCount <= 0 {
		readCount = 10
	}
	return &RedisEventQueue{
		client:       redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		stream:       stream,
		group:        group,
		consumerBase: consumer,
		eventTTL:     eventTTL,
		maxRetries:   maxRetries,
		block:        block,
		claimIdle:    claimIdle,
		retryDelay:   retryDelay,
		maxLen:       maxLen,
		readCount:    readCount,
	}, nil
}

// Enqueue records the event status and appends it to the stream.
func (q *RedisEventQueue) Enqueue(ctx context.Context, id, eventType, payload string) (Event, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Event{}, errors.New("event id required")
	}
	if strings.TrimSpace(eventType) == "" {
		return Event{}, errors.New("event type required")
	}
	now := time.Now().UTC()
	event := Event{
		ID:         id,
		Type:       eventType,
		Payload:    payload,
		Status:     StatusQueued,
		ReceivedAt: now,
		UpdatedAt:  now,
	}
	if err := q.writeStatus(ctx, event); err != nil {
		return Event{}, err
	}
	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{"event_id": event.ID},
	}).Err(); err != nil {
		return Event{}, err
	}
	return event, nil
}

// GetEvent returns the tracked state of one event.
func (q *RedisEventQueue) GetEvent(ctx context.Context, id string) (Event, bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Event{}, false, nil
	}
	data, err := q.client.HGetAll(ctx, q.eventKey(id)).Result()
	if err != nil {
		return Event{}, false, err
	}
	if len(data) == 0 {
		return Event{}, false, nil
	}
	return decodeEvent(id, data), true, nil
}

// Start launches consumer goroutines that live until ctx is canceled.
func (q *RedisEventQueue) Start(ctx context.Context, concurrency int, handler func(context.Context, Event) error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	q.ensureGroup(ctx)
	for i := 0; i < concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", q.consumerBase, i)
		go q.consumeLoop(ctx, consumer, handler)
	}
}

func (q *RedisEventQueue) ensureGroup(ctx context.Context) {
	q.once.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "$").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			slog.Warn("failed to create consumer group", "stream", q.stream, "err", err)
		}
	})
}

func (q *RedisEventQueue) consumeLoop(ctx context.Context, consumer string, handler func(context.Context, Event) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if msgs, err := q.claimPending(ctx, consumer); err == nil {
			for _, msg := range msgs {
				q.handleMessage(ctx, msg, handler)
			}
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    q.readCount,
			Block:    q.block,
		}).Result()
		if err != nil {
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleMessage(ctx, msg, handler)
			}
		}
	}
}

func (q *RedisEventQueue) claimPending(ctx context.Context, consumer string) ([]redis.XMessage, error) {
	res, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    q.readCount,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (q *RedisEventQueue) handleMessage(ctx context.Context, msg redis.XMessage, handler func(context.Context, Event) error) {
	eventID, _ := msg.Values["event_id"].(string)
	if eventID == "" {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	event, err := q.markProcessing(ctx, eventID)
	if err != nil {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	if err := handler(ctx, event); err == nil {
		_ = q.mark(ctx, eventID, StatusDone, "")
		q.ackAndDel(ctx, msg.ID)
		return
	} else if event.Attempts >= q.maxRetries {
		_ = q.mark(ctx, eventID, StatusFailed, err.Error())
		q.ackAndDel(ctx, msg.ID)
		return
	} else {
		_ = q.mark(ctx, eventID, StatusQueued, err.Error())
	}
	if q.retryDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(q.retryDelay):
		}
	}
	_ = q.requeueAndAck(ctx, msg.ID, eventID)
}

func (q *RedisEventQueue) ackAndDel(ctx context.Context, msgID string) {
	_, _ = q.client.XAck(ctx, q.stream, q.group, msgID).Result()
	_, _ = q.client.XDel(ctx, q.stream, msgID).Result()
}

func (q *RedisEventQueue) requeueAndAck(ctx context.Context, msgID, eventID string) error {
	pipe := q.client.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{"event_id": eventID},
	})
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RedisEventQueue) markProcessing(ctx context.Context, eventID string) (Event, error) {
	event, found, err := q.GetEvent(ctx, eventID)
	if err != nil {
		return Event{}, err
	}
	if !found {
		return Event{}, fmt.Errorf("event %s has no tracked state", eventID)
	}
	event.Attempts++
	event.Status = StatusProcessing
	event.UpdatedAt = time.Now().UTC()
	if err := q.writeStatus(ctx, event); err != nil {
		return Event{}, err
	}
	return event, nil
}

func (q *RedisEventQueue) mark(ctx context.Context, eventID, status, errMsg string) error {
	event, found, err := q.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	event.Status = status
	event.Error = errMsg
	event.UpdatedAt = time.Now().UTC()
	return q.writeStatus(ctx, event)
}

func (q *RedisEventQueue) writeStatus(ctx context.Context, event Event) error {
	key := q.eventKey(event.ID)
	payload := map[string]any{
		"type":       event.Type,
		"payload":    event.Payload,
		"status":     event.Status,
		"error":      event.Error,
		"attempts":   strconv.Itoa(event.Attempts),
		"receivedAt": event.ReceivedAt.Format(time.RFC3339Nano),
		"updatedAt":  event.UpdatedAt.Format(time.RFC3339Nano),
	}
	if err := q.client.HSet(ctx, key, payload).Err(); err != nil {
		return err
	}
	_ = q.client.Expire(ctx, key, q.eventTTL).Err()
	return nil
}

func (q *RedisEventQueue) eventKey(id string) string {
	return fmt.Sprintf("event:%s:%s", q.stream, id)
}

func decodeEvent(id string, data map[string]string) Event {
	event := Event{ID: id}
	event.Type = data["type"]
	event.Payload = data["payload"]
	event.Status = data["status"]
	event.Error = data["error"]
	if v := data["attempts"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			event.Attempts = n
		}
	}
	if v := data["receivedAt"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			event.ReceivedAt = t
		}
	}
	if v := data["updatedAt"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			event.UpdatedAt = t
		}
	}
	return event
}
