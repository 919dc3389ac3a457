package queue

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) (*RedisEventQueue, context.Context) {
	t.Helper()
	mr := miniredis.RunT(t)
	q, err := NewRedisEventQueue(RedisEventQueueConfig{
		Addr:   mr.Addr(),
		Stream: "test:payment:events",
	})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	return q, context.Background()
}

func TestEnqueueTracksEventState(t *testing.T) {
	q, ctx := newTestQueue(t)

	event, err := q.Enqueue(ctx, "evt_1", "invoice.paid", `{"amount":500}`)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if event.Status != StatusQueued {
		t.Fatalf("status = %q, want %q", event.Status, StatusQueued)
	}

	got, found, err := q.GetEvent(ctx, "evt_1")
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if !found {
		t.Fatal("event state not found")
	}
	if got.Type != "invoice.paid" || got.Payload != `{"amount":500}` {
		t.Fatalf("unexpected event state: %+v", got)
	}
}

func TestEnqueueRejectsEmptyID(t *testing.T) {
	q, ctx := newTestQueue(t)
	if _, err := q.Enqueue(ctx, "", "invoice.paid", "{}"); err == nil {
		t.Fatal("expected error for empty event id")
	}
	if _, err := q.Enqueue(ctx, "evt_1", "", "{}"); err == nil {
		t.Fatal("expected error for empty event type")
	}
}

func TestRequeueAndAckMovesMessageBack(t *testing.T) {
	q, ctx := newTestQueue(t)
	q.ensureGroup(ctx)

	if _, err := q.Enqueue(ctx, "evt_1", "invoice.paid", "{}"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: "consumer-1",
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    0,
	}).Result()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msgID := streams[0].Messages[0].ID

	if err := q.requeueAndAck(ctx, msgID, "evt_1"); err != nil {
		t.Fatalf("requeue and ack: %v", err)
	}
	pending, err := q.client.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 0 {
		t.Fatalf("expected no pending messages, got %d", pending.Count)
	}

	streams, err = q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: "consumer-2",
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    0,
	}).Result()
	if err != nil {
		t.Fatalf("read requeued: %v", err)
	}
	if got := streams[0].Messages[0].Values["event_id"]; got != "evt_1" {
		t.Fatalf("requeued payload = %v", got)
	}
}

func TestMarkProcessingIncrementsAttempts(t *testing.T) {
	q, ctx := newTestQueue(t)
	if _, err := q.Enqueue(ctx, "evt_1", "invoice.paid", "{}"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	event, err := q.markProcessing(ctx, "evt_1")
	if err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if event.Attempts != 1 || event.Status != StatusProcessing {
		t.Fatalf("after first attempt: %+v", event)
	}
	event, err = q.markProcessing(ctx, "evt_1")
	if err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if event.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", event.Attempts)
	}

	if err := q.mark(ctx, "evt_1", StatusDone, ""); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	got, _, err := q.GetEvent(ctx, "evt_1")
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if got.Status != StatusDone {
		t.Fatalf("status = %q, want %q", got.Status, StatusDone)
	}
}
