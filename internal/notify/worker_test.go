package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"pililla/queue-service/internal/hub"
	"pililla/queue-service/internal/store"
)

type fakeNotifyStore struct {
	offset  int64
	updates []int64
	events  []store.OutboxEvent
	listErr error
}

func (f *fakeNotifyStore) GetLastOffset(ctx context.Context) (int64, error) {
	return f.offset, nil
}

func (f *fakeNotifyStore) UpdateOffset(ctx context.Context, lastSeq int64) error {
	f.offset = lastSeq
	f.updates = append(f.updates, lastSeq)
	return nil
}

func (f *fakeNotifyStore) ListOutboxEvents(ctx context.Context, afterSeq int64, limit int) ([]store.OutboxEvent, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []store.OutboxEvent
	for _, event := range f.events {
		if event.Seq > afterSeq {
			out = append(out, event)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func outboxEvent(seq int64, eventType string, payload map[string]interface{}, at time.Time) store.OutboxEvent {
	raw, _ := json.Marshal(payload)
	return store.OutboxEvent{Seq: seq, EventID: fmt.Sprintf("%s-%d", eventType, seq), Type: eventType, Payload: raw, CreatedAt: at}
}

func TestWorkerDeliversBatchAndAdvancesOffset(t *testing.T) {
	base := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)
	st := &fakeNotifyStore{
		events: []store.OutboxEvent{
			outboxEvent(1, "ticket.created", map[string]interface{}{"current_window": 1}, base),
			outboxEvent(2, "ticket.called", map[string]interface{}{"current_window": 2}, base.Add(time.Second)),
			outboxEvent(3, "settings.updated", map[string]interface{}{"id": "marquee_text"}, base.Add(2*time.Second)),
		},
	}

	h := hub.New()
	all := &hub.Client{ID: "all", Send: make(chan []byte, 8)}
	window2 := &hub.Client{ID: "w2", Send: make(chan []byte, 8), Subscription: hub.Subscription{Topic: "ticket", Window: 2}}
	h.Register(all)
	h.Register(window2)

	w := New(st, h, Config{BatchSize: 10})
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(all.Send) != 3 {
		t.Fatalf("unfiltered client got %d messages, want 3", len(all.Send))
	}
	if len(window2.Send) != 1 {
		t.Fatalf("window2 client got %d messages, want 1", len(window2.Send))
	}

	var env struct {
		Type      string          `json:"type"`
		Payload   json.RawMessage `json:"payload"`
		CreatedAt time.Time       `json:"created_at"`
	}
	if err := json.Unmarshal(<-window2.Send, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Type != "ticket.called" {
		t.Fatalf("envelope type=%s, want ticket.called", env.Type)
	}

	if st.offset != 3 {
		t.Fatalf("offset=%d, want 3", st.offset)
	}
}

func TestWorkerSkipsOffsetUpdateWhenIdle(t *testing.T) {
	st := &fakeNotifyStore{offset: 7}
	w := New(st, hub.New(), Config{})

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(st.updates) != 0 {
		t.Fatalf("idle run must not touch the offset, got %d updates", len(st.updates))
	}
}

func TestWorkerResumesFromOffset(t *testing.T) {
	base := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)
	st := &fakeNotifyStore{
		offset: 1,
		events: []store.OutboxEvent{
			outboxEvent(1, "ticket.created", nil, base),
			outboxEvent(2, "ticket.called", nil, base.Add(time.Second)),
		},
	}

	h := hub.New()
	client := &hub.Client{ID: "c", Send: make(chan []byte, 8)}
	h.Register(client)

	w := New(st, h, Config{})
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(client.Send) != 1 {
		t.Fatalf("got %d messages, want only the event past the offset", len(client.Send))
	}
}

func TestWorkerDeliversTimestampTiesAcrossBatches(t *testing.T) {
	// Two transitions committing in the same microsecond share created_at;
	// the seq cursor must still pick up the second one after the batch cut.
	at := time.Date(2026, 8, 29, 8, 0, 0, 123000, time.UTC)
	st := &fakeNotifyStore{
		events: []store.OutboxEvent{
			outboxEvent(1, "ticket.called", map[string]interface{}{"current_window": 1}, at),
			outboxEvent(2, "ticket.called", map[string]interface{}{"current_window": 2}, at),
		},
	}

	h := hub.New()
	client := &hub.Client{ID: "c", Send: make(chan []byte, 8)}
	h.Register(client)

	w := New(st, h, Config{BatchSize: 1})
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if st.offset != 1 {
		t.Fatalf("offset after first batch=%d, want 1", st.offset)
	}
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(client.Send) != 2 {
		t.Fatalf("got %d messages, want both events sharing a timestamp", len(client.Send))
	}
	if st.offset != 2 {
		t.Fatalf("offset=%d, want 2", st.offset)
	}
}
