package notify

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"pililla/queue-service/internal/hub"
	"pililla/queue-service/internal/store"
)

// Store is the slice of the persistence layer the notifier needs: the outbox
// feed plus a durable delivery offset so restarts never replay the whole day.
// The offset is the outbox seq, not a timestamp: events can share a
// created_at, and a timestamp cursor would skip the ties past a batch
// boundary.
type Store interface {
	GetLastOffset(ctx context.Context) (int64, error)
	UpdateOffset(ctx context.Context, lastSeq int64) error
	ListOutboxEvents(ctx context.Context, afterSeq int64, limit int) ([]store.OutboxEvent, error)
}

type Worker struct {
	store     Store
	hub       *hub.Hub
	batchSize int
}

type eventEnvelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type Config struct {
	BatchSize int
}

func New(store Store, h *hub.Hub, cfg Config) *Worker {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	return &Worker{store: store, hub: h, batchSize: batch}
}

// Run delivers one batch of undelivered outbox events to connected clients.
func (w *Worker) Run(ctx context.Context) error {
	last, err := w.store.GetLastOffset(ctx)
	if err != nil {
		return err
	}

	events, err := w.store.ListOutboxEvents(ctx, last, w.batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	for _, event := range events {
		env := eventEnvelope{Type: event.Type, Payload: event.Payload, CreatedAt: event.CreatedAt}
		payload, err := json.Marshal(env)
		if err != nil {
			log.Printf("notify marshal error: %v", err)
			last = event.Seq
			continue
		}
		w.hub.Broadcast(payload, metaForEvent(event))
		last = event.Seq
	}

	return w.store.UpdateOffset(ctx, last)
}

func metaForEvent(event store.OutboxEvent) hub.Meta {
	meta := hub.Meta{}
	if idx := strings.IndexByte(event.Type, '.'); idx > 0 {
		meta.Topic = event.Type[:idx]
	} else {
		meta.Topic = event.Type
	}
	var data struct {
		CurrentWindow int `json:"current_window"`
	}
	if err := json.Unmarshal(event.Payload, &data); err == nil {
		meta.Window = data.CurrentWindow
	}
	return meta
}

func Start(ctx context.Context, interval time.Duration, w *Worker) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Run(ctx); err != nil {
				log.Printf("notify worker error: %v", err)
			}
		}
	}
}
