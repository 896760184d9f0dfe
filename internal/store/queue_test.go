package store

import (
	"testing"
	"time"

	"pililla/queue-service/internal/models"
)

func ticketAt(id string, priority bool, status string, window int, created time.Time) models.Ticket {
	return models.Ticket{
		ID:            id,
		IsPriority:    priority,
		Status:        status,
		CurrentWindow: window,
		CreatedAt:     created,
	}
}

func TestOrderWaitingPriorityFirstThenFIFO(t *testing.T) {
	base := time.Date(2026, time.August, 29, 8, 0, 0, 0, time.UTC)

	tickets := []models.Ticket{
		ticketAt("b", false, models.StatusWaiting, 1, base.Add(5*time.Second)),
		ticketAt("a", true, models.StatusWaiting, 1, base.Add(10*time.Second)),
		ticketAt("c", true, models.StatusWaiting, 1, base.Add(20*time.Second)),
	}

	queue := OrderWaiting(1, tickets)
	want := []string{"a", "c", "b"}
	if len(queue) != len(want) {
		t.Fatalf("queue length=%d, want %d", len(queue), len(want))
	}
	for i, id := range want {
		if queue[i].ID != id {
			t.Fatalf("queue[%d]=%s, want %s", i, queue[i].ID, id)
		}
	}
}

func TestOrderWaitingFiltersStatusAndWindow(t *testing.T) {
	base := time.Date(2026, time.August, 29, 8, 0, 0, 0, time.UTC)

	tickets := []models.Ticket{
		ticketAt("serving", false, models.StatusServing, 1, base),
		ticketAt("pending", false, models.StatusPending, 1, base),
		ticketAt("other-window", false, models.StatusWaiting, 2, base),
		ticketAt("ok", false, models.StatusWaiting, 1, base.Add(time.Minute)),
	}

	queue := OrderWaiting(1, tickets)
	if len(queue) != 1 || queue[0].ID != "ok" {
		t.Fatalf("queue=%v, want single ticket ok", queue)
	}
}

func TestOrderWaitingEqualTimestampsStable(t *testing.T) {
	base := time.Date(2026, time.August, 29, 8, 0, 0, 0, time.UTC)

	tickets := []models.Ticket{
		ticketAt("first", false, models.StatusWaiting, 1, base),
		ticketAt("second", false, models.StatusWaiting, 1, base),
	}

	queue := OrderWaiting(1, tickets)
	if queue[0].ID != "first" || queue[1].ID != "second" {
		t.Fatalf("equal timestamps must keep input order, got %s, %s", queue[0].ID, queue[1].ID)
	}
}

func TestNextInLine(t *testing.T) {
	base := time.Date(2026, time.August, 29, 8, 0, 0, 0, time.UTC)

	if _, ok := NextInLine(1, nil); ok {
		t.Fatal("empty queue must report no ticket")
	}

	tickets := []models.Ticket{
		ticketAt("regular", false, models.StatusWaiting, 2, base),
		ticketAt("priority", true, models.StatusWaiting, 2, base.Add(time.Hour)),
	}
	next, ok := NextInLine(2, tickets)
	if !ok || next.ID != "priority" {
		t.Fatalf("next=%v ok=%v, want priority ticket", next.ID, ok)
	}
}

func TestOrderHoldPoolMostRecentFirst(t *testing.T) {
	base := time.Date(2026, time.August, 29, 9, 0, 0, 0, time.UTC)
	early := base.Add(-time.Hour)
	late := base

	tickets := []models.Ticket{
		{ID: "early", Status: models.StatusPending, HoldStartedAt: &early},
		{ID: "none", Status: models.StatusPending},
		{ID: "late", Status: models.StatusPending, HoldStartedAt: &late},
		{ID: "waiting", Status: models.StatusWaiting, HoldStartedAt: &late},
	}

	pool := OrderHoldPool(tickets)
	want := []string{"late", "early", "none"}
	if len(pool) != len(want) {
		t.Fatalf("pool length=%d, want %d", len(pool), len(want))
	}
	for i, id := range want {
		if pool[i].ID != id {
			t.Fatalf("pool[%d]=%s, want %s", i, pool[i].ID, id)
		}
	}
}
