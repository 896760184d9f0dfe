package store

import (
	"sort"

	"pililla/queue-service/internal/models"
)

// OrderWaiting derives the serve order for a window from a ticket snapshot:
// priority tickets first, FIFO by created_at within each tier. The order is
// never persisted; re-evaluating it on every call means a priority flag
// changed mid-wait corrects the queue position on the next query.
func OrderWaiting(window int, tickets []models.Ticket) []models.Ticket {
	queue := make([]models.Ticket, 0, len(tickets))
	for _, ticket := range tickets {
		if ticket.Status == models.StatusWaiting && ticket.CurrentWindow == window {
			queue = append(queue, ticket)
		}
	}
	sort.SliceStable(queue, func(i, j int) bool {
		if queue[i].IsPriority != queue[j].IsPriority {
			return queue[i].IsPriority
		}
		return queue[i].CreatedAt.Before(queue[j].CreatedAt)
	})
	return queue
}

// NextInLine returns the head of the serve order for a window.
func NextInLine(window int, tickets []models.Ticket) (models.Ticket, bool) {
	queue := OrderWaiting(window, tickets)
	if len(queue) == 0 {
		return models.Ticket{}, false
	}
	return queue[0], true
}

// OrderHoldPool derives the cross-window hold pool from a ticket snapshot,
// most recently held first.
func OrderHoldPool(tickets []models.Ticket) []models.Ticket {
	pool := make([]models.Ticket, 0, len(tickets))
	for _, ticket := range tickets {
		if ticket.Status == models.StatusPending {
			pool = append(pool, ticket)
		}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		left, right := pool[i].HoldStartedAt, pool[j].HoldStartedAt
		switch {
		case left == nil:
			return false
		case right == nil:
			return true
		default:
			return left.After(*right)
		}
	})
	return pool
}
