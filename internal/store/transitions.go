package store

import "pililla/queue-service/internal/models"

var transitionMap = map[string][]string{
	"call":      {models.StatusWaiting, models.StatusPending},
	"call_next": {models.StatusWaiting},
	"pass":      {models.StatusServing},
	"hold":      {models.StatusServing},
	"complete":  {models.StatusServing},
	"requeue":   {models.StatusServing},
}

func ValidTransition(action, fromStatus string) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}

// AllowedFrom lists the statuses an action may leave, for binding into a
// status guard. Unknown actions get an empty list, which matches nothing.
func AllowedFrom(action string) []string {
	allowed := transitionMap[action]
	out := make([]string, len(allowed))
	copy(out, allowed)
	return out
}
