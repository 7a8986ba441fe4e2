package store

import "github.com/muzukuru/jobcard-service/internal/models"

var transitionMap = map[string][]string{
	"approve":  {models.StatusPending},
	"reject":   {models.StatusPending},
	"disburse": {models.StatusApproved},
}

// ValidTransition reports whether a workflow action may run against a card
// in fromStatus. Rejected and completed cards accept no further action; no
// path leads back to pending.
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
