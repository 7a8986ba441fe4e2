package workflow

import (
	"errors"
	"fmt"
)

var (
	ErrRoleNotAllowed     = errors.New("role not allowed for this action")
	ErrInvalidTransition  = errors.New("job card status does not allow this action")
	ErrReasonRequired     = errors.New("rejection reason is required")
	ErrDepartmentMismatch = errors.New("job card belongs to a different department")
)

// APIError carries a failure reported by the store API. The client never
// retries; it surfaces the message and leaves local state untouched.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("store api: %s (status %d)", e.Message, e.StatusCode)
}
