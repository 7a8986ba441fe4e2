package workflow

import (
	"time"

	"github.com/muzukuru/jobcard-service/internal/models"
)

// Session is the explicit actor context every workflow action takes. It is
// created by Client.Login and discarded at logout; nothing in this package
// keeps ambient current-user state.
type Session struct {
	User      models.User
	SessionID string
	ExpiresAt time.Time
}

func (s Session) Role() string       { return s.User.Role }
func (s Session) Username() string   { return s.User.Username }
func (s Session) Department() string { return s.User.Department }
