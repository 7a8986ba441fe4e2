package models

import "time"

type User struct {
	Username   string `json:"username"`
	Password   string `json:"-"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
}

type Session struct {
	SessionID  string    `json:"session_id"`
	Username   string    `json:"username"`
	Role       string    `json:"role"`
	Department string    `json:"department,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
}

const (
	RoleUser           = "user"
	RoleDepartmentHead = "department_head"
	RoleAccounts       = "accounts"
)
