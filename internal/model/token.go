package model

import "time"

// Token is an issued bearer credential. Only the hash of the key is stored.
type Token struct {
	ID         string     `json:"id"`
	UserID     int64      `json:"user_id"`
	KeyHash    string     `json:"-"` // Never serialize
	KeyPrefix  string     `json:"key_prefix"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// AuthContext holds authenticated request context.
// This is injected into the request context by auth middleware.
type AuthContext struct {
	TokenID     string
	TokenPrefix string
	UserID      int64
	Email       string
	IsStaff     bool
}
