package model

import "time"

// Session backs an issued API token. Deleting it revokes the token.
type Session struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Session) IsValid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
