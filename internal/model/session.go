package model

import "time"

// Session is one sign-in of a user. A session ends once, either on explicit
// sign-out or when the idle timer expires.
type Session struct {
	ID             string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	UserID         uint       `json:"user_id" gorm:"index;not null"`
	Provider       string     `json:"provider" gorm:"type:varchar(20)"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty" gorm:"index"`
	EndReason      string     `json:"end_reason,omitempty" gorm:"type:varchar(20)"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Active reports whether the session has not ended
func (s *Session) Active() bool {
	return s.EndedAt == nil
}
