package model

import (
	"time"

	"gorm.io/gorm"
)

// Sign-in providers
const (
	ProviderEmail  = "email"
	ProviderGoogle = "google"
)

// User represents the user model stored in the database
type User struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Email     string         `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	Password  string         `json:"-" gorm:"type:varchar(255)"` // empty for OAuth-only users
	Provider  string         `json:"provider" gorm:"type:varchar(20);not null;default:'email'"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Profile holds display data of a user, keyed by user id
type Profile struct {
	UserID    uint      `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	FullName  string    `json:"full_name" gorm:"type:varchar(150)"`
	AvatarURL string    `json:"avatar_url" gorm:"type:varchar(500)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
