package db

import (
	"time"
)

// Roles assigned to dashboard users. The bootstrap admin (from env) is
// created with RoleGovt so it can reach the /gov endpoints.
const (
	RoleCitizen  = "CITIZEN"
	RoleBusiness = "BUSINESS"
	RoleGovt     = "GOVT"
)

// User represents a dashboard user that can sign in with a session and
// own API keys / a business account.
type User struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Username     string `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string `gorm:"size:255;not null"`

	// DisplayName is shown in the response envelope and alert logs.
	DisplayName string `gorm:"size:128"`

	// Role gates the government endpoints. One of the Role* constants.
	Role string `gorm:"size:16;not null;default:CITIZEN"`
}

// Session is a server-side login session. The cookie carries the raw
// token; only its SHA-256 hash is stored here.
type Session struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time

	UserID    uint   `gorm:"index;not null"`
	TokenHash string `gorm:"uniqueIndex;size:64;not null"`

	ExpiresAt time.Time `gorm:"index;not null"`

	User User `gorm:"foreignKey:UserID"`
}
