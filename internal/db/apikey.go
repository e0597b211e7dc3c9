package db

import (
	"time"
)

// APIKey represents a bearer credential for the metered public API.
// The raw key is shown to the owner exactly once at creation time; only
// its SHA-256 hash is persisted, so keys are verified, never decrypted.
type APIKey struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// UserID links this key to the user who owns it.
	UserID uint `gorm:"index;not null"`

	// Name is a user-friendly identifier for this key (e.g. "prod-ingest").
	Name string `gorm:"size:128;not null"`

	// KeyHash is the hex SHA-256 of the raw key.
	KeyHash string `gorm:"uniqueIndex;size:64;not null"`

	// Prefix is the first few characters of the raw key, kept so the
	// owner can tell keys apart after the raw value is gone.
	Prefix string `gorm:"size:12;not null"`

	// Revoked keys fail verification immediately (soft delete).
	Revoked bool `gorm:"default:false"`

	// User is the owner of this API key.
	User User `gorm:"foreignKey:UserID"`
}
