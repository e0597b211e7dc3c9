package db

import (
	"time"
)

// Plans for business accounts. The plan only affects top-up pricing on
// the billing side; metering charges the same fixed per-operation cost
// regardless of plan.
const (
	PlanFree    = "FREE"
	PlanStarter = "STARTER"
	PlanPro     = "PRO"
)

// Business is the billing account behind a user's API keys. Credits is
// only ever mutated through the ledger's conditional update and the
// idempotent grant insert; it never goes negative.
type Business struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	UserID uint `gorm:"uniqueIndex;not null"`

	Credits int64  `gorm:"not null;default:0"`
	Plan    string `gorm:"size:16;not null;default:FREE"`

	User User `gorm:"foreignKey:UserID"`
}

// UsageLog is the append-only metering record: exactly one row per
// successfully charged API call, written in the same transaction as the
// credit decrement. Rows are never updated.
type UsageLog struct {
	ID uint `gorm:"primaryKey"`

	BusinessID uint  `gorm:"index;not null"`
	Amount     int64 `gorm:"not null"`

	Operation string `gorm:"size:64;not null"`
	Resource  string `gorm:"size:255;not null"`

	OccurredAt time.Time `gorm:"index;not null"`
}

// CreditGrant records a balance top-up keyed by the external payment
// reference. The unique index makes crediting idempotent: a webhook
// retry with the same reference inserts nothing and grants nothing.
type CreditGrant struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time

	BusinessID uint   `gorm:"index;not null"`
	Amount     int64  `gorm:"not null"`
	Reference  string `gorm:"uniqueIndex;size:128;not null"`
}
