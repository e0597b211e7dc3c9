package db

import (
	"time"

	"gorm.io/datatypes"
)

// Alert lifecycle states. PENDING moves to exactly one of SENT or
// FAILED; terminal states are never left except by an explicit manual
// re-enqueue.
const (
	AlertPending = "PENDING"
	AlertSent    = "SENT"
	AlertFailed  = "FAILED"
)

// Alert is the persisted record of one critical-pollution notification.
// Status is the only field mutated after creation, and only by the
// dispatch worker.
type Alert struct {
	// ID is a UUID so records can be created before the queue job that
	// references them is built.
	ID string `gorm:"primaryKey;size:36"`

	CreatedAt time.Time

	Region   string `gorm:"index;size:128;not null"`
	Title    string `gorm:"size:255;not null"`
	Message  string `gorm:"type:text"`
	Severity string `gorm:"size:16;not null"`

	// Recipients are department names, resolved to email addresses at
	// delivery time.
	Recipients datatypes.JSONSlice[string] `gorm:"type:json"`

	Status string `gorm:"size:16;not null;default:PENDING"`

	// DispatchedAt is set when the record reaches a terminal state.
	DispatchedAt *time.Time
}
