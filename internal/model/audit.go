package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionUpdateSettings     = "UPDATE_SETTINGS"
	ActionAdjustStock        = "ADJUST_STOCK"
	ActionCreateReservation  = "CREATE_RESERVATION"
	ActionReservationPrefix  = "RESERVATION_" // followed by the upper-cased transition, e.g. RESERVATION_APPROVE
	ActionCompleteByCode     = "RESERVATION_COMPLETE_BY_CODE"
	ActionManualSweepTrigger = "MANUAL_SWEEP"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated sweeper
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
