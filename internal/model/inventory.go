package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MovementType Enum Simulation
const (
	MovementIn            = "IN"
	MovementOut           = "OUT"
	MovementSale          = "SALE"
	MovementReturn        = "RETURN"
	MovementAdjustmentIn  = "ADJUSTMENT_IN"
	MovementAdjustmentOut = "ADJUSTMENT_OUT"
	MovementDamaged       = "DAMAGED"
	MovementLost          = "LOST"
)

// MovementSign returns +1 for types that add stock, -1 for types that remove
// it and 0 for unknown types.
func MovementSign(movementType string) int {
	switch movementType {
	case MovementIn, MovementReturn, MovementAdjustmentIn:
		return 1
	case MovementOut, MovementSale, MovementAdjustmentOut, MovementDamaged, MovementLost:
		return -1
	default:
		return 0
	}
}

// InventoryMovement is one append-only ledger line. NewStock - PreviousStock
// always equals MovementSign(Type) * Quantity.
type InventoryMovement struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"product_id"`
	ReservationID *uuid.UUID `gorm:"type:uuid;index" json:"reservation_id"` // Nullable for manual adjustments
	Type          string     `gorm:"type:varchar(20);not null;index" json:"type"`
	Quantity      int        `gorm:"type:int;not null" json:"quantity"`
	PreviousStock int        `gorm:"type:int;not null" json:"previous_stock"`
	NewStock      int        `gorm:"type:int;not null" json:"new_stock"`
	Reason        string     `gorm:"type:varchar(255);not null" json:"reason"`
	Notes         string     `gorm:"type:text" json:"notes"`
	UserID        *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nil for system entries (sweeper)
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
}

func (m *InventoryMovement) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Delta is the signed stock change recorded by this entry.
func (m *InventoryMovement) Delta() int {
	return m.NewStock - m.PreviousStock
}
