package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReservationType Enum Simulation
const (
	ReservationTemporary = "TEMPORARY"
	ReservationDeposit   = "DEPOSIT"
)

// ReservationStatus constants
const (
	StatusPending         = "PENDING"
	StatusDepositVerified = "DEPOSIT_VERIFIED"
	StatusApproved        = "APPROVED"
	StatusRejected        = "REJECTED"
	StatusCompleted       = "COMPLETED"
	StatusCancelled       = "CANCELLED"
	StatusExpired         = "EXPIRED"
)

// ActiveStatuses are the states that still hold stock
var ActiveStatuses = []string{StatusPending, StatusDepositVerified, StatusApproved}

// IsActiveStatus reports whether a reservation in this status still holds stock
func IsActiveStatus(status string) bool {
	for _, s := range ActiveStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Reservation is one customer's hold on a quantity of one product.
// Prices are frozen at creation time.
type Reservation struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	QRCode          string           `gorm:"column:qr_code;type:varchar(64);uniqueIndex;not null" json:"qr_code"`
	UserID          uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	ProductID       uuid.UUID        `gorm:"type:uuid;not null;index" json:"product_id"`
	Product         *Product         `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Quantity        int              `gorm:"type:int;not null" json:"quantity"`
	Type            string           `gorm:"type:varchar(20);not null" json:"type"` // TEMPORARY, DEPOSIT
	Status          string           `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	CustomerTier    string           `gorm:"type:varchar(20);not null" json:"customer_tier"`
	UnitPrice       decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	TotalPrice      decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"total_price"`
	DepositAmount   *decimal.Decimal `gorm:"type:decimal(12,2)" json:"deposit_amount"`
	DepositPaid     bool             `gorm:"not null;default:false" json:"deposit_paid"`
	PaymentProofURL *string          `gorm:"type:text" json:"payment_proof_url"`
	PaymentMethod   *string          `gorm:"type:varchar(50)" json:"payment_method"`
	AdminNotes      string           `gorm:"type:text" json:"admin_notes"`
	ExpiresAt       time.Time        `gorm:"not null;index" json:"expires_at"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func (r *Reservation) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// IsActive reports whether the reservation still holds stock
func (r *Reservation) IsActive() bool {
	return IsActiveStatus(r.Status)
}

// IsExpiredAt reports whether the hold window has passed at the given time
func (r *Reservation) IsExpiredAt(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}
