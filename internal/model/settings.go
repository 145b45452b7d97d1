package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettingsKey is the primary key of the single settings row
const SettingsKey = "default"

const (
	DefaultTempReservationMinutes   = 30
	DefaultDepositPercentage        = 50
	DefaultDepositReservationHours  = 48
	DefaultPendingVerificationHours = 24
)

// DefaultExchangeRate is the currency rate used until an admin changes it
var DefaultExchangeRate = decimal.RequireFromString("17.50")

// Settings holds the process-wide reservation tunables
type Settings struct {
	ID                       string          `gorm:"type:varchar(20);primaryKey" json:"-"`
	TempReservationMinutes   int             `gorm:"type:int;not null" json:"temp_reservation_minutes"`
	DepositPercentage        int             `gorm:"type:int;not null" json:"deposit_percentage"`
	DepositReservationHours  int             `gorm:"type:int;not null" json:"deposit_reservation_hours"`
	PendingVerificationHours int             `gorm:"type:int;not null" json:"pending_verification_hours"`
	ExchangeRate             decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"exchange_rate"`
	UpdatedBy                *uuid.UUID      `gorm:"type:uuid" json:"updated_by,omitempty"`
	UpdatedAt                time.Time       `json:"updated_at"`
}

// DefaultSettings returns the row created on first read
func DefaultSettings() Settings {
	return Settings{
		ID:                       SettingsKey,
		TempReservationMinutes:   DefaultTempReservationMinutes,
		DepositPercentage:        DefaultDepositPercentage,
		DepositReservationHours:  DefaultDepositReservationHours,
		PendingVerificationHours: DefaultPendingVerificationHours,
		ExchangeRate:             DefaultExchangeRate,
	}
}

func (s Settings) TempReservationWindow() time.Duration {
	return time.Duration(s.TempReservationMinutes) * time.Minute
}

func (s Settings) DepositReservationWindow() time.Duration {
	return time.Duration(s.DepositReservationHours) * time.Hour
}

func (s Settings) PendingVerificationWindow() time.Duration {
	return time.Duration(s.PendingVerificationHours) * time.Hour
}
