package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CustomerTier decides which list price a customer pays
const (
	TierRetail    = "RETAIL"
	TierWholesale = "WHOLESALE"
)

// Product is a catalog part. Stock is only ever changed through the ledger.
type Product struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SKU            string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"sku"`
	Name           string          `gorm:"type:varchar(255);not null" json:"name"`
	Stock          int             `gorm:"type:int;default:0;not null" json:"stock"`
	MinStock       int             `gorm:"type:int;default:0;not null" json:"min_stock"`
	RetailPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"retail_price"`
	WholesalePrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"wholesale_price"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (p *Product) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// UnitPriceFor returns the wholesale price for wholesale customers and the
// retail price for everyone else.
func (p *Product) UnitPriceFor(tier string) decimal.Decimal {
	if tier == TierWholesale {
		return p.WholesalePrice
	}
	return p.RetailPrice
}
