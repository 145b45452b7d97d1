package repository

import (
	"context"

	"partsreserve/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MovementRepository appends and reads stock ledger lines. Lines are never
// updated or deleted.
type MovementRepository interface {
	Create(ctx context.Context, movement *model.InventoryMovement) error
	ListByProduct(ctx context.Context, productID uuid.UUID, offset, limit int) ([]model.InventoryMovement, int64, error)
	ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]model.InventoryMovement, error)
}

type movementRepository struct {
	db *gorm.DB
}

func NewMovementRepository(db *gorm.DB) MovementRepository {
	return &movementRepository{db: db}
}

func (r *movementRepository) Create(ctx context.Context, movement *model.InventoryMovement) error {
	return GetDB(ctx, r.db).Create(movement).Error
}

func (r *movementRepository) ListByProduct(ctx context.Context, productID uuid.UUID, offset, limit int) ([]model.InventoryMovement, int64, error) {
	var movements []model.InventoryMovement
	var total int64

	db := GetDB(ctx, r.db).Model(&model.InventoryMovement{}).Where("product_id = ?", productID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Order("created_at desc").Order("id").Offset(offset).Limit(limit).Find(&movements).Error; err != nil {
		return nil, 0, err
	}

	return movements, total, nil
}

func (r *movementRepository) ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]model.InventoryMovement, error) {
	var movements []model.InventoryMovement
	if err := GetDB(ctx, r.db).Where("reservation_id = ?", reservationID).
		Order("created_at asc").Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}
