package repository

import (
	"context"
	"time"

	"partsreserve/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReservationFilter narrows List. A nil UserID lists every owner.
type ReservationFilter struct {
	UserID    *uuid.UUID
	ProductID *uuid.UUID
	Status    string
	Offset    int
	Limit     int
}

type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	FindByQRCode(ctx context.Context, code string) (*model.Reservation, error)
	List(ctx context.Context, filter ReservationFilter) ([]model.Reservation, int64, error)
	UpdateTransition(ctx context.Context, reservation *model.Reservation, fromStatus string) (bool, error)
	ListDueForExpiry(ctx context.Context, now time.Time) ([]model.Reservation, error)
	ListExpiringBetween(ctx context.Context, from, to time.Time) ([]model.Reservation, error)
}

type reservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

func (r *reservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	return GetDB(ctx, r.db).Omit("Product").Create(reservation).Error
}

func (r *reservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	var reservation model.Reservation
	if err := GetDB(ctx, r.db).Preload("Product").First(&reservation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *reservationRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	var reservation model.Reservation
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&reservation).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *reservationRepository) FindByQRCode(ctx context.Context, code string) (*model.Reservation, error) {
	var reservation model.Reservation
	if err := GetDB(ctx, r.db).Preload("Product").Where("qr_code = ?", code).First(&reservation).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *reservationRepository) List(ctx context.Context, filter ReservationFilter) ([]model.Reservation, int64, error) {
	var reservations []model.Reservation
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Reservation{})
	if filter.UserID != nil {
		db = db.Where("user_id = ?", *filter.UserID)
	}
	if filter.ProductID != nil {
		db = db.Where("product_id = ?", *filter.ProductID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Preload("Product").Order("created_at desc").
		Offset(filter.Offset).Limit(filter.Limit).Find(&reservations).Error; err != nil {
		return nil, 0, err
	}

	return reservations, total, nil
}

// UpdateTransition writes the mutable lifecycle columns only if the row is
// still in fromStatus. It returns false when another writer got there first.
func (r *reservationRepository) UpdateTransition(ctx context.Context, reservation *model.Reservation, fromStatus string) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.Reservation{}).
		Where("id = ? AND status = ?", reservation.ID, fromStatus).
		Updates(map[string]interface{}{
			"status":       reservation.Status,
			"deposit_paid": reservation.DepositPaid,
			"expires_at":   reservation.ExpiresAt,
			"admin_notes":  reservation.AdminNotes,
			"updated_at":   reservation.UpdatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListDueForExpiry returns active reservations whose hold window has ended.
func (r *reservationRepository) ListDueForExpiry(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	var reservations []model.Reservation
	if err := GetDB(ctx, r.db).
		Where("status IN ? AND expires_at <= ?", model.ActiveStatuses, now).
		Order("expires_at asc").Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// ListExpiringBetween returns active reservations with from < expires_at <= to.
func (r *reservationRepository) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]model.Reservation, error) {
	var reservations []model.Reservation
	if err := GetDB(ctx, r.db).
		Where("status IN ? AND expires_at > ? AND expires_at <= ?", model.ActiveStatuses, from, to).
		Order("expires_at asc").Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}
