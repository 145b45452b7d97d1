package repository

import (
	"context"
	"testing"
	"time"

	"partsreserve/internal/database"
	"partsreserve/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, repo ProductRepository, stock int) *model.Product {
	t.Helper()
	p := &model.Product{
		SKU:            "SKU-" + uuid.NewString()[:8],
		Name:           "Spark plug",
		Stock:          stock,
		RetailPrice:    decimal.NewFromInt(12),
		WholesalePrice: decimal.NewFromInt(9),
	}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func TestUpdateTransitionRequiresReadStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	products := NewProductRepository(db)
	reservations := NewReservationRepository(db)
	p := seedProduct(t, products, 3)

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	r := &model.Reservation{
		QRCode:       uuid.NewString(),
		UserID:       uuid.New(),
		ProductID:    p.ID,
		Quantity:     1,
		Type:         model.ReservationTemporary,
		Status:       model.StatusPending,
		CustomerTier: model.TierRetail,
		UnitPrice:    p.RetailPrice,
		TotalPrice:   p.RetailPrice,
		ExpiresAt:    now.Add(30 * time.Minute),
	}
	if err := reservations.Create(ctx, r); err != nil {
		t.Fatalf("create reservation: %v", err)
	}

	// another writer approves first
	approved := *r
	approved.Status = model.StatusApproved
	ok, err := reservations.UpdateTransition(ctx, &approved, model.StatusPending)
	if err != nil || !ok {
		t.Fatalf("expected first transition to apply, got ok=%v err=%v", ok, err)
	}

	// a cancel that still believes the row is PENDING must not match
	stale := *r
	stale.Status = model.StatusCancelled
	stale.AdminNotes = "late cancel"
	ok, err = reservations.UpdateTransition(ctx, &stale, model.StatusPending)
	if err != nil {
		t.Fatalf("stale update: %v", err)
	}
	if ok {
		t.Fatal("expected stale status update to report no change")
	}

	stored, err := reservations.FindByID(ctx, r.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != model.StatusApproved || stored.AdminNotes != "" {
		t.Fatalf("stale update leaked into row: %+v", stored)
	}
}

func TestAdjustStockGuardsDecreases(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	products := NewProductRepository(db)
	p := seedProduct(t, products, 2)

	if ok, err := products.AdjustStock(ctx, p.ID, -3); err != nil || ok {
		t.Fatalf("expected overdraw to be refused, got ok=%v err=%v", ok, err)
	}
	if ok, err := products.AdjustStock(ctx, p.ID, -2); err != nil || !ok {
		t.Fatalf("expected exact decrease to apply, got ok=%v err=%v", ok, err)
	}
	reloaded, err := products.FindByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", reloaded.Stock)
	}
}

func TestRetiredProductsAcceptStockReturns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	products := NewProductRepository(db)
	p := seedProduct(t, products, 1)

	if err := db.Delete(&model.Product{}, "id = ?", p.ID).Error; err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	if _, err := products.FindByIDForUpdate(ctx, p.ID); err == nil {
		t.Fatal("expected retired product to be hidden from FindByIDForUpdate")
	}
	found, err := products.FindAnyByIDForUpdate(ctx, p.ID)
	if err != nil {
		t.Fatalf("find retired product: %v", err)
	}
	if found.Stock != 1 {
		t.Fatalf("expected stock 1, got %d", found.Stock)
	}

	if ok, err := products.AdjustStock(ctx, p.ID, 2); err != nil || !ok {
		t.Fatalf("expected return to retired product to apply, got ok=%v err=%v", ok, err)
	}
	found, err = products.FindAnyByIDForUpdate(ctx, p.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if found.Stock != 3 {
		t.Fatalf("expected stock 3, got %d", found.Stock)
	}
}

func TestSettingsGetOrCreateToleratesExistingRow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewSettingsRepository(db).(*settingsRepository)

	stored := model.DefaultSettings()
	stored.DepositPercentage = 35
	if err := db.Create(&stored).Error; err != nil {
		t.Fatalf("seed settings: %v", err)
	}

	// a concurrent first read lost the race: its insert must be a no-op
	if err := repo.insertDefaults(ctx, model.DefaultSettings()); err != nil {
		t.Fatalf("insert over existing row: %v", err)
	}

	got, err := repo.GetOrCreate(ctx, model.DefaultSettings())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DepositPercentage != 35 {
		t.Fatalf("expected stored percentage 35, got %d", got.DepositPercentage)
	}

	var count int64
	if err := db.Model(&model.Settings{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single settings row, got %d", count)
	}
}

func TestSettingsGetOrCreateInsertsDefaultsInsideTx(t *testing.T) {
	db := newTestDB(t)
	repo := NewSettingsRepository(db)
	tx := NewTransactionManager(db)

	err := tx.RunInTx(context.Background(), func(txCtx context.Context) error {
		got, err := repo.GetOrCreate(txCtx, model.DefaultSettings())
		if err != nil {
			return err
		}
		if got.TempReservationMinutes != model.DefaultTempReservationMinutes {
			t.Errorf("expected default minutes, got %d", got.TempReservationMinutes)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run in tx: %v", err)
	}
}
