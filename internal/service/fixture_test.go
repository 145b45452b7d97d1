package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"partsreserve/internal/database"
	"partsreserve/internal/lock"
	"partsreserve/internal/model"
	"partsreserve/internal/notify"
	"partsreserve/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *eventRecorder) Emit(_ context.Context, e notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) ofType(eventType string) []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Event
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	db           *gorm.DB
	products     repository.ProductRepository
	movements    repository.MovementRepository
	reservations repository.ReservationRepository
	audits       repository.AuditRepository
	settings     SettingsService
	ledger       LedgerService
	svc          *reservationService
	sweeper      *Sweeper
	verifier     *verificationService
	events       *eventRecorder
	clock        *fakeClock
}

func newFixture(t *testing.T) *fixture {
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

	log := zap.NewNop()
	f := &fixture{
		db:           db,
		products:     repository.NewProductRepository(db),
		movements:    repository.NewMovementRepository(db),
		reservations: repository.NewReservationRepository(db),
		audits:       repository.NewAuditRepository(db),
		events:       &eventRecorder{},
		clock:        &fakeClock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)},
	}
	tx := repository.NewTransactionManager(db)

	f.settings = NewSettingsService(repository.NewSettingsRepository(db), f.audits, tx, log)
	f.ledger = NewLedgerService(f.products, f.movements, f.audits, tx, f.events, log)

	f.svc = NewReservationService(f.reservations, f.products, f.audits, tx, f.ledger, f.settings, f.events, log).(*reservationService)
	f.svc.now = f.clock.Now

	f.sweeper = NewSweeper(f.reservations, f.svc, f.audits, f.events, lock.NoopLocker{}, time.Minute, time.Minute, log)
	f.sweeper.now = f.clock.Now

	f.verifier = NewVerificationService(f.reservations, f.svc, log).(*verificationService)
	f.verifier.now = f.clock.Now

	return f
}

func (f *fixture) product(t *testing.T, stock, minStock int, retail, wholesale string) *model.Product {
	t.Helper()
	p := &model.Product{
		SKU:            "SKU-" + uuid.NewString()[:8],
		Name:           "Brake pad",
		Stock:          stock,
		MinStock:       minStock,
		RetailPrice:    decimal.RequireFromString(retail),
		WholesalePrice: decimal.RequireFromString(wholesale),
	}
	if err := f.products.Create(context.Background(), p); err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func (f *fixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	p, err := f.products.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load product: %v", err)
	}
	return p.Stock
}

func (f *fixture) ledgerFor(t *testing.T, productID uuid.UUID) []model.InventoryMovement {
	t.Helper()
	movements, _, err := f.movements.ListByProduct(context.Background(), productID, 0, 100)
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	return movements
}

func (f *fixture) reserve(t *testing.T, actor model.Actor, productID uuid.UUID, qty int) *model.Reservation {
	t.Helper()
	r, err := f.svc.Create(context.Background(), actor, CreateReservationRequest{ProductID: productID.String(), Quantity: qty})
	if err != nil {
		t.Fatalf("create reservation: %v", err)
	}
	return r
}

func (f *fixture) act(t *testing.T, actor model.Actor, id uuid.UUID, action Action) *model.Reservation {
	t.Helper()
	r, err := f.svc.Transition(context.Background(), actor, id.String(), TransitionRequest{Action: string(action)})
	if err != nil {
		t.Fatalf("%s: %v", action, err)
	}
	return r
}

func adminActor() model.Actor {
	return model.Actor{
		UserID:         uuid.New(),
		Role:           model.RoleAdmin,
		ApprovalStatus: model.ApprovalStatusApproved,
		CustomerTier:   model.TierRetail,
	}
}

func customerActor(tier string) model.Actor {
	return model.Actor{
		UserID:         uuid.New(),
		Role:           model.RoleCustomer,
		ApprovalStatus: model.ApprovalStatusApproved,
		CustomerTier:   tier,
	}
}

func strPtr(s string) *string { return &s }
