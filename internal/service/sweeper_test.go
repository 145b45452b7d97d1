package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"partsreserve/internal/model"
	"partsreserve/internal/notify"
	"partsreserve/pkg/apperror"

	"go.uber.org/zap"
)

func TestSweepExpiresAndReturnsStock(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 5, 0, "100", "80")
	r := f.reserve(t, customerActor(model.TierRetail), p.ID, 2)

	f.clock.Advance(31 * time.Minute)
	result, err := f.sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(result.ExpiredIDs) != 1 || result.ExpiredIDs[0] != r.ID.String() {
		t.Fatalf("expected %s to expire, got %v", r.ID, result.ExpiredIDs)
	}

	expired, err := f.reservations.FindByID(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if expired.Status != model.StatusExpired {
		t.Fatalf("expected EXPIRED, got %s", expired.Status)
	}
	if got := f.stock(t, p.ID); got != 5 {
		t.Fatalf("expected stock 5, got %d", got)
	}

	movements, err := f.movements.ListByReservation(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(movements) != 2 || movements[1].Type != model.MovementIn || movements[1].UserID != nil {
		t.Fatalf("expected one system IN entry, got %+v", movements)
	}
	if !strings.Contains(movements[1].Reason, "expired automatically") {
		t.Fatalf("unexpected reason %q", movements[1].Reason)
	}
	if len(f.events.ofType(notify.EventReservationExpired)) != 1 {
		t.Fatal("expected reservation_expired notification")
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 5, 0, "100", "80")
	f.reserve(t, customerActor(model.TierRetail), p.ID, 2)
	f.clock.Advance(time.Hour)

	if _, err := f.sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	second, err := f.sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(second.ExpiredIDs) != 0 || len(second.Failed) != 0 {
		t.Fatalf("second sweep should be a no-op, got %+v", second)
	}
	if got := f.stock(t, p.ID); got != 5 {
		t.Fatalf("expected stock 5, got %d", got)
	}
	if n := len(f.ledgerFor(t, p.ID)); n != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", n)
	}
}

func TestSweepWarnBand(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 5, 0, "100", "80")
	r := f.reserve(t, customerActor(model.TierRetail), p.ID, 1)
	ctx := context.Background()

	f.clock.Advance(3 * time.Minute) // 27 minutes left
	result, err := f.sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(result.WarnedIDs) != 1 || result.WarnedIDs[0] != r.ID.String() {
		t.Fatalf("expected a warning inside the band, got %v", result.WarnedIDs)
	}

	// a second tick inside the band warns again
	if result, _ = f.sweeper.Sweep(ctx); len(result.WarnedIDs) != 1 {
		t.Fatalf("expected a repeated warning, got %v", result.WarnedIDs)
	}

	f.clock.Advance(7 * time.Minute) // 20 minutes left
	if result, _ = f.sweeper.Sweep(ctx); len(result.WarnedIDs) != 0 {
		t.Fatalf("expected no warning outside the band, got %v", result.WarnedIDs)
	}
	if n := len(f.events.ofType(notify.EventReservationExpiring)); n != 2 {
		t.Fatalf("expected 2 expiring notifications, got %d", n)
	}
}

func TestSweepSkipsTerminalAndExtended(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 5, 0, "100", "80")
	customer := customerActor(model.TierRetail)
	admin := adminActor()
	ctx := context.Background()

	cancelled := f.reserve(t, customer, p.ID, 1)
	f.act(t, customer, cancelled.ID, ActionCancel)

	deposit, err := f.svc.Create(ctx, customer, CreateReservationRequest{
		ProductID:       p.ID.String(),
		Type:            model.ReservationDeposit,
		PaymentProofURL: strPtr("proof-ref-1"),
	})
	if err != nil {
		t.Fatalf("create deposit: %v", err)
	}
	f.clock.Advance(23 * time.Hour)
	f.act(t, admin, deposit.ID, ActionVerifyDeposit)

	f.clock.Advance(2 * time.Hour) // past the original 24h window, inside the new 48h one
	result, err := f.sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(result.ExpiredIDs) != 0 {
		t.Fatalf("nothing should expire, got %v", result.ExpiredIDs)
	}
	if got := f.stock(t, p.ID); got != 4 {
		t.Fatalf("expected stock 4, got %d", got)
	}
}

func TestTriggerRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.sweeper.Trigger(ctx, customerActor(model.TierRetail)); !apperror.HasCode(err, apperror.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
	if _, err := f.sweeper.Trigger(ctx, adminActor()); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	logs, _, err := f.audits.List(ctx, model.ActionManualSweepTrigger, 0, 10)
	if err != nil || len(logs) != 1 {
		t.Fatalf("expected one audit row, got %d (%v)", len(logs), err)
	}
}

type denyLocker struct{ calls int }

func (d *denyLocker) Acquire(context.Context, string, time.Duration) (func(context.Context) error, bool, error) {
	d.calls++
	return nil, false, nil
}

func TestStartSweepsUntilCancelled(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 5, 0, "100", "80")
	f.reserve(t, customerActor(model.TierRetail), p.ID, 2)
	f.clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.sweeper.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for f.stock(t, p.ID) != 5 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("expected the initial tick to expire the hold")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
}

func TestTickSkipsWhenLockHeld(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 5, 0, "100", "80")
	f.reserve(t, customerActor(model.TierRetail), p.ID, 2)
	f.clock.Advance(time.Hour)

	locker := &denyLocker{}
	s := NewSweeper(f.reservations, f.svc, f.audits, f.events, locker, time.Minute, time.Minute, zap.NewNop())
	s.now = f.clock.Now
	s.tick(context.Background())

	if locker.calls != 1 {
		t.Fatalf("expected one lock attempt, got %d", locker.calls)
	}
	if got := f.stock(t, p.ID); got != 3 {
		t.Fatalf("sweep ran without the lock, stock is %d", got)
	}
}

func TestSweepContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pa := f.product(t, 5, 0, "100", "80")
	pb := f.product(t, 5, 0, "100", "80")
	ra := f.reserve(t, customerActor(model.TierRetail), pa.ID, 2)
	rb := f.reserve(t, customerActor(model.TierRetail), pb.ID, 1)

	if err := f.db.Exec("PRAGMA foreign_keys = OFF").Error; err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if err := f.db.Unscoped().Delete(&model.Product{}, "id = ?", pa.ID).Error; err != nil {
		t.Fatalf("delete product: %v", err)
	}

	f.clock.Advance(time.Hour)
	result, err := f.sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(result.ExpiredIDs) != 1 || result.ExpiredIDs[0] != rb.ID.String() {
		t.Fatalf("expected only %s to expire, got %v", rb.ID, result.ExpiredIDs)
	}
	if msg, ok := result.Failed[ra.ID.String()]; !ok || !strings.Contains(msg, string(apperror.CodeNotFound)) {
		t.Fatalf("expected %s recorded as NOT_FOUND failure, got %v", ra.ID, result.Failed)
	}
	if got := f.stock(t, pb.ID); got != 5 {
		t.Fatalf("expected healthy product restocked to 5, got %d", got)
	}

	stuck, err := f.reservations.FindByID(ctx, ra.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stuck.Status != model.StatusPending {
		t.Fatalf("failed reservation must stay PENDING for the next run, got %s", stuck.Status)
	}

	// the product comes back and the next run picks the hold up again
	restored := &model.Product{
		ID:             pa.ID,
		SKU:            pa.SKU,
		Name:           pa.Name,
		Stock:          3,
		RetailPrice:    pa.RetailPrice,
		WholesalePrice: pa.WholesalePrice,
	}
	if err := f.products.Create(ctx, restored); err != nil {
		t.Fatalf("restore product: %v", err)
	}

	f.clock.Advance(time.Minute)
	result, err = f.sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(result.ExpiredIDs) != 1 || result.ExpiredIDs[0] != ra.ID.String() || len(result.Failed) != 0 {
		t.Fatalf("expected retry to expire %s, got expired=%v failed=%v", ra.ID, result.ExpiredIDs, result.Failed)
	}
	if got := f.stock(t, pa.ID); got != 5 {
		t.Fatalf("expected retried hold to return 2 units, stock %d", got)
	}
}

func TestSweepExpiresHoldOnRetiredProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, 4, 0, "100", "80")
	r := f.reserve(t, customerActor(model.TierRetail), p.ID, 3)

	if err := f.db.Delete(&model.Product{}, "id = ?", p.ID).Error; err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	f.clock.Advance(time.Hour)
	result, err := f.sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(result.ExpiredIDs) != 1 || result.ExpiredIDs[0] != r.ID.String() || len(result.Failed) != 0 {
		t.Fatalf("expected hold on retired product to expire, got expired=%v failed=%v", result.ExpiredIDs, result.Failed)
	}

	var retired model.Product
	if err := f.db.Unscoped().First(&retired, "id = ?", p.ID).Error; err != nil {
		t.Fatalf("load retired product: %v", err)
	}
	if retired.Stock != 4 {
		t.Fatalf("expected stock 4 returned to retired product, got %d", retired.Stock)
	}
}
