package service

import (
	"context"
	"testing"

	"partsreserve/internal/model"
	"partsreserve/pkg/apperror"

	"github.com/gin-gonic/gin/binding"
	"github.com/shopspring/decimal"
)

func intPtr(v int) *int { return &v }

func TestGetOrDefaultCreatesDefaults(t *testing.T) {
	f := newFixture(t)

	s, err := f.settings.GetOrDefault(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.TempReservationMinutes != 30 || s.DepositPercentage != 50 || s.DepositReservationHours != 48 || s.PendingVerificationHours != 24 {
		t.Fatalf("unexpected defaults %+v", s)
	}
	if !s.ExchangeRate.Equal(decimal.RequireFromString("17.5")) {
		t.Fatalf("unexpected exchange rate %s", s.ExchangeRate)
	}
}

func TestUpdateIsPartial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := adminActor()

	updated, err := f.settings.Update(ctx, admin, UpdateSettingsRequest{DepositPercentage: intPtr(40)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.DepositPercentage != 40 || updated.TempReservationMinutes != 30 {
		t.Fatalf("unexpected settings %+v", updated)
	}

	reread, err := f.settings.GetOrDefault(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reread.DepositPercentage != 40 || reread.UpdatedBy == nil || *reread.UpdatedBy != admin.UserID {
		t.Fatalf("update not persisted: %+v", reread)
	}

	logs, _, err := f.audits.List(ctx, model.ActionUpdateSettings, 0, 10)
	if err != nil || len(logs) != 1 {
		t.Fatalf("expected one audit row, got %d (%v)", len(logs), err)
	}
}

func TestUpdateValidatesAndAuthorizes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.settings.Update(ctx, customerActor(model.TierRetail), UpdateSettingsRequest{DepositPercentage: intPtr(40)}); !apperror.HasCode(err, apperror.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
	for _, pct := range []int{0, 101} {
		if _, err := f.settings.Update(ctx, adminActor(), UpdateSettingsRequest{DepositPercentage: intPtr(pct)}); !apperror.HasCode(err, apperror.CodeValidation) {
			t.Fatalf("expected VALIDATION_ERROR for %d%%, got %v", pct, err)
		}
	}
	zero := decimal.Zero
	if _, err := f.settings.Update(ctx, adminActor(), UpdateSettingsRequest{ExchangeRate: &zero}); !apperror.HasCode(err, apperror.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for zero rate, got %v", err)
	}
}

func TestUpdateSettingsBindingRules(t *testing.T) {
	valid := []UpdateSettingsRequest{
		{},
		{DepositPercentage: intPtr(1)},
		{DepositPercentage: intPtr(100), TempReservationMinutes: intPtr(15)},
		{DepositReservationHours: intPtr(1), PendingVerificationHours: intPtr(72)},
	}
	for _, req := range valid {
		if err := binding.Validator.ValidateStruct(req); err != nil {
			t.Fatalf("expected %+v to bind, got %v", req, err)
		}
	}

	invalid := []UpdateSettingsRequest{
		{DepositPercentage: intPtr(0)},
		{DepositPercentage: intPtr(101)},
		{TempReservationMinutes: intPtr(0)},
		{DepositReservationHours: intPtr(-1)},
		{PendingVerificationHours: intPtr(0)},
	}
	for _, req := range invalid {
		if err := binding.Validator.ValidateStruct(req); err == nil {
			t.Fatalf("expected %+v to be rejected by binding", req)
		}
	}
}
