package service

import (
	"context"
	"fmt"

	"partsreserve/internal/model"
	"partsreserve/internal/repository"
	"partsreserve/pkg/apperror"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UpdateSettingsRequest is a partial update; nil fields are left unchanged.
type UpdateSettingsRequest struct {
	TempReservationMinutes   *int             `json:"temp_reservation_minutes" binding:"omitempty,min=1"`
	DepositPercentage        *int             `json:"deposit_percentage" binding:"omitempty,min=1,max=100"`
	DepositReservationHours  *int             `json:"deposit_reservation_hours" binding:"omitempty,min=1"`
	PendingVerificationHours *int             `json:"pending_verification_hours" binding:"omitempty,min=1"`
	ExchangeRate             *decimal.Decimal `json:"exchange_rate" swaggertype:"string"`
}

// SettingsProvider is the read side used by the reservation flow.
type SettingsProvider interface {
	GetOrDefault(ctx context.Context) (model.Settings, error)
}

type SettingsService interface {
	SettingsProvider
	Update(ctx context.Context, actor model.Actor, req UpdateSettingsRequest) (model.Settings, error)
}

type settingsService struct {
	settingsRepo repository.SettingsRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	log          *zap.Logger
}

func NewSettingsService(
	settingsRepo repository.SettingsRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	log *zap.Logger,
) SettingsService {
	return &settingsService{
		settingsRepo: settingsRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		log:          log,
	}
}

// GetOrDefault returns the stored settings, creating the default row on
// first use.
func (s *settingsService) GetOrDefault(ctx context.Context) (model.Settings, error) {
	settings, err := s.settingsRepo.GetOrCreate(ctx, model.DefaultSettings())
	if err != nil {
		return model.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	return *settings, nil
}

func (s *settingsService) Update(ctx context.Context, actor model.Actor, req UpdateSettingsRequest) (model.Settings, error) {
	if !actor.IsAdmin() {
		return model.Settings{}, apperror.Forbidden("only admins can change settings")
	}
	if err := req.validate(); err != nil {
		return model.Settings{}, err
	}

	var updated model.Settings
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.settingsRepo.GetOrCreate(txCtx, model.DefaultSettings())
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}

		if req.TempReservationMinutes != nil {
			current.TempReservationMinutes = *req.TempReservationMinutes
		}
		if req.DepositPercentage != nil {
			current.DepositPercentage = *req.DepositPercentage
		}
		if req.DepositReservationHours != nil {
			current.DepositReservationHours = *req.DepositReservationHours
		}
		if req.PendingVerificationHours != nil {
			current.PendingVerificationHours = *req.PendingVerificationHours
		}
		if req.ExchangeRate != nil {
			current.ExchangeRate = *req.ExchangeRate
		}
		current.UpdatedBy = actor.UserRef()

		if err := s.settingsRepo.Save(txCtx, current); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
		updated = *current

		return writeAudit(txCtx, s.auditRepo, actor, model.ActionUpdateSettings, model.SettingsKey, "settings", req)
	})
	if err != nil {
		return model.Settings{}, err
	}

	s.log.Info("settings updated", zap.String("user_id", actor.UserID.String()))
	return updated, nil
}

// validate repeats the binding rules for callers that skip the HTTP layer
// and checks the exchange rate, which the validator cannot compare.
func (r UpdateSettingsRequest) validate() error {
	if r.TempReservationMinutes != nil && *r.TempReservationMinutes < 1 {
		return apperror.Validation("temp_reservation_minutes must be at least 1")
	}
	if r.DepositPercentage != nil && (*r.DepositPercentage < 1 || *r.DepositPercentage > 100) {
		return apperror.Validation("deposit_percentage must be between 1 and 100")
	}
	if r.DepositReservationHours != nil && *r.DepositReservationHours < 1 {
		return apperror.Validation("deposit_reservation_hours must be at least 1")
	}
	if r.PendingVerificationHours != nil && *r.PendingVerificationHours < 1 {
		return apperror.Validation("pending_verification_hours must be at least 1")
	}
	if r.ExchangeRate != nil && !r.ExchangeRate.IsPositive() {
		return apperror.Validation("exchange_rate must be positive")
	}
	return nil
}
