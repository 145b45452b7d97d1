package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"partsreserve/internal/model"
	"partsreserve/internal/notify"
	"partsreserve/internal/repository"
	"partsreserve/pkg/apperror"
	"partsreserve/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- DTOs ---

type CreateReservationRequest struct {
	ProductID       string  `json:"product_id" binding:"required"`
	Quantity        int     `json:"quantity"`
	Type            string  `json:"type"` // TEMPORARY (default) or DEPOSIT
	PaymentProofURL *string `json:"payment_proof_url"`
	PaymentMethod   *string `json:"payment_method"`
}

type TransitionRequest struct {
	Action     string `json:"action" binding:"required"`
	AdminNotes string `json:"admin_notes"`
}

type ReservationListFilter struct {
	Status    string
	ProductID string
	Page      int
	Limit     int
}

// TransitionOptions tune a single state machine step.
type TransitionOptions struct {
	AdminNotes string
	// RequireUnexpired rejects the step when expires_at has already passed.
	RequireUnexpired bool
	// AuditAction overrides the default RESERVATION_<ACTION> audit label.
	AuditAction string
}

// --- Interface ---

type ReservationService interface {
	Create(ctx context.Context, actor model.Actor, req CreateReservationRequest) (*model.Reservation, error)
	List(ctx context.Context, actor model.Actor, filter ReservationListFilter) ([]model.Reservation, pagination.Meta, error)
	Get(ctx context.Context, actor model.Actor, id string) (*model.Reservation, error)
	Transition(ctx context.Context, actor model.Actor, id string, req TransitionRequest) (*model.Reservation, error)
	ApplyTransition(ctx context.Context, actor model.Actor, id uuid.UUID, action Action, opts TransitionOptions) (*model.Reservation, error)
}

type reservationService struct {
	reservationRepo repository.ReservationRepository
	productRepo     repository.ProductRepository
	auditRepo       repository.AuditRepository
	txManager       repository.TransactionManager
	ledger          LedgerService
	settings        SettingsProvider
	notifier        notify.Notifier
	log             *zap.Logger
	now             func() time.Time
}

func NewReservationService(
	reservationRepo repository.ReservationRepository,
	productRepo repository.ProductRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	ledger LedgerService,
	settings SettingsProvider,
	notifier notify.Notifier,
	log *zap.Logger,
) ReservationService {
	return &reservationService{
		reservationRepo: reservationRepo,
		productRepo:     productRepo,
		auditRepo:       auditRepo,
		txManager:       txManager,
		ledger:          ledger,
		settings:        settings,
		notifier:        notifier,
		log:             log,
		now:             utcNow,
	}
}

// --- Implementation ---

func (s *reservationService) Create(ctx context.Context, actor model.Actor, req CreateReservationRequest) (*model.Reservation, error) {
	if !actor.IsApproved() {
		return nil, apperror.Forbidden("account is not approved for reservations")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Type == "" {
		req.Type = model.ReservationTemporary
	}
	if req.Quantity < 1 {
		return nil, apperror.Validation("quantity must be at least 1")
	}
	switch req.Type {
	case model.ReservationTemporary:
		req.PaymentProofURL, req.PaymentMethod = nil, nil
	case model.ReservationDeposit:
		if req.PaymentProofURL == nil || strings.TrimSpace(*req.PaymentProofURL) == "" {
			return nil, apperror.Validation("proof required for deposit reservations")
		}
	default:
		return nil, apperror.Validation(fmt.Sprintf("unknown reservation type %q", req.Type))
	}
	productID, err := parseID(req.ProductID, "product")
	if err != nil {
		return nil, err
	}

	code, err := newQRCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification code: %w", err)
	}

	now := s.now()
	var reservation *model.Reservation
	var product *model.Product
	var movement *model.InventoryMovement

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		settings, err := s.settings.GetOrDefault(txCtx)
		if err != nil {
			return err
		}

		product, err = s.productRepo.FindByIDForUpdate(txCtx, productID)
		if err != nil {
			return notFoundOr(err, "product")
		}
		if product.Stock < req.Quantity {
			return apperror.InsufficientStock(product.Stock, req.Quantity)
		}

		tier := actor.CustomerTier
		if tier != model.TierWholesale {
			tier = model.TierRetail
		}
		unitPrice := product.UnitPriceFor(tier)
		totalPrice := unitPrice.Mul(decimal.NewFromInt(int64(req.Quantity)))

		reservation = &model.Reservation{
			QRCode:          code,
			UserID:          actor.UserID,
			ProductID:       product.ID,
			Quantity:        req.Quantity,
			Type:            req.Type,
			Status:          model.StatusPending,
			CustomerTier:    tier,
			UnitPrice:       unitPrice,
			TotalPrice:      totalPrice,
			PaymentProofURL: req.PaymentProofURL,
			PaymentMethod:   req.PaymentMethod,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if req.Type == model.ReservationDeposit {
			deposit := totalPrice.
				Mul(decimal.NewFromInt(int64(settings.DepositPercentage))).
				Div(decimal.NewFromInt(100)).
				Round(2)
			reservation.DepositAmount = &deposit
			reservation.ExpiresAt = now.Add(settings.PendingVerificationWindow())
		} else {
			reservation.ExpiresAt = now.Add(settings.TempReservationWindow())
		}

		if err := s.reservationRepo.Create(txCtx, reservation); err != nil {
			return fmt.Errorf("failed to create reservation: %w", err)
		}

		movement, err = s.ledger.Apply(txCtx, LedgerEntry{
			ProductID:     product.ID,
			ReservationID: &reservation.ID,
			Type:          model.MovementOut,
			Quantity:      reservation.Quantity,
			Reason:        "Reservation " + code + " created",
			UserID:        actor.UserRef(),
		})
		if err != nil {
			return err
		}

		return writeAudit(txCtx, s.auditRepo, actor, model.ActionCreateReservation, reservation.ID.String(), code, map[string]interface{}{
			"product_id": product.ID.String(),
			"quantity":   reservation.Quantity,
			"type":       reservation.Type,
		})
	})
	if err != nil {
		return nil, err
	}

	product.Stock = movement.NewStock
	reservation.Product = product

	event := reservationEvent(notify.EventNewReservation, "New reservation", reservation)
	if reservation.Type == model.ReservationDeposit {
		event = reservationEvent(notify.EventDepositReceived, "Deposit received", reservation)
		event.Message = fmt.Sprintf("Deposit proof submitted for reservation %s (%s x%d)", code, product.Name, reservation.Quantity)
	} else {
		event.Message = fmt.Sprintf("Reservation %s holds %s x%d", code, product.Name, reservation.Quantity)
	}
	s.notifier.Emit(ctx, event)
	if movement.NewStock <= product.MinStock {
		s.notifier.Emit(ctx, lowStockEvent(product, movement.NewStock))
	}

	s.log.Info("reservation created",
		zap.String("reservation_id", reservation.ID.String()),
		zap.String("type", reservation.Type),
		zap.Int("quantity", reservation.Quantity),
		zap.Int("stock", movement.NewStock),
	)
	return reservation, nil
}

func (s *reservationService) List(ctx context.Context, actor model.Actor, filter ReservationListFilter) ([]model.Reservation, pagination.Meta, error) {
	p := pagination.Normalize(filter.Page, filter.Limit)
	repoFilter := repository.ReservationFilter{Status: filter.Status, Offset: p.Offset, Limit: p.Limit}

	if filter.Status != "" && !knownStatus(filter.Status) {
		return nil, pagination.Meta{}, apperror.Validation(fmt.Sprintf("unknown status %q", filter.Status))
	}
	if filter.ProductID != "" {
		pid, err := parseID(filter.ProductID, "product")
		if err != nil {
			return nil, pagination.Meta{}, err
		}
		repoFilter.ProductID = &pid
	}
	if !actor.IsAdmin() {
		uid := actor.UserID
		repoFilter.UserID = &uid
	}

	reservations, total, err := s.reservationRepo.List(ctx, repoFilter)
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("failed to list reservations: %w", err)
	}
	return reservations, p.NewMeta(total), nil
}

func (s *reservationService) Get(ctx context.Context, actor model.Actor, id string) (*model.Reservation, error) {
	rid, err := parseID(id, "reservation")
	if err != nil {
		return nil, err
	}
	reservation, err := s.reservationRepo.FindByID(ctx, rid)
	if err != nil {
		return nil, notFoundOr(err, "reservation")
	}
	if !actor.IsAdmin() && reservation.UserID != actor.UserID {
		return nil, apperror.Forbidden("reservation belongs to another customer")
	}
	return reservation, nil
}

func (s *reservationService) Transition(ctx context.Context, actor model.Actor, id string, req TransitionRequest) (*model.Reservation, error) {
	rid, err := parseID(id, "reservation")
	if err != nil {
		return nil, err
	}
	return s.ApplyTransition(ctx, actor, rid, Action(req.Action), TransitionOptions{AdminNotes: req.AdminNotes})
}

// ApplyTransition runs one state machine step. The row is re-read under lock
// and the status write is conditional on the status that was read, so two
// racing actions cannot both succeed.
func (s *reservationService) ApplyTransition(ctx context.Context, actor model.Actor, id uuid.UUID, action Action, opts TransitionOptions) (*model.Reservation, error) {
	rule, ok := transitionTable[action]
	if !ok {
		return nil, apperror.Validation(fmt.Sprintf("unknown action %q", action))
	}

	now := s.now()
	var reservation *model.Reservation
	var from string

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.reservationRepo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return notFoundOr(err, "reservation")
		}
		if !rule.permitted(actor, current) {
			return apperror.Forbidden(fmt.Sprintf("not allowed to %s this reservation", action))
		}
		if !rule.legalFrom(current, now) {
			return apperror.InvalidTransition(string(action), current.Status)
		}
		if opts.RequireUnexpired && current.IsExpiredAt(now) {
			return apperror.New(apperror.CodeInvalidTransition, "reservation expired at "+current.ExpiresAt.Format(time.RFC3339)).
				WithDetail("action", string(action)).
				WithDetail("current_status", current.Status).
				WithDetail("is_expired", true)
		}

		if rule.effect != nil {
			settings, err := s.settings.GetOrDefault(txCtx)
			if err != nil {
				return err
			}
			rule.effect(current, settings, now)
		}

		from = current.Status
		current.Status = rule.to
		if opts.AdminNotes != "" {
			current.AdminNotes = opts.AdminNotes
		}
		current.UpdatedAt = now

		updated, err := s.reservationRepo.UpdateTransition(txCtx, current, from)
		if err != nil {
			return fmt.Errorf("failed to update reservation: %w", err)
		}
		if !updated {
			return apperror.InvalidTransition(string(action), from).WithDetail("concurrent_update", true)
		}

		if rule.returnsStock {
			if _, err := s.ledger.Apply(txCtx, LedgerEntry{
				ProductID:     current.ProductID,
				ReservationID: &current.ID,
				Type:          model.MovementIn,
				Quantity:      current.Quantity,
				Reason:        stockReturnReason(action, current.QRCode),
				Notes:         opts.AdminNotes,
				UserID:        actor.UserRef(),
			}); err != nil {
				return err
			}
		}

		auditAction := opts.AuditAction
		if auditAction == "" {
			auditAction = model.ActionReservationPrefix + strings.ToUpper(string(action))
		}
		reservation = current
		return writeAudit(txCtx, s.auditRepo, actor, auditAction, current.ID.String(), current.QRCode, map[string]interface{}{
			"from":        from,
			"to":          current.Status,
			"admin_notes": opts.AdminNotes,
		})
	})
	if err != nil {
		return nil, err
	}

	event := reservationEvent(rule.event, rule.title, reservation)
	event.Message = fmt.Sprintf("Reservation %s is now %s", reservation.QRCode, reservation.Status)
	event.Payload["previous_status"] = from
	s.notifier.Emit(ctx, event)

	s.log.Info("reservation transitioned",
		zap.String("reservation_id", reservation.ID.String()),
		zap.String("action", string(action)),
		zap.String("from", from),
		zap.String("to", reservation.Status),
	)

	reloaded, err := s.reservationRepo.FindByID(ctx, reservation.ID)
	if err != nil {
		s.log.Warn("failed to reload reservation", zap.String("reservation_id", reservation.ID.String()), zap.Error(err))
		return reservation, nil
	}
	return reloaded, nil
}

func reservationEvent(eventType, title string, r *model.Reservation) notify.Event {
	return notify.Event{
		Type:  eventType,
		Title: title,
		Payload: map[string]interface{}{
			"reservation_id": r.ID.String(),
			"qr_code":        r.QRCode,
			"user_id":        r.UserID.String(),
			"product_id":     r.ProductID.String(),
			"quantity":       r.Quantity,
			"type":           r.Type,
			"status":         r.Status,
			"expires_at":     r.ExpiresAt,
		},
	}
}

func knownStatus(status string) bool {
	switch status {
	case model.StatusPending, model.StatusDepositVerified, model.StatusApproved,
		model.StatusRejected, model.StatusCompleted, model.StatusCancelled, model.StatusExpired:
		return true
	}
	return false
}

// newQRCode returns 128 random bits, hex encoded. It is never derived from
// the reservation id.
func newQRCode() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
