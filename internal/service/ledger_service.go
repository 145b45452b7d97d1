package service

import (
	"context"
	"fmt"

	"partsreserve/internal/model"
	"partsreserve/internal/notify"
	"partsreserve/internal/repository"
	"partsreserve/pkg/apperror"
	"partsreserve/pkg/pagination"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerEntry is one requested stock movement.
type LedgerEntry struct {
	ProductID     uuid.UUID
	ReservationID *uuid.UUID
	Type          string
	Quantity      int
	Reason        string
	Notes         string
	UserID        *uuid.UUID
}

type StockAdjustmentRequest struct {
	Type     string `json:"type" binding:"required,oneof=IN RETURN ADJUSTMENT_IN ADJUSTMENT_OUT DAMAGED LOST"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
	Reason   string `json:"reason" binding:"required"`
	Notes    string `json:"notes"`
}

// manualMovementTypes are the types an admin may record by hand. OUT and
// SALE are reserved for the reservation flow.
var manualMovementTypes = map[string]bool{
	model.MovementIn:            true,
	model.MovementReturn:        true,
	model.MovementAdjustmentIn:  true,
	model.MovementAdjustmentOut: true,
	model.MovementDamaged:       true,
	model.MovementLost:          true,
}

type LedgerService interface {
	// Apply changes stock and appends the matching ledger line in one
	// transaction, joining the caller's transaction when ctx carries one.
	Apply(ctx context.Context, entry LedgerEntry) (*model.InventoryMovement, error)
	AdjustStock(ctx context.Context, actor model.Actor, productID string, req StockAdjustmentRequest) (*model.InventoryMovement, error)
	ListMovements(ctx context.Context, productID string, page, limit int) ([]model.InventoryMovement, pagination.Meta, error)
}

type ledgerService struct {
	productRepo  repository.ProductRepository
	movementRepo repository.MovementRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	notifier     notify.Notifier
	log          *zap.Logger
}

func NewLedgerService(
	productRepo repository.ProductRepository,
	movementRepo repository.MovementRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	notifier notify.Notifier,
	log *zap.Logger,
) LedgerService {
	return &ledgerService{
		productRepo:  productRepo,
		movementRepo: movementRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		notifier:     notifier,
		log:          log,
	}
}

func (s *ledgerService) Apply(ctx context.Context, entry LedgerEntry) (*model.InventoryMovement, error) {
	var movement *model.InventoryMovement
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		movement, _, err = s.apply(txCtx, entry)
		return err
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

// apply must run inside a transaction. It returns the product as it was
// locked, before the change.
func (s *ledgerService) apply(txCtx context.Context, entry LedgerEntry) (*model.InventoryMovement, *model.Product, error) {
	sign := model.MovementSign(entry.Type)
	if sign == 0 {
		return nil, nil, apperror.Validation(fmt.Sprintf("unknown movement type %q", entry.Type))
	}
	if entry.Quantity <= 0 {
		return nil, nil, apperror.Validation("quantity must be greater than zero")
	}
	if entry.Reason == "" {
		return nil, nil, apperror.Validation("reason is required")
	}

	// increases must land even if the product was retired while held
	findProduct := s.productRepo.FindByIDForUpdate
	if sign > 0 {
		findProduct = s.productRepo.FindAnyByIDForUpdate
	}
	product, err := findProduct(txCtx, entry.ProductID)
	if err != nil {
		return nil, nil, notFoundOr(err, "product")
	}

	delta := sign * entry.Quantity
	ok, err := s.productRepo.AdjustStock(txCtx, product.ID, delta)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update stock: %w", err)
	}
	if !ok {
		return nil, nil, apperror.InsufficientStock(product.Stock, entry.Quantity)
	}

	movement := &model.InventoryMovement{
		ProductID:     product.ID,
		ReservationID: entry.ReservationID,
		Type:          entry.Type,
		Quantity:      entry.Quantity,
		PreviousStock: product.Stock,
		NewStock:      product.Stock + delta,
		Reason:        entry.Reason,
		Notes:         entry.Notes,
		UserID:        entry.UserID,
	}
	if err := s.movementRepo.Create(txCtx, movement); err != nil {
		return nil, nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	return movement, product, nil
}

func (s *ledgerService) AdjustStock(ctx context.Context, actor model.Actor, productID string, req StockAdjustmentRequest) (*model.InventoryMovement, error) {
	if !actor.IsAdmin() {
		return nil, apperror.Forbidden("only admins can adjust stock")
	}
	if !manualMovementTypes[req.Type] {
		return nil, apperror.Validation(fmt.Sprintf("movement type %q cannot be recorded manually", req.Type))
	}
	pid, err := parseID(productID, "product")
	if err != nil {
		return nil, err
	}

	var movement *model.InventoryMovement
	var product *model.Product
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		movement, product, err = s.apply(txCtx, LedgerEntry{
			ProductID: pid,
			Type:      req.Type,
			Quantity:  req.Quantity,
			Reason:    req.Reason,
			Notes:     req.Notes,
			UserID:    actor.UserRef(),
		})
		if err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, actor, model.ActionAdjustStock, product.ID.String(), product.Name, map[string]interface{}{
			"type":           movement.Type,
			"quantity":       movement.Quantity,
			"previous_stock": movement.PreviousStock,
			"new_stock":      movement.NewStock,
			"reason":         movement.Reason,
		})
	})
	if err != nil {
		return nil, err
	}

	if movement.Delta() < 0 && movement.NewStock <= product.MinStock {
		s.notifier.Emit(ctx, lowStockEvent(product, movement.NewStock))
	}
	s.log.Info("stock adjusted",
		zap.String("product_id", product.ID.String()),
		zap.String("type", movement.Type),
		zap.Int("new_stock", movement.NewStock),
	)
	return movement, nil
}

func (s *ledgerService) ListMovements(ctx context.Context, productID string, page, limit int) ([]model.InventoryMovement, pagination.Meta, error) {
	pid, err := parseID(productID, "product")
	if err != nil {
		return nil, pagination.Meta{}, err
	}
	if _, err := s.productRepo.FindByID(ctx, pid); err != nil {
		return nil, pagination.Meta{}, notFoundOr(err, "product")
	}

	p := pagination.Normalize(page, limit)
	movements, total, err := s.movementRepo.ListByProduct(ctx, pid, p.Offset, p.Limit)
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("failed to list movements: %w", err)
	}
	return movements, p.NewMeta(total), nil
}

func lowStockEvent(product *model.Product, stock int) notify.Event {
	return notify.Event{
		Type:    notify.EventLowStock,
		Title:   "Low stock",
		Message: fmt.Sprintf("%s (%s) is down to %d units", product.Name, product.SKU, stock),
		Payload: map[string]interface{}{
			"product_id": product.ID.String(),
			"sku":        product.SKU,
			"stock":      stock,
			"min_stock":  product.MinStock,
		},
	}
}
