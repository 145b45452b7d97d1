package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"partsreserve/internal/model"
	"partsreserve/internal/repository"
	"partsreserve/pkg/apperror"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func utcNow() time.Time {
	return time.Now().UTC()
}

// notFoundOr maps gorm.ErrRecordNotFound to NOT_FOUND and wraps anything else.
func notFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(what + " not found")
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

func parseID(raw, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid " + what + " id")
	}
	return id, nil
}

// writeAudit records an audit row inside the caller's transaction.
func writeAudit(ctx context.Context, repo repository.AuditRepository, actor model.Actor, action, entityID, entityName string, details interface{}) error {
	payload, _ := json.Marshal(details)
	entry := &model.AuditLog{
		UserID:     actor.UserRef(),
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(payload),
	}
	if err := repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
