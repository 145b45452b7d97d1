package service

import (
	"context"
	"strings"
	"time"

	"partsreserve/internal/model"
	"partsreserve/internal/repository"
	"partsreserve/pkg/apperror"

	"go.uber.org/zap"
)

type VerifyCompleteRequest struct {
	Code       string `json:"code" binding:"required"`
	AdminNotes string `json:"admin_notes"`
}

type VerificationResult struct {
	Reservation *model.Reservation `json:"reservation"`
	IsExpired   bool               `json:"is_expired"`
	CanComplete bool               `json:"can_complete"`
	Message     string             `json:"message"`
}

// VerificationService resolves counter hand-off codes.
type VerificationService interface {
	Lookup(ctx context.Context, actor model.Actor, code string) (VerificationResult, error)
	Complete(ctx context.Context, actor model.Actor, code, adminNotes string) (*model.Reservation, error)
}

type verificationService struct {
	reservationRepo repository.ReservationRepository
	reservations    ReservationService
	log             *zap.Logger
	now             func() time.Time
}

func NewVerificationService(reservationRepo repository.ReservationRepository, reservations ReservationService, log *zap.Logger) VerificationService {
	return &verificationService{
		reservationRepo: reservationRepo,
		reservations:    reservations,
		log:             log,
		now:             utcNow,
	}
}

func (s *verificationService) Lookup(ctx context.Context, actor model.Actor, code string) (VerificationResult, error) {
	reservation, err := s.resolve(ctx, actor, code)
	if err != nil {
		return VerificationResult{}, err
	}

	isExpired := reservation.IsExpiredAt(s.now())
	canComplete := !isExpired &&
		(reservation.Status == model.StatusApproved || reservation.Status == model.StatusDepositVerified)

	return VerificationResult{
		Reservation: reservation,
		IsExpired:   isExpired,
		CanComplete: canComplete,
		Message:     statusMessage(reservation, isExpired, canComplete),
	}, nil
}

// Complete re-checks everything Lookup reported, inside the transaction
// that completes the reservation.
func (s *verificationService) Complete(ctx context.Context, actor model.Actor, code, adminNotes string) (*model.Reservation, error) {
	reservation, err := s.resolve(ctx, actor, code)
	if err != nil {
		return nil, err
	}

	completed, err := s.reservations.ApplyTransition(ctx, actor, reservation.ID, ActionComplete, TransitionOptions{
		AdminNotes:       adminNotes,
		RequireUnexpired: true,
		AuditAction:      model.ActionCompleteByCode,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("reservation picked up", zap.String("reservation_id", completed.ID.String()))
	return completed, nil
}

func (s *verificationService) resolve(ctx context.Context, actor model.Actor, code string) (*model.Reservation, error) {
	if !actor.IsAdmin() {
		return nil, apperror.Forbidden("only admins can verify reservations")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperror.Validation("code is required")
	}
	reservation, err := s.reservationRepo.FindByQRCode(ctx, strings.ToLower(code))
	if err != nil {
		return nil, notFoundOr(err, "reservation")
	}
	return reservation, nil
}

func statusMessage(r *model.Reservation, isExpired, canComplete bool) string {
	switch {
	case canComplete:
		return "Ready for pickup"
	case r.Status == model.StatusCompleted:
		return "Already picked up"
	case r.Status == model.StatusCancelled:
		return "Reservation was cancelled"
	case r.Status == model.StatusRejected:
		return "Reservation was rejected"
	case r.Status == model.StatusExpired, isExpired:
		return "Reservation has expired"
	case r.Type == model.ReservationDeposit:
		return "Deposit awaiting verification"
	default:
		return "Awaiting approval"
	}
}
