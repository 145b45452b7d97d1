package service

import (
	"context"
	"fmt"
	"time"

	"partsreserve/internal/lock"
	"partsreserve/internal/model"
	"partsreserve/internal/notify"
	"partsreserve/internal/repository"
	"partsreserve/pkg/apperror"

	"go.uber.org/zap"
)

const (
	sweepLockKey = "lock:reservations:sweep"

	// warnLookahead bounds the warn query; only holds with between
	// warnBandStart and warnLookahead left are announced.
	warnLookahead = 30 * time.Minute
	warnBandStart = 25 * time.Minute
)

// SweepResult summarises one sweep run.
type SweepResult struct {
	ExpiredIDs []string          `json:"expired_ids"`
	WarnedIDs  []string          `json:"warned_ids"`
	Failed     map[string]string `json:"failed,omitempty"`
	RanAt      time.Time         `json:"ran_at"`
}

// Sweeper expires reservations whose hold window has ended and warns about
// those about to end.
type Sweeper struct {
	reservationRepo repository.ReservationRepository
	reservations    ReservationService
	auditRepo       repository.AuditRepository
	notifier        notify.Notifier
	locker          lock.Locker
	interval        time.Duration
	lockTTL         time.Duration
	log             *zap.Logger
	now             func() time.Time
}

func NewSweeper(
	reservationRepo repository.ReservationRepository,
	reservations ReservationService,
	auditRepo repository.AuditRepository,
	notifier notify.Notifier,
	locker lock.Locker,
	interval time.Duration,
	lockTTL time.Duration,
	log *zap.Logger,
) *Sweeper {
	return &Sweeper{
		reservationRepo: reservationRepo,
		reservations:    reservations,
		auditRepo:       auditRepo,
		notifier:        notifier,
		locker:          locker,
		interval:        interval,
		lockTTL:         lockTTL,
		log:             log,
		now:             utcNow,
	}
}

// Sweep runs the expire pass and then the warn pass. Per-reservation
// failures are collected in the result and do not stop the run.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.now()
	result := SweepResult{
		ExpiredIDs: []string{},
		WarnedIDs:  []string{},
		Failed:     map[string]string{},
		RanAt:      now,
	}

	due, err := s.reservationRepo.ListDueForExpiry(ctx, now)
	if err != nil {
		return result, fmt.Errorf("failed to list expired reservations: %w", err)
	}
	for _, r := range due {
		_, err := s.reservations.ApplyTransition(ctx, model.SystemActor, r.ID, ActionExpire, TransitionOptions{})
		switch {
		case err == nil:
			result.ExpiredIDs = append(result.ExpiredIDs, r.ID.String())
		case apperror.HasCode(err, apperror.CodeInvalidTransition):
			// already handled by another writer
			s.log.Debug("skipping reservation", zap.String("reservation_id", r.ID.String()), zap.Error(err))
		default:
			s.log.Error("failed to expire reservation", zap.String("reservation_id", r.ID.String()), zap.Error(err))
			result.Failed[r.ID.String()] = err.Error()
		}
	}

	expiring, err := s.reservationRepo.ListExpiringBetween(ctx, now, now.Add(warnLookahead))
	if err != nil {
		return result, fmt.Errorf("failed to list expiring reservations: %w", err)
	}
	for i := range expiring {
		r := &expiring[i]
		remaining := r.ExpiresAt.Sub(now)
		if remaining < warnBandStart || remaining > warnLookahead {
			continue
		}
		event := reservationEvent(notify.EventReservationExpiring, "Reservation expiring soon", r)
		event.Message = fmt.Sprintf("Reservation %s expires in %d minutes", r.QRCode, int(remaining.Minutes()))
		s.notifier.Emit(ctx, event)
		result.WarnedIDs = append(result.WarnedIDs, r.ID.String())
	}

	return result, nil
}

// Trigger is the operator escape hatch behind the HTTP endpoint.
func (s *Sweeper) Trigger(ctx context.Context, actor model.Actor) (SweepResult, error) {
	if !actor.IsAdmin() {
		return SweepResult{}, apperror.Forbidden("only admins can trigger a sweep")
	}
	result, err := s.Sweep(ctx)
	if err != nil {
		return result, err
	}
	if err := writeAudit(ctx, s.auditRepo, actor, model.ActionManualSweepTrigger, "", "sweep", map[string]interface{}{
		"expired": len(result.ExpiredIDs),
		"warned":  len(result.WarnedIDs),
		"failed":  len(result.Failed),
	}); err != nil {
		s.log.Warn("failed to audit manual sweep", zap.Error(err))
	}
	return result, nil
}

// Start sweeps immediately and then on every interval until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.log.Info("starting reservation sweeper", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("stopping reservation sweeper")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	release, ok, err := s.locker.Acquire(ctx, sweepLockKey, s.lockTTL)
	if err != nil {
		s.log.Warn("failed to acquire sweep lock", zap.Error(err))
		return
	}
	if !ok {
		s.log.Debug("sweep already running elsewhere")
		return
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("failed to release sweep lock", zap.Error(err))
		}
	}()

	result, err := s.Sweep(ctx)
	if err != nil {
		s.log.Error("sweep failed", zap.Error(err))
	}
	if len(result.ExpiredIDs) > 0 || len(result.WarnedIDs) > 0 || len(result.Failed) > 0 {
		s.log.Info("sweep finished",
			zap.Int("expired", len(result.ExpiredIDs)),
			zap.Int("warned", len(result.WarnedIDs)),
			zap.Int("failed", len(result.Failed)),
		)
	}
}
