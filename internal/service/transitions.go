package service

import (
	"time"

	"partsreserve/internal/model"
	"partsreserve/internal/notify"
)

// Action is a state machine input.
type Action string

const (
	ActionCancel        Action = "cancel"
	ActionVerifyDeposit Action = "verify_deposit"
	ActionApprove       Action = "approve"
	ActionReject        Action = "reject"
	ActionComplete      Action = "complete"
	ActionExpire        Action = "expire"
)

// transitionRule is one row of the state machine: who may fire the action,
// from which states, and what it does.
type transitionRule struct {
	permitted    func(actor model.Actor, r *model.Reservation) bool
	from         []string
	guard        func(r *model.Reservation, now time.Time) bool
	to           string
	returnsStock bool
	effect       func(r *model.Reservation, settings model.Settings, now time.Time)
	event        string
	title        string
}

func adminOnly(actor model.Actor, _ *model.Reservation) bool {
	return actor.IsAdmin()
}

func ownerOrAdmin(actor model.Actor, r *model.Reservation) bool {
	return actor.IsAdmin() || (!actor.System && actor.UserID == r.UserID)
}

func systemOnly(actor model.Actor, _ *model.Reservation) bool {
	return actor.System
}

var transitionTable = map[Action]transitionRule{
	ActionCancel: {
		permitted:    ownerOrAdmin,
		from:         model.ActiveStatuses,
		to:           model.StatusCancelled,
		returnsStock: true,
		event:        notify.EventReservationCancelled,
		title:        "Reservation cancelled",
	},
	ActionVerifyDeposit: {
		permitted: adminOnly,
		from:      []string{model.StatusPending},
		guard: func(r *model.Reservation, _ time.Time) bool {
			return r.Type == model.ReservationDeposit
		},
		to: model.StatusDepositVerified,
		effect: func(r *model.Reservation, settings model.Settings, now time.Time) {
			r.DepositPaid = true
			r.ExpiresAt = now.Add(settings.DepositReservationWindow())
		},
		event: notify.EventDepositVerified,
		title: "Deposit verified",
	},
	ActionApprove: {
		permitted: adminOnly,
		from:      []string{model.StatusPending, model.StatusDepositVerified},
		to:        model.StatusApproved,
		event:     notify.EventReservationApproved,
		title:     "Reservation approved",
	},
	ActionReject: {
		permitted:    adminOnly,
		from:         model.ActiveStatuses,
		to:           model.StatusRejected,
		returnsStock: true,
		event:        notify.EventReservationRejected,
		title:        "Reservation rejected",
	},
	ActionComplete: {
		permitted: adminOnly,
		from:      []string{model.StatusApproved, model.StatusDepositVerified},
		to:        model.StatusCompleted,
		event:     notify.EventReservationCompleted,
		title:     "Reservation completed",
	},
	ActionExpire: {
		permitted: systemOnly,
		from:      model.ActiveStatuses,
		// a deposit verified after the sweep selected the row has a new window
		guard: func(r *model.Reservation, now time.Time) bool {
			return !r.ExpiresAt.After(now)
		},
		to:           model.StatusExpired,
		returnsStock: true,
		event:        notify.EventReservationExpired,
		title:        "Reservation expired",
	},
}

func (rule transitionRule) legalFrom(r *model.Reservation, now time.Time) bool {
	for _, s := range rule.from {
		if s == r.Status {
			return rule.guard == nil || rule.guard(r, now)
		}
	}
	return false
}

func stockReturnReason(action Action, code string) string {
	switch action {
	case ActionExpire:
		return "Reservation " + code + " expired automatically"
	case ActionReject:
		return "Reservation " + code + " rejected"
	default:
		return "Reservation " + code + " cancelled"
	}
}
