package model

import "github.com/google/uuid"

// Roles issued by the identity provider
const (
	RoleAdmin    = "ADMIN"
	RoleCustomer = "CUSTOMER"
)

// Approval states of a customer account
const (
	ApprovalStatusApproved = "APPROVED"
	ApprovalStatusPending  = "PENDING"
	ApprovalStatusRejected = "REJECTED"
)

// Actor is the caller identity as supplied by the identity provider.
// A nil-ID system actor is used by the expiration sweeper.
type Actor struct {
	UserID         uuid.UUID `json:"user_id"`
	Role           string    `json:"role"`
	ApprovalStatus string    `json:"approval_status"`
	CustomerTier   string    `json:"customer_tier"`
	System         bool      `json:"-"`
}

// SystemActor is the identity used for scheduled, unattended work
var SystemActor = Actor{Role: RoleAdmin, ApprovalStatus: ApprovalStatusApproved, System: true}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin && !a.System
}

func (a Actor) IsApproved() bool {
	return a.ApprovalStatus == ApprovalStatusApproved
}

// UserRef returns the id to record on ledger/audit rows, nil for the system.
func (a Actor) UserRef() *uuid.UUID {
	if a.System || a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}
