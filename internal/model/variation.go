package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/buildops-contracts/internal/money"
)

type VariationStatus string

const (
	VariationStatusDraft    VariationStatus = "DRAFT"
	VariationStatusApproved VariationStatus = "APPROVED"
	VariationStatusRejected VariationStatus = "REJECTED"
)

// Variation is a change order against a contract. Type is an open tag
// ("PCO", "CCD", ...) validated against the configured list, not a closed
// enum. Amount may be negative for deductive change orders. A variation is
// created in DRAFT and moves exactly once to APPROVED or REJECTED; only
// APPROVED variations contribute to the contract's revised amount.
type Variation struct {
	ID               uuid.UUID
	ContractID       uuid.UUID
	VariationNumber  int
	Title            string
	Type             string
	Amount           money.Money
	Status           VariationStatus
	RejectionReason  *string
	ApprovedByOrgID  *uuid.UUID
	ApprovedByUserID *uuid.UUID
	ApprovedAt       *time.Time
	CreatedByOrgID   uuid.UUID
	CreatedByUserID  uuid.UUID
	CreatedAt        time.Time
}

// IsTerminal reports whether the variation has left DRAFT.
func (v *Variation) IsTerminal() bool {
	return v.Status == VariationStatusApproved || v.Status == VariationStatusRejected
}
