package model

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/buildops-contracts/internal/money"
)

type ContractStatus string

const (
	ContractStatusDraft    ContractStatus = "DRAFT"
	ContractStatusExecuted ContractStatus = "EXECUTED"
	ContractStatusClosed   ContractStatus = "CLOSED"
)

// Contract is the aggregate root for a construction contract's schedule of
// values and its change orders. OriginalAmount and RevisedAmount are derived:
// the service recomputes both on every mutation and persists them in the same
// transaction as the change that triggered the recompute.
type Contract struct {
	ID              uuid.UUID
	ContractNumber  string
	ProjectID       uuid.UUID
	Status          ContractStatus
	OriginalAmount  money.Money
	RevisedAmount   money.Money
	Lines           []ContractLine
	Variations      []Variation
	CreatedByOrgID  uuid.UUID
	CreatedByUserID uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ContractLine is one schedule-of-values entry. LineNumber is unique within a
// contract and drives ordering; it need not be contiguous.
type ContractLine struct {
	ID             uuid.UUID
	ContractID     uuid.UUID
	LineNumber     int
	Description    string
	ScheduledValue money.Money
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Recalculate recomputes both derived totals from the owned children. A full
// recompute on purpose: the totals cannot drift from the children no matter
// which mutation path ran, and line/variation counts are bounded in this
// domain.
func (c *Contract) Recalculate() {
	scheduled := make([]money.Money, 0, len(c.Lines))
	for _, line := range c.Lines {
		scheduled = append(scheduled, line.ScheduledValue)
	}
	c.OriginalAmount = money.Sum(scheduled)

	approved := make([]money.Money, 0, len(c.Variations))
	for _, v := range c.Variations {
		if v.Status == VariationStatusApproved {
			approved = append(approved, v.Amount)
		}
	}
	c.RevisedAmount = c.OriginalAmount.Add(money.Sum(approved))
}

// SortLines orders the schedule of values by line number.
func (c *Contract) SortLines() {
	sort.Slice(c.Lines, func(i, j int) bool {
		return c.Lines[i].LineNumber < c.Lines[j].LineNumber
	})
}

func (c *Contract) LineByID(id uuid.UUID) *ContractLine {
	for i := range c.Lines {
		if c.Lines[i].ID == id {
			return &c.Lines[i]
		}
	}
	return nil
}

func (c *Contract) HasLineNumber(n int) bool {
	for _, line := range c.Lines {
		if line.LineNumber == n {
			return true
		}
	}
	return false
}

func (c *Contract) VariationByID(id uuid.UUID) *Variation {
	for i := range c.Variations {
		if c.Variations[i].ID == id {
			return &c.Variations[i]
		}
	}
	return nil
}

func (c *Contract) HasVariationNumber(n int) bool {
	for _, v := range c.Variations {
		if v.VariationNumber == n {
			return true
		}
	}
	return false
}
