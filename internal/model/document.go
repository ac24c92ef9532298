package model

import (
	"time"

	"github.com/nurpe/buildops-contracts/internal/money"
)

// ContractDocument carries everything the export generators need to render a
// contract: the aggregate plus the variation totals broken out by status.
type ContractDocument struct {
	Contract      Contract
	ApprovedTotal money.Money
	PendingTotal  money.Money
	GeneratedAt   time.Time
}
