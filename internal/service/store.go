package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/nurpe/buildops-contracts/internal/model"
)

// Store is the persistence boundary for contract aggregates. Implementations
// must give UpdateAggregate read-modify-write transaction semantics scoped to
// one contract: apply sees the latest committed state of the aggregate, no
// other writer interleaves while it runs, both derived totals are recomputed
// from the children and persisted together with apply's statements, and an
// error from apply (or from any statement) rolls the whole operation back.
type Store interface {
	CreateContract(ctx context.Context, contract *model.Contract) (*model.Contract, error)
	GetContract(ctx context.Context, id uuid.UUID) (*model.Contract, error)
	ContractNumberExists(ctx context.Context, contractNumber string) (bool, error)
	UpdateAggregate(ctx context.Context, id uuid.UUID, apply func(tx AggregateTx, contract *model.Contract) error) (*model.Contract, error)
}

// AggregateTx is the set of child-row writes available inside an
// UpdateAggregate transaction.
type AggregateTx interface {
	InsertLine(ctx context.Context, line *model.ContractLine) error
	UpdateLine(ctx context.Context, line *model.ContractLine) error
	DeleteLine(ctx context.Context, lineID uuid.UUID) error
	InsertVariation(ctx context.Context, variation *model.Variation) error
	UpdateVariationStatus(ctx context.Context, variation *model.Variation) error
}
