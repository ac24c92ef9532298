package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/nurpe/buildops-contracts/internal/model"
	"github.com/nurpe/buildops-contracts/internal/money"
	"github.com/nurpe/buildops-contracts/internal/service"
)

type ContractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

func (r *ContractRepository) CreateContract(ctx context.Context, contract *model.Contract) (*model.Contract, error) {
	var row struct {
		ID        uuid.UUID
		CreatedAt time.Time
		UpdatedAt time.Time
	}
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO contracts (
			id,
			contract_number,
			project_id,
			status,
			original_amount,
			revised_amount,
			created_by_org_id,
			created_by_user_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at, updated_at
	`,
		contract.ID,
		contract.ContractNumber,
		contract.ProjectID,
		contract.Status,
		contract.OriginalAmount,
		contract.RevisedAmount,
		contract.CreatedByOrgID,
		contract.CreatedByUserID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}

	saved := *contract
	saved.ID = row.ID
	saved.CreatedAt = row.CreatedAt
	saved.UpdatedAt = row.UpdatedAt
	return &saved, nil
}

func (r *ContractRepository) ContractNumberExists(ctx context.Context, contractNumber string) (bool, error) {
	var exists bool
	err := r.db.WithContext(ctx).Raw(`
		SELECT EXISTS (SELECT 1 FROM contracts WHERE contract_number = ?)
	`, contractNumber).Scan(&exists).Error
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *ContractRepository) GetContract(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	return r.loadAggregate(ctx, r.db, id, false)
}

// UpdateAggregate runs apply against the contract aggregate inside one
// transaction. The contracts row is locked FOR UPDATE before the children are
// read, so every mutating operation on a contract serializes on that lock and
// always sees the previously committed state. After apply succeeds both
// derived totals are recomputed from the children and written with the same
// transaction; any error rolls the whole operation back.
func (r *ContractRepository) UpdateAggregate(
	ctx context.Context,
	id uuid.UUID,
	apply func(tx service.AggregateTx, contract *model.Contract) error,
) (*model.Contract, error) {
	var result *model.Contract
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contract, err := r.loadAggregate(ctx, tx, id, true)
		if err != nil {
			return err
		}

		if err := apply(&aggregateTx{tx: tx}, contract); err != nil {
			return err
		}

		contract.Recalculate()
		if err := updateTotals(ctx, tx, contract); err != nil {
			return err
		}

		result = contract
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.SortLines()
	return result, nil
}

func (r *ContractRepository) loadAggregate(ctx context.Context, tx *gorm.DB, id uuid.UUID, forUpdate bool) (*model.Contract, error) {
	query := `
		SELECT
			id,
			contract_number,
			project_id,
			status,
			original_amount,
			revised_amount,
			created_by_org_id,
			created_by_user_id,
			created_at,
			updated_at
		FROM contracts
		WHERE id = ?
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var row struct {
		ID              uuid.UUID
		ContractNumber  string
		ProjectID       uuid.UUID
		Status          model.ContractStatus
		OriginalAmount  money.Money
		RevisedAmount   money.Money
		CreatedByOrgID  uuid.UUID
		CreatedByUserID uuid.UUID
		CreatedAt       time.Time
		UpdatedAt       time.Time
	}
	if err := tx.WithContext(ctx).Raw(query, id).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}

	var lines []model.ContractLine
	err := tx.WithContext(ctx).Raw(`
		SELECT
			id,
			contract_id,
			line_number,
			description,
			scheduled_value,
			created_at,
			updated_at
		FROM contract_lines
		WHERE contract_id = ?
		ORDER BY line_number ASC
	`, id).Scan(&lines).Error
	if err != nil {
		return nil, err
	}

	var variations []model.Variation
	err = tx.WithContext(ctx).Raw(`
		SELECT
			id,
			contract_id,
			variation_number,
			title,
			type,
			amount,
			status,
			rejection_reason,
			approved_by_org_id,
			approved_by_user_id,
			approved_at,
			created_by_org_id,
			created_by_user_id,
			created_at
		FROM contract_variations
		WHERE contract_id = ?
		ORDER BY variation_number ASC
	`, id).Scan(&variations).Error
	if err != nil {
		return nil, err
	}

	return &model.Contract{
		ID:              row.ID,
		ContractNumber:  row.ContractNumber,
		ProjectID:       row.ProjectID,
		Status:          row.Status,
		OriginalAmount:  row.OriginalAmount,
		RevisedAmount:   row.RevisedAmount,
		Lines:           lines,
		Variations:      variations,
		CreatedByOrgID:  row.CreatedByOrgID,
		CreatedByUserID: row.CreatedByUserID,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}, nil
}

func updateTotals(ctx context.Context, tx *gorm.DB, contract *model.Contract) error {
	return tx.WithContext(ctx).Exec(`
		UPDATE contracts
		SET
			original_amount = ?,
			revised_amount = ?,
			updated_at = NOW()
		WHERE id = ?
	`, contract.OriginalAmount, contract.RevisedAmount, contract.ID).Error
}

// aggregateTx exposes the child-row statements that run inside an
// UpdateAggregate transaction.
type aggregateTx struct {
	tx *gorm.DB
}

func (a *aggregateTx) InsertLine(ctx context.Context, line *model.ContractLine) error {
	return a.tx.WithContext(ctx).Exec(`
		INSERT INTO contract_lines (
			id,
			contract_id,
			line_number,
			description,
			scheduled_value
		) VALUES (?, ?, ?, ?, ?)
	`,
		line.ID,
		line.ContractID,
		line.LineNumber,
		line.Description,
		line.ScheduledValue,
	).Error
}

func (a *aggregateTx) UpdateLine(ctx context.Context, line *model.ContractLine) error {
	return a.tx.WithContext(ctx).Exec(`
		UPDATE contract_lines
		SET
			description = ?,
			scheduled_value = ?,
			updated_at = NOW()
		WHERE id = ?
	`, line.Description, line.ScheduledValue, line.ID).Error
}

func (a *aggregateTx) DeleteLine(ctx context.Context, lineID uuid.UUID) error {
	return a.tx.WithContext(ctx).Exec(`
		DELETE FROM contract_lines WHERE id = ?
	`, lineID).Error
}

func (a *aggregateTx) InsertVariation(ctx context.Context, variation *model.Variation) error {
	return a.tx.WithContext(ctx).Exec(`
		INSERT INTO contract_variations (
			id,
			contract_id,
			variation_number,
			title,
			type,
			amount,
			status,
			created_by_org_id,
			created_by_user_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		variation.ID,
		variation.ContractID,
		variation.VariationNumber,
		variation.Title,
		variation.Type,
		variation.Amount,
		variation.Status,
		variation.CreatedByOrgID,
		variation.CreatedByUserID,
	).Error
}

func (a *aggregateTx) UpdateVariationStatus(ctx context.Context, variation *model.Variation) error {
	return a.tx.WithContext(ctx).Exec(`
		UPDATE contract_variations
		SET
			status = ?,
			rejection_reason = ?,
			approved_by_org_id = ?,
			approved_by_user_id = ?,
			approved_at = ?
		WHERE id = ?
	`,
		variation.Status,
		variation.RejectionReason,
		variation.ApprovedByOrgID,
		variation.ApprovedByUserID,
		variation.ApprovedAt,
		variation.ID,
	).Error
}

// IsUniqueViolation reports whether err is a postgres unique-constraint
// violation, e.g. a contract number raced past the existence check.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
