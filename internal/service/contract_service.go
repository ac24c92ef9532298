package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/buildops-contracts/internal/config"
	"github.com/nurpe/buildops-contracts/internal/model"
	"github.com/nurpe/buildops-contracts/internal/money"
)

type ExcelGenerator interface {
	Generate(doc model.ContractDocument) ([]byte, error)
}

type PDFGenerator interface {
	Generate(doc model.ContractDocument) ([]byte, error)
}

// ContractService implements the contract value rollup operations. Every
// mutation runs through Store.UpdateAggregate, which recomputes both derived
// totals and persists them with the mutation in one transaction, so the
// returned contract always satisfies:
//
//	originalAmount = Σ scheduledValue over lines
//	revisedAmount  = originalAmount + Σ amount over APPROVED variations
type ContractService struct {
	store          Store
	excel          ExcelGenerator
	pdf            PDFGenerator
	variationTypes []string
}

func NewContractService(store Store, excel ExcelGenerator, pdf PDFGenerator, cfg *config.Config) *ContractService {
	return &ContractService{
		store:          store,
		excel:          excel,
		pdf:            pdf,
		variationTypes: cfg.Contracts.VariationTypes,
	}
}

type CreateContractInput struct {
	ContractNumber string
	ProjectID      uuid.UUID
	Principal      model.Principal
}

func (s *ContractService) CreateContract(ctx context.Context, input CreateContractInput) (*model.Contract, error) {
	if input.Principal.IsViewer() {
		return nil, ErrPermissionDenied
	}

	contractNumber := strings.TrimSpace(input.ContractNumber)
	if contractNumber == "" {
		return nil, fmt.Errorf("%w: contract_number is required", ErrInvalidInput)
	}
	if input.ProjectID == uuid.Nil {
		return nil, fmt.Errorf("%w: project_id is required", ErrInvalidInput)
	}

	exists, err := s.store.ContractNumberExists(ctx, contractNumber)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateContractNumber, contractNumber)
	}

	contract := &model.Contract{
		ID:              uuid.New(),
		ContractNumber:  contractNumber,
		ProjectID:       input.ProjectID,
		Status:          model.ContractStatusDraft,
		OriginalAmount:  money.Zero(),
		RevisedAmount:   money.Zero(),
		CreatedByOrgID:  input.Principal.OrgID,
		CreatedByUserID: input.Principal.UserID,
	}
	return s.store.CreateContract(ctx, contract)
}

func (s *ContractService) GetContract(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	contract, err := s.store.GetContract(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("%w: contract %s", ErrNotFound, id)
		}
		return nil, err
	}
	// The read path takes no lock, so a concurrent commit can land between
	// the contract-row read and the child reads. Recomputing here keeps the
	// returned totals consistent with the returned children no matter how
	// the statements interleaved.
	contract.Recalculate()
	contract.SortLines()
	return contract, nil
}

type AddLineInput struct {
	ContractID     uuid.UUID
	LineNumber     int
	Description    string
	ScheduledValue money.Money
	Principal      model.Principal
}

func (s *ContractService) AddLine(ctx context.Context, input AddLineInput) (*model.Contract, error) {
	if input.Principal.IsViewer() {
		return nil, ErrPermissionDenied
	}
	if input.LineNumber <= 0 {
		return nil, fmt.Errorf("%w: line_number must be positive", ErrInvalidInput)
	}
	if input.ScheduledValue.IsNegative() {
		return nil, fmt.Errorf("%w: scheduled_value must not be negative", ErrInvalidAmount)
	}

	return s.mutate(ctx, input.ContractID, func(tx AggregateTx, contract *model.Contract) error {
		if contract.HasLineNumber(input.LineNumber) {
			return fmt.Errorf("%w: line %d", ErrDuplicateLineNumber, input.LineNumber)
		}

		line := model.ContractLine{
			ID:             uuid.New(),
			ContractID:     contract.ID,
			LineNumber:     input.LineNumber,
			Description:    strings.TrimSpace(input.Description),
			ScheduledValue: input.ScheduledValue,
		}
		if err := tx.InsertLine(ctx, &line); err != nil {
			return err
		}
		contract.Lines = append(contract.Lines, line)
		return nil
	})
}

type UpdateLineInput struct {
	ContractID     uuid.UUID
	LineID         uuid.UUID
	ScheduledValue money.Money
	Description    *string
	Principal      model.Principal
}

func (s *ContractService) UpdateLine(ctx context.Context, input UpdateLineInput) (*model.Contract, error) {
	if input.Principal.IsViewer() {
		return nil, ErrPermissionDenied
	}
	if input.ScheduledValue.IsNegative() {
		return nil, fmt.Errorf("%w: scheduled_value must not be negative", ErrInvalidAmount)
	}

	return s.mutate(ctx, input.ContractID, func(tx AggregateTx, contract *model.Contract) error {
		line := contract.LineByID(input.LineID)
		if line == nil {
			return fmt.Errorf("%w: line %s", ErrNotFound, input.LineID)
		}

		line.ScheduledValue = input.ScheduledValue
		if input.Description != nil {
			line.Description = strings.TrimSpace(*input.Description)
		}
		return tx.UpdateLine(ctx, line)
	})
}

type RemoveLineInput struct {
	ContractID uuid.UUID
	LineID     uuid.UUID
	Principal  model.Principal
}

func (s *ContractService) RemoveLine(ctx context.Context, input RemoveLineInput) (*model.Contract, error) {
	if input.Principal.IsViewer() {
		return nil, ErrPermissionDenied
	}

	return s.mutate(ctx, input.ContractID, func(tx AggregateTx, contract *model.Contract) error {
		line := contract.LineByID(input.LineID)
		if line == nil {
			return fmt.Errorf("%w: line %s", ErrNotFound, input.LineID)
		}

		if err := tx.DeleteLine(ctx, input.LineID); err != nil {
			return err
		}
		kept := contract.Lines[:0]
		for _, l := range contract.Lines {
			if l.ID != input.LineID {
				kept = append(kept, l)
			}
		}
		contract.Lines = kept
		return nil
	})
}

type AddVariationInput struct {
	ContractID      uuid.UUID
	VariationNumber int
	Title           string
	Type            string
	Amount          money.Money
	Principal       model.Principal
}

func (s *ContractService) AddVariation(ctx context.Context, input AddVariationInput) (*model.Contract, error) {
	if input.Principal.IsViewer() {
		return nil, ErrPermissionDenied
	}
	if input.VariationNumber <= 0 {
		return nil, fmt.Errorf("%w: variation_number must be positive", ErrInvalidInput)
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	variationType, err := s.validateVariationType(input.Type)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, input.ContractID, func(tx AggregateTx, contract *model.Contract) error {
		if contract.HasVariationNumber(input.VariationNumber) {
			return fmt.Errorf("%w: variation %d", ErrDuplicateVariationNumber, input.VariationNumber)
		}

		variation := model.Variation{
			ID:              uuid.New(),
			ContractID:      contract.ID,
			VariationNumber: input.VariationNumber,
			Title:           title,
			Type:            variationType,
			Amount:          input.Amount,
			Status:          model.VariationStatusDraft,
			CreatedByOrgID:  input.Principal.OrgID,
			CreatedByUserID: input.Principal.UserID,
		}
		if err := tx.InsertVariation(ctx, &variation); err != nil {
			return err
		}
		contract.Variations = append(contract.Variations, variation)
		return nil
	})
}

type VariationDecisionInput struct {
	ContractID  uuid.UUID
	VariationID uuid.UUID
	Reason      *string
	Principal   model.Principal
}

func (s *ContractService) ApproveVariation(ctx context.Context, input VariationDecisionInput) (*model.Contract, error) {
	if !canDecideVariation(input.Principal) {
		return nil, ErrPermissionDenied
	}

	return s.mutate(ctx, input.ContractID, func(tx AggregateTx, contract *model.Contract) error {
		variation := contract.VariationByID(input.VariationID)
		if variation == nil {
			return fmt.Errorf("%w: variation %s", ErrNotFound, input.VariationID)
		}
		if variation.Status != model.VariationStatusDraft {
			return fmt.Errorf("%w: variation is %s", ErrInvalidTransition, variation.Status)
		}

		now := time.Now().UTC()
		variation.Status = model.VariationStatusApproved
		variation.ApprovedByOrgID = &input.Principal.OrgID
		variation.ApprovedByUserID = &input.Principal.UserID
		variation.ApprovedAt = &now
		return tx.UpdateVariationStatus(ctx, variation)
	})
}

func (s *ContractService) RejectVariation(ctx context.Context, input VariationDecisionInput) (*model.Contract, error) {
	if !canDecideVariation(input.Principal) {
		return nil, ErrPermissionDenied
	}

	return s.mutate(ctx, input.ContractID, func(tx AggregateTx, contract *model.Contract) error {
		variation := contract.VariationByID(input.VariationID)
		if variation == nil {
			return fmt.Errorf("%w: variation %s", ErrNotFound, input.VariationID)
		}
		if variation.Status != model.VariationStatusDraft {
			return fmt.Errorf("%w: variation is %s", ErrInvalidTransition, variation.Status)
		}

		variation.Status = model.VariationStatusRejected
		if input.Reason != nil {
			reason := strings.TrimSpace(*input.Reason)
			if reason != "" {
				variation.RejectionReason = &reason
			}
		}
		return tx.UpdateVariationStatus(ctx, variation)
	})
}

type ExportInput struct {
	ContractID uuid.UUID
	Principal  model.Principal
}

type ExportResult struct {
	FileName string
	Content  []byte
}

func (s *ContractService) ExportContract(ctx context.Context, input ExportInput) (*ExportResult, error) {
	doc, err := s.buildDocument(ctx, input.ContractID)
	if err != nil {
		return nil, err
	}

	content, err := s.excel.Generate(*doc)
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		FileName: buildFileName(doc.Contract, "xlsx"),
		Content:  content,
	}, nil
}

func (s *ContractService) ExportContractPDF(ctx context.Context, input ExportInput) (*ExportResult, error) {
	doc, err := s.buildDocument(ctx, input.ContractID)
	if err != nil {
		return nil, err
	}

	content, err := s.pdf.Generate(*doc)
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		FileName: buildFileName(doc.Contract, "pdf"),
		Content:  content,
	}, nil
}

func (s *ContractService) mutate(
	ctx context.Context,
	contractID uuid.UUID,
	apply func(tx AggregateTx, contract *model.Contract) error,
) (*model.Contract, error) {
	contract, err := s.store.UpdateAggregate(ctx, contractID, apply)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("%w: contract %s", ErrNotFound, contractID)
		}
		return nil, err
	}
	return contract, nil
}

func (s *ContractService) buildDocument(ctx context.Context, contractID uuid.UUID) (*model.ContractDocument, error) {
	contract, err := s.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}

	var approved, pending []money.Money
	for _, v := range contract.Variations {
		switch v.Status {
		case model.VariationStatusApproved:
			approved = append(approved, v.Amount)
		case model.VariationStatusDraft:
			pending = append(pending, v.Amount)
		}
	}

	return &model.ContractDocument{
		Contract:      *contract,
		ApprovedTotal: money.Sum(approved),
		PendingTotal:  money.Sum(pending),
		GeneratedAt:   time.Now().UTC(),
	}, nil
}

func (s *ContractService) validateVariationType(raw string) (string, error) {
	variationType := strings.ToUpper(strings.TrimSpace(raw))
	if variationType == "" {
		return "", fmt.Errorf("%w: type is required", ErrInvalidInput)
	}
	if len(s.variationTypes) == 0 {
		return variationType, nil
	}
	for _, allowed := range s.variationTypes {
		if strings.EqualFold(allowed, variationType) {
			return variationType, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported variation type %q", ErrInvalidInput, raw)
}

// Approving or rejecting a change order is a commercial decision; surveyors
// draft them but do not decide them.
func canDecideVariation(p model.Principal) bool {
	return p.IsAdmin() || p.IsProjectManager()
}

func buildFileName(contract model.Contract, extension string) string {
	number := sanitizeFileName(contract.ContractNumber)
	if number == "" {
		number = contract.ID.String()
	}
	return fmt.Sprintf("contract-%s-sov-%s.%s", number, time.Now().UTC().Format("20060102"), extension)
}

func sanitizeFileName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z':
			result = append(result, r)
		case r >= 'A' && r <= 'Z':
			result = append(result, r)
		case r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-")
}
