package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/buildops-contracts/internal/http/middleware"
	"github.com/nurpe/buildops-contracts/internal/model"
	"github.com/nurpe/buildops-contracts/internal/money"
	"github.com/nurpe/buildops-contracts/internal/repository"
	"github.com/nurpe/buildops-contracts/internal/service"
)

type Handler struct {
	contracts *service.ContractService
	log       zerolog.Logger
}

func NewHandler(contracts *service.ContractService, log zerolog.Logger) *Handler {
	return &Handler{contracts: contracts, log: log}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.POST("/contracts", h.createContract)
	protected.GET("/contracts/:id", h.getContract)
	protected.POST("/contracts/:id/lines", h.addLine)
	protected.PATCH("/contracts/:id/lines/:lineId", h.updateLine)
	protected.DELETE("/contracts/:id/lines/:lineId", h.removeLine)
	protected.POST("/contracts/:id/variations", h.addVariation)
	protected.POST("/contracts/:id/variations/:variationId/approve", h.approveVariation)
	protected.POST("/contracts/:id/variations/:variationId/reject", h.rejectVariation)
	protected.POST("/contracts/:id/export", h.exportContract)
	protected.POST("/contracts/:id/export/pdf", h.exportContractPDF)
}

type createContractRequest struct {
	ContractNumber string `json:"contract_number" binding:"required"`
	ProjectID      string `json:"project_id" binding:"required"`
}

func (h *Handler) createContract(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	projectID, err := uuid.Parse(strings.TrimSpace(req.ProjectID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project_id"})
		return
	}

	contract, err := h.contracts.CreateContract(c.Request.Context(), service.CreateContractInput{
		ContractNumber: req.ContractNumber,
		ProjectID:      projectID,
		Principal:      principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toContractResponse(contract))
}

func (h *Handler) getContract(c *gin.Context) {
	if _, ok := middleware.MustPrincipal(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	contractID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}

	contract, err := h.contracts.GetContract(c.Request.Context(), contractID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContractResponse(contract))
}

type addLineRequest struct {
	LineNumber     int    `json:"line_number" binding:"required"`
	Description    string `json:"description"`
	ScheduledValue string `json:"scheduled_value" binding:"required"`
}

func (h *Handler) addLine(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	contractID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}

	var req addLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	scheduledValue, err := money.Parse(req.ScheduledValue)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scheduled_value"})
		return
	}

	contract, err := h.contracts.AddLine(c.Request.Context(), service.AddLineInput{
		ContractID:     contractID,
		LineNumber:     req.LineNumber,
		Description:    req.Description,
		ScheduledValue: scheduledValue,
		Principal:      principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toContractResponse(contract))
}

type updateLineRequest struct {
	ScheduledValue string  `json:"scheduled_value" binding:"required"`
	Description    *string `json:"description"`
}

func (h *Handler) updateLine(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	contractID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}
	lineID, err := uuid.Parse(c.Param("lineId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid line id"})
		return
	}

	var req updateLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	scheduledValue, err := money.Parse(req.ScheduledValue)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scheduled_value"})
		return
	}

	contract, err := h.contracts.UpdateLine(c.Request.Context(), service.UpdateLineInput{
		ContractID:     contractID,
		LineID:         lineID,
		ScheduledValue: scheduledValue,
		Description:    req.Description,
		Principal:      principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContractResponse(contract))
}

func (h *Handler) removeLine(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	contractID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}
	lineID, err := uuid.Parse(c.Param("lineId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid line id"})
		return
	}

	contract, err := h.contracts.RemoveLine(c.Request.Context(), service.RemoveLineInput{
		ContractID: contractID,
		LineID:     lineID,
		Principal:  principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContractResponse(contract))
}

type addVariationRequest struct {
	VariationNumber int    `json:"variation_number" binding:"required"`
	Title           string `json:"title" binding:"required"`
	Type            string `json:"type" binding:"required"`
	Amount          string `json:"amount" binding:"required"`
}

func (h *Handler) addVariation(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	contractID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}

	var req addVariationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	amount, err := money.Parse(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	contract, err := h.contracts.AddVariation(c.Request.Context(), service.AddVariationInput{
		ContractID:      contractID,
		VariationNumber: req.VariationNumber,
		Title:           req.Title,
		Type:            req.Type,
		Amount:          amount,
		Principal:       principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toContractResponse(contract))
}

func (h *Handler) approveVariation(c *gin.Context) {
	h.decideVariation(c, h.contracts.ApproveVariation)
}

func (h *Handler) rejectVariation(c *gin.Context) {
	h.decideVariation(c, h.contracts.RejectVariation)
}

type decideVariationRequest struct {
	Reason *string `json:"reason"`
}

func (h *Handler) decideVariation(
	c *gin.Context,
	decide func(ctx context.Context, input service.VariationDecisionInput) (*model.Contract, error),
) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	contractID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}
	variationID, err := uuid.Parse(c.Param("variationId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid variation id"})
		return
	}

	// The body is optional; chunked requests report ContentLength -1, so an
	// empty read (io.EOF) is the signal for "no body", not the length.
	var req decideVariationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	contract, err := decide(c.Request.Context(), service.VariationDecisionInput{
		ContractID:  contractID,
		VariationID: variationID,
		Reason:      req.Reason,
		Principal:   principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContractResponse(contract))
}

func (h *Handler) exportContract(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	contractID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}

	result, err := h.contracts.ExportContract(c.Request.Context(), service.ExportInput{
		ContractID: contractID,
		Principal:  principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", result.Content)
}

func (h *Handler) exportContractPDF(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	contractID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}

	result, err := h.contracts.ExportContractPDF(c.Request.Context(), service.ExportInput{
		ContractID: contractID,
		Principal:  principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/pdf", result.Content)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrDuplicateContractNumber),
		errors.Is(err, service.ErrDuplicateLineNumber),
		errors.Is(err, service.ErrDuplicateVariationNumber),
		errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case repository.IsUniqueViolation(err):
		// A writer raced past the duplicate precheck; the unique index is
		// the final arbiter.
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate identifier"})
	default:
		h.log.Error().Err(err).Msg("contract operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type contractResponse struct {
	ID             string              `json:"id"`
	ContractNumber string              `json:"contract_number"`
	ProjectID      string              `json:"project_id"`
	Status         string              `json:"status"`
	OriginalAmount string              `json:"original_amount"`
	RevisedAmount  string              `json:"revised_amount"`
	Lines          []lineResponse      `json:"lines"`
	Variations     []variationResponse `json:"variations"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

type lineResponse struct {
	ID             string `json:"id"`
	LineNumber     int    `json:"line_number"`
	Description    string `json:"description"`
	ScheduledValue string `json:"scheduled_value"`
}

type variationResponse struct {
	ID              string     `json:"id"`
	VariationNumber int        `json:"variation_number"`
	Title           string     `json:"title"`
	Type            string     `json:"type"`
	Amount          string     `json:"amount"`
	Status          string     `json:"status"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
}

func toContractResponse(contract *model.Contract) contractResponse {
	lines := make([]lineResponse, 0, len(contract.Lines))
	for _, line := range contract.Lines {
		lines = append(lines, lineResponse{
			ID:             line.ID.String(),
			LineNumber:     line.LineNumber,
			Description:    line.Description,
			ScheduledValue: line.ScheduledValue.String(),
		})
	}

	variations := make([]variationResponse, 0, len(contract.Variations))
	for _, v := range contract.Variations {
		variations = append(variations, variationResponse{
			ID:              v.ID.String(),
			VariationNumber: v.VariationNumber,
			Title:           v.Title,
			Type:            v.Type,
			Amount:          v.Amount.String(),
			Status:          string(v.Status),
			RejectionReason: v.RejectionReason,
			ApprovedAt:      v.ApprovedAt,
		})
	}

	return contractResponse{
		ID:             contract.ID.String(),
		ContractNumber: contract.ContractNumber,
		ProjectID:      contract.ProjectID.String(),
		Status:         string(contract.Status),
		OriginalAmount: contract.OriginalAmount.String(),
		RevisedAmount:  contract.RevisedAmount.String(),
		Lines:          lines,
		Variations:     variations,
		CreatedAt:      contract.CreatedAt,
		UpdatedAt:      contract.UpdatedAt,
	}
}
