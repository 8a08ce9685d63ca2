package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/repository"
	"invoice-reconciliation-backend/internal/services/explanation"
	"invoice-reconciliation-backend/internal/services/reconciliation"
	"invoice-reconciliation-backend/internal/services/scoring"
)

type ReconciliationHandler struct {
	reconService *reconciliation.Service
	explService  *explanation.Service
	invoiceRepo  *repository.InvoiceRepository
	txRepo       *repository.BankTransactionRepository
	vendorRepo   *repository.VendorRepository
}

func NewReconciliationHandler(
	reconService *reconciliation.Service,
	explService *explanation.Service,
	invoiceRepo *repository.InvoiceRepository,
	txRepo *repository.BankTransactionRepository,
	vendorRepo *repository.VendorRepository,
) *ReconciliationHandler {
	return &ReconciliationHandler{
		reconService: reconService,
		explService:  explService,
		invoiceRepo:  invoiceRepo,
		txRepo:       txRepo,
		vendorRepo:   vendorRepo,
	}
}

// Reconcile runs a reconciliation pass and returns all current proposed
// matches for the tenant.
func (h *ReconciliationHandler) Reconcile(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	minScore := decimal.NewFromInt(50)
	if raw := c.Query("min_score"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid min_score"})
			return
		}
		minScore = parsed
	}

	matches, err := h.reconService.Reconcile(c.Request.Context(), tenant, minScore)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches, "count": len(matches)})
}

// ListCandidates returns proposed matches without running reconciliation.
func (h *ReconciliationHandler) ListCandidates(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var invoiceID, transactionID *uuid.UUID
	if raw := c.Query("invoice_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice ID"})
			return
		}
		invoiceID = &id
	}
	if raw := c.Query("transaction_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction ID"})
			return
		}
		transactionID = &id
	}

	matches, err := h.reconService.ListCandidates(c.Request.Context(), tenant, invoiceID, transactionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches, "count": len(matches)})
}

// Explain scores one (invoice, transaction) pair on the fly and returns a
// natural-language explanation of the result.
func (h *ReconciliationHandler) Explain(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	invoiceID, err := uuid.Parse(c.Query("invoice_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice ID"})
		return
	}
	transactionID, err := uuid.Parse(c.Query("transaction_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction ID"})
		return
	}

	ctx := c.Request.Context()
	invoice, err := h.invoiceRepo.GetByID(ctx, tenant, invoiceID)
	if err != nil {
		respondError(c, err)
		return
	}
	tx, err := h.txRepo.GetByID(ctx, tenant, transactionID)
	if err != nil {
		respondError(c, err)
		return
	}

	var vendor *models.Vendor
	vendorName := ""
	if invoice.VendorID != nil {
		if v, err := h.vendorRepo.GetByID(ctx, tenant, *invoice.VendorID); err == nil {
			vendor = v
			vendorName = v.Name
		}
	}

	score := scoring.Score(invoice, tx, vendor)
	result := h.explService.ExplainMatch(ctx, invoice, tx, score, vendorName)
	c.JSON(http.StatusOK, result)
}
