package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"invoice-reconciliation-backend/internal/repository"
	"invoice-reconciliation-backend/internal/services/invoices"
)

type InvoiceHandler struct {
	service *invoices.Service
}

func NewInvoiceHandler(service *invoices.Service) *InvoiceHandler {
	return &InvoiceHandler{service: service}
}

func (h *InvoiceHandler) Create(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var payload struct {
		VendorID      *uuid.UUID      `json:"vendor_id"`
		InvoiceNumber string          `json:"invoice_number"`
		Amount        decimal.Decimal `json:"amount"`
		Currency      string          `json:"currency"`
		InvoiceDate   *time.Time      `json:"invoice_date"`
		Description   string          `json:"description"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	invoice, err := h.service.Create(c.Request.Context(), tenant, invoices.CreateInput{
		VendorID:      payload.VendorID,
		InvoiceNumber: payload.InvoiceNumber,
		Amount:        payload.Amount,
		Currency:      payload.Currency,
		InvoiceDate:   payload.InvoiceDate,
		Description:   payload.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func (h *InvoiceHandler) List(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	filter := repository.InvoiceFilter{Status: c.Query("status")}
	if raw := c.Query("vendor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vendor ID"})
			return
		}
		filter.VendorID = &id
	}
	if raw := c.Query("min_amount"); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid min_amount"})
			return
		}
		filter.MinAmount = &amount
	}
	if raw := c.Query("max_amount"); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid max_amount"})
			return
		}
		filter.MaxAmount = &amount
	}
	if raw := c.Query("start_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date"})
			return
		}
		filter.StartDate = &t
	}
	if raw := c.Query("end_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date"})
			return
		}
		filter.EndDate = &t
	}

	limit, offset := pagination(c)
	result, err := h.service.List(c.Request.Context(), tenant, filter, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": result, "total": len(result)})
}

func (h *InvoiceHandler) Get(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice ID"})
		return
	}

	invoice, err := h.service.Get(c.Request.Context(), tenant, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *InvoiceHandler) Delete(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice ID"})
		return
	}

	if err := h.service.Delete(c.Request.Context(), tenant, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
