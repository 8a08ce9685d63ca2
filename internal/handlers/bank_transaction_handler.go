package handlers

import (
	"encoding/csv"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"invoice-reconciliation-backend/internal/repository"
	"invoice-reconciliation-backend/internal/services/importer"
)

// IdempotencyKeyHeader carries the caller-supplied key for bulk imports.
const IdempotencyKeyHeader = "X-Idempotency-Key"

type BankTransactionHandler struct {
	importService *importer.Service
	txRepo        *repository.BankTransactionRepository
	logger        *zap.Logger
}

func NewBankTransactionHandler(importService *importer.Service, txRepo *repository.BankTransactionRepository, logger *zap.Logger) *BankTransactionHandler {
	return &BankTransactionHandler{importService: importService, txRepo: txRepo, logger: logger}
}

func (h *BankTransactionHandler) Import(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var payload struct {
		Transactions []importer.TransactionInput `json:"transactions" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	result, err := h.importService.ImportTransactions(
		c.Request.Context(), tenant, payload.Transactions, c.GetHeader(IdempotencyKeyHeader))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ImportCSV accepts a multipart CSV upload with the columns
// external_id,posted_at,amount,currency,description and feeds it through the
// same guarded import path as the JSON endpoint.
func (h *BankTransactionHandler) ImportCSV(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	defer file.Close()

	h.logger.Debug("received transaction CSV",
		zap.String("filename", header.Filename),
		zap.Int64("size", header.Size),
	)

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	// Skip header row
	if _, err := reader.Read(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read CSV header"})
		return
	}

	var records []importer.TransactionInput
	rowNum := 1
	for {
		row, err := reader.Read()
		rowNum++
		if err == io.EOF {
			break
		}
		if err != nil {
			h.logger.Warn("skipping unreadable CSV row", zap.Int("row", rowNum), zap.Error(err))
			continue
		}
		if len(row) < 3 {
			h.logger.Warn("skipping CSV row with insufficient columns", zap.Int("row", rowNum))
			continue
		}

		postedAt, err := time.Parse(time.RFC3339, strings.TrimSpace(row[1]))
		if err != nil {
			h.logger.Warn("skipping CSV row with invalid posted_at", zap.Int("row", rowNum))
			continue
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(row[2]))
		if err != nil {
			h.logger.Warn("skipping CSV row with invalid amount", zap.Int("row", rowNum))
			continue
		}

		in := importer.TransactionInput{PostedAt: postedAt, Amount: amount}
		if externalID := strings.TrimSpace(row[0]); externalID != "" {
			in.ExternalID = &externalID
		}
		if len(row) > 3 {
			in.Currency = strings.TrimSpace(row[3])
		}
		if len(row) > 4 {
			in.Description = strings.TrimSpace(row[4])
		}
		records = append(records, in)
	}

	if len(records) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no valid rows in CSV"})
		return
	}

	result, err := h.importService.ImportTransactions(
		c.Request.Context(), tenant, records, c.GetHeader(IdempotencyKeyHeader))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *BankTransactionHandler) List(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	filter := repository.BankTransactionFilter{Currency: c.Query("currency")}
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
	result, err := h.txRepo.List(c.Request.Context(), tenant, filter, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": result, "total": len(result)})
}

func (h *BankTransactionHandler) Delete(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction ID"})
		return
	}

	if err := h.txRepo.Delete(c.Request.Context(), tenant, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
