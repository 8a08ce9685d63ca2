package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/repository"
)

const importEndpoint = "/tenants/{tenant_id}/bank-transactions/import"

// TransactionInput is one bank transaction row in a bulk import request.
type TransactionInput struct {
	ExternalID  *string         `json:"external_id"`
	PostedAt    time.Time       `json:"posted_at" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
}

// ImportResult is the response payload of a bulk import. It is what gets
// cached on the idempotency record and replayed on key reuse.
type ImportResult struct {
	Count          int         `json:"count"`
	TransactionIDs []uuid.UUID `json:"transaction_ids"`
}

// Service ingests bank transactions in bulk, guarded by caller-supplied
// idempotency keys: at most one effect per (tenant, key, payload).
type Service struct {
	db         *gorm.DB
	tenantRepo *repository.TenantRepository
	txRepo     *repository.BankTransactionRepository
	idemRepo   *repository.IdempotencyRepository
	logger     *zap.Logger
}

func NewService(
	db *gorm.DB,
	tenantRepo *repository.TenantRepository,
	txRepo *repository.BankTransactionRepository,
	idemRepo *repository.IdempotencyRepository,
	logger *zap.Logger,
) *Service {
	return &Service{
		db:         db,
		tenantRepo: tenantRepo,
		txRepo:     txRepo,
		idemRepo:   idemRepo,
		logger:     logger,
	}
}

// ImportTransactions stores the given records for a tenant. Without a key
// the import always executes. With a key, a repeat call with the same
// payload replays the cached response without re-importing, and a repeat
// call with a different payload is a conflict.
func (s *Service) ImportTransactions(ctx context.Context, tenantID uuid.UUID, records []TransactionInput, idempotencyKey string) (*ImportResult, error) {
	if _, err := s.tenantRepo.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}

	if idempotencyKey == "" {
		var result *ImportResult
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var txErr error
			result, txErr = s.insertRecords(ctx, tx, tenantID, records)
			return txErr
		})
		return result, err
	}

	record := &models.IdempotencyRecord{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Key:         idempotencyKey,
		Endpoint:    importEndpoint,
		RequestHash: hashRequest(records),
		CreatedAt:   time.Now(),
	}

	record, isNew, err := s.idemRepo.CreateOrGet(ctx, record)
	if err != nil {
		return nil, err
	}

	if !isNew && len(record.ResponseData) > 0 {
		var cached ImportResult
		if err := json.Unmarshal(record.ResponseData, &cached); err != nil {
			return nil, err
		}
		s.logger.Info("replayed cached import response",
			zap.String("tenant_id", tenantID.String()),
			zap.String("idempotency_key", idempotencyKey),
		)
		return &cached, nil
	}

	// First use of the key (or the winner crashed before caching a
	// response): run the import and attach the response in the same
	// transaction.
	var result *ImportResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = s.insertRecords(ctx, tx, tenantID, records)
		if txErr != nil {
			return txErr
		}

		payload, txErr := json.Marshal(result)
		if txErr != nil {
			return txErr
		}
		return s.idemRepo.WithTx(tx).AttachResponse(ctx, record, payload)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("imported bank transactions",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("count", result.Count),
	)
	return result, nil
}

func (s *Service) insertRecords(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, records []TransactionInput) (*ImportResult, error) {
	txRepo := s.txRepo.WithTx(tx)

	ids := make([]uuid.UUID, 0, len(records))
	for _, in := range records {
		currency := in.Currency
		if currency == "" {
			currency = "USD"
		}

		transaction := &models.BankTransaction{
			ID:          uuid.New(),
			TenantID:    tenantID,
			ExternalID:  in.ExternalID,
			PostedAt:    in.PostedAt,
			Amount:      in.Amount,
			Currency:    currency,
			Description: in.Description,
			CreatedAt:   time.Now(),
		}
		if err := txRepo.Create(ctx, transaction); err != nil {
			return nil, err
		}
		ids = append(ids, transaction.ID)
	}

	return &ImportResult{Count: len(ids), TransactionIDs: ids}, nil
}

// hashRequest produces a stable sha256 over the canonical JSON form of the
// records. Struct marshalling fixes the field order, so equal payloads hash
// equal regardless of how the caller ordered their JSON keys.
func hashRequest(records []TransactionInput) string {
	payload, _ := json.Marshal(records)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
