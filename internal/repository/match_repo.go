package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/apperrors"
	"invoice-reconciliation-backend/internal/models"
)

// MatchFilter holds optional filter criteria for match listings.
type MatchFilter struct {
	Status            string
	InvoiceID         *uuid.UUID
	BankTransactionID *uuid.UUID
}

type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(db *gorm.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *MatchRepository) WithTx(tx *gorm.DB) *MatchRepository {
	return &MatchRepository{db: tx}
}

func (r *MatchRepository) Create(ctx context.Context, match *models.Match) error {
	return r.db.WithContext(ctx).Create(match).Error
}

func (r *MatchRepository) Update(ctx context.Context, match *models.Match) error {
	return r.db.WithContext(ctx).Save(match).Error
}

func (r *MatchRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Match, error) {
	var match models.Match
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&match).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("match %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// GetByPair returns the match for a (tenant, invoice, transaction) pair, or
// nil when none exists. The unique index guarantees at most one row.
func (r *MatchRepository) GetByPair(ctx context.Context, tenantID, invoiceID, transactionID uuid.UUID) (*models.Match, error) {
	var match models.Match
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ? AND bank_transaction_id = ?",
			tenantID, invoiceID, transactionID).
		First(&match).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// ListCandidates returns proposed matches ordered by score descending,
// optionally narrowed to one invoice or one transaction.
func (r *MatchRepository) ListCandidates(ctx context.Context, tenantID uuid.UUID, filter MatchFilter) ([]models.Match, error) {
	var matches []models.Match

	query := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("score DESC, created_at ASC")

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.InvoiceID != nil {
		query = query.Where("invoice_id = ?", *filter.InvoiceID)
	}
	if filter.BankTransactionID != nil {
		query = query.Where("bank_transaction_id = ?", *filter.BankTransactionID)
	}

	err := query.Find(&matches).Error
	return matches, err
}
