package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/apperrors"
	"invoice-reconciliation-backend/internal/models"
)

// BankTransactionFilter holds optional filter criteria for transaction
// listings.
type BankTransactionFilter struct {
	Currency  string
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	StartDate *time.Time
	EndDate   *time.Time
}

type BankTransactionRepository struct {
	db *gorm.DB
}

func NewBankTransactionRepository(db *gorm.DB) *BankTransactionRepository {
	return &BankTransactionRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *BankTransactionRepository) WithTx(tx *gorm.DB) *BankTransactionRepository {
	return &BankTransactionRepository{db: tx}
}

func (r *BankTransactionRepository) Create(ctx context.Context, tx *models.BankTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *BankTransactionRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.BankTransaction, error) {
	var tx models.BankTransaction
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("bank transaction %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *BankTransactionRepository) List(ctx context.Context, tenantID uuid.UUID, filter BankTransactionFilter, limit, offset int) ([]models.BankTransaction, error) {
	var txs []models.BankTransaction

	query := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("posted_at ASC, id ASC").
		Limit(limit).
		Offset(offset)

	if filter.Currency != "" {
		query = query.Where("currency = ?", filter.Currency)
	}
	if filter.MinAmount != nil {
		query = query.Where("amount >= ?", *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		query = query.Where("amount <= ?", *filter.MaxAmount)
	}
	if filter.StartDate != nil {
		query = query.Where("posted_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("posted_at <= ?", *filter.EndDate)
	}

	err := query.Find(&txs).Error
	return txs, err
}

// GetUnmatchedTransactions returns transactions without a confirmed match.
// Transactions with only proposed or rejected matches stay eligible for
// reconciliation. Ordered by creation time then id for stable runs.
func (r *BankTransactionRepository) GetUnmatchedTransactions(ctx context.Context, tenantID uuid.UUID) ([]models.BankTransaction, error) {
	var txs []models.BankTransaction

	confirmed := r.db.
		Model(&models.Match{}).
		Select("bank_transaction_id").
		Where("tenant_id = ? AND status = ?", tenantID, models.MatchStatusConfirmed)

	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id NOT IN (?)", tenantID, confirmed).
		Order("created_at ASC, id ASC").
		Find(&txs).Error
	return txs, err
}

func (r *BankTransactionRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.BankTransaction{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("bank transaction %s not found", id)
	}
	return nil
}
