package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/apperrors"
	"invoice-reconciliation-backend/internal/models"
)

type IdempotencyRepository struct {
	db *gorm.DB
}

func NewIdempotencyRepository(db *gorm.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *IdempotencyRepository) WithTx(tx *gorm.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: tx}
}

func (r *IdempotencyRepository) GetByKey(ctx context.Context, tenantID uuid.UUID, key string) (*models.IdempotencyRecord, error) {
	var record models.IdempotencyRecord
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND key = ?", tenantID, key).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// CreateOrGet inserts a new idempotency record, or returns the existing one
// for (tenant, key). The second return value reports whether the record was
// created by this call. A key reused with a different request hash is a
// conflict. A losing concurrent insert is retried once as a read.
func (r *IdempotencyRepository) CreateOrGet(ctx context.Context, record *models.IdempotencyRecord) (*models.IdempotencyRecord, bool, error) {
	existing, err := r.GetByKey(ctx, record.TenantID, record.Key)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if existing.RequestHash != record.RequestHash {
			return nil, false, apperrors.Conflict(
				"idempotency key %q already used with a different request payload", record.Key)
		}
		return existing, false, nil
	}

	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the race to a concurrent writer; their row is now truth.
			winner, readErr := r.GetByKey(ctx, record.TenantID, record.Key)
			if readErr != nil {
				return nil, false, readErr
			}
			if winner == nil {
				return nil, false, err
			}
			if winner.RequestHash != record.RequestHash {
				return nil, false, apperrors.Conflict(
					"idempotency key %q already used with a different request payload", record.Key)
			}
			return winner, false, nil
		}
		return nil, false, err
	}
	return record, true, nil
}

// AttachResponse stores the serialized response on a record after the
// underlying operation has completed.
func (r *IdempotencyRepository) AttachResponse(ctx context.Context, record *models.IdempotencyRecord, response []byte) error {
	return r.db.WithContext(ctx).
		Model(record).
		Update("response_data", response).Error
}
