package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/apperrors"
	"invoice-reconciliation-backend/internal/models"
)

type VendorRepository struct {
	db *gorm.DB
}

func NewVendorRepository(db *gorm.DB) *VendorRepository {
	return &VendorRepository{db: db}
}

func (r *VendorRepository) Create(ctx context.Context, vendor *models.Vendor) error {
	return r.db.WithContext(ctx).Create(vendor).Error
}

// GetByID is always filtered by tenant as well as id so a dangling vendor
// reference on an invoice can never leak another tenant's vendor.
func (r *VendorRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&vendor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("vendor %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

// GetByIDs batch-loads vendors for a set of ids, tenant-scoped. Missing ids
// are simply absent from the result map.
func (r *VendorRepository) GetByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*models.Vendor, error) {
	result := make(map[uuid.UUID]*models.Vendor, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var vendors []models.Vendor
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&vendors).Error
	if err != nil {
		return nil, err
	}

	for i := range vendors {
		result[vendors[i].ID] = &vendors[i]
	}
	return result, nil
}
