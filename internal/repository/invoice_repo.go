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

// InvoiceFilter holds optional filter criteria for invoice listings. Each
// present field is applied conditionally to the query.
type InvoiceFilter struct {
	Status    string
	VendorID  *uuid.UUID
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	StartDate *time.Time
	EndDate   *time.Time
}

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *InvoiceRepository) WithTx(tx *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: tx}
}

func (r *InvoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *InvoiceRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("invoice %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *InvoiceRepository) List(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter, limit, offset int) ([]models.Invoice, error) {
	var invoices []models.Invoice

	query := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Offset(offset)

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.VendorID != nil {
		query = query.Where("vendor_id = ?", *filter.VendorID)
	}
	if filter.MinAmount != nil {
		query = query.Where("amount >= ?", *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		query = query.Where("amount <= ?", *filter.MaxAmount)
	}
	if filter.StartDate != nil {
		query = query.Where("invoice_date >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("invoice_date <= ?", *filter.EndDate)
	}

	err := query.Find(&invoices).Error
	return invoices, err
}

// GetOpenInvoices returns all open invoices for a tenant, ordered by
// creation time then id so reconciliation runs see a stable order.
func (r *InvoiceRepository) GetOpenInvoices(ctx context.Context, tenantID uuid.UUID) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, models.InvoiceStatusOpen).
		Order("created_at ASC, id ASC").
		Find(&invoices).Error
	return invoices, err
}

func (r *InvoiceRepository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("invoice %s not found", id)
	}
	return nil
}

func (r *InvoiceRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.Invoice{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("invoice %s not found", id)
	}
	return nil
}
