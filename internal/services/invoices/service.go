package invoices

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"invoice-reconciliation-backend/internal/apperrors"
	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/repository"
)

// CreateInput carries the fields of a new invoice.
type CreateInput struct {
	VendorID      *uuid.UUID
	InvoiceNumber string
	Amount        decimal.Decimal
	Currency      string
	InvoiceDate   *time.Time
	Description   string
}

type Service struct {
	tenantRepo  *repository.TenantRepository
	vendorRepo  *repository.VendorRepository
	invoiceRepo *repository.InvoiceRepository
	logger      *zap.Logger
}

func NewService(
	tenantRepo *repository.TenantRepository,
	vendorRepo *repository.VendorRepository,
	invoiceRepo *repository.InvoiceRepository,
	logger *zap.Logger,
) *Service {
	return &Service{
		tenantRepo:  tenantRepo,
		vendorRepo:  vendorRepo,
		invoiceRepo: invoiceRepo,
		logger:      logger,
	}
}

func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, in CreateInput) (*models.Invoice, error) {
	if _, err := s.tenantRepo.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}
	if in.Amount.IsNegative() {
		return nil, apperrors.Validation("invoice amount must not be negative")
	}
	if in.VendorID != nil {
		// Reject vendor references that belong to another tenant.
		if _, err := s.vendorRepo.GetByID(ctx, tenantID, *in.VendorID); err != nil {
			return nil, err
		}
	}

	currency := in.Currency
	if currency == "" {
		currency = "USD"
	}

	invoice := &models.Invoice{
		ID:            uuid.New(),
		TenantID:      tenantID,
		VendorID:      in.VendorID,
		InvoiceNumber: in.InvoiceNumber,
		Amount:        in.Amount,
		Currency:      currency,
		InvoiceDate:   in.InvoiceDate,
		Description:   in.Description,
		Status:        models.InvoiceStatusOpen,
		CreatedAt:     time.Now(),
	}
	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *Service) Get(ctx context.Context, tenantID, invoiceID uuid.UUID) (*models.Invoice, error) {
	return s.invoiceRepo.GetByID(ctx, tenantID, invoiceID)
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID, filter repository.InvoiceFilter, limit, offset int) ([]models.Invoice, error) {
	if _, err := s.tenantRepo.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.invoiceRepo.List(ctx, tenantID, filter, limit, offset)
}

func (s *Service) Delete(ctx context.Context, tenantID, invoiceID uuid.UUID) error {
	return s.invoiceRepo.Delete(ctx, tenantID, invoiceID)
}
