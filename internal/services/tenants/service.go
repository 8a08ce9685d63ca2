package tenants

import (
	"context"
	"time"

	"github.com/google/uuid"

	"invoice-reconciliation-backend/internal/apperrors"
	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/repository"
)

type Service struct {
	tenantRepo *repository.TenantRepository
	vendorRepo *repository.VendorRepository
}

func NewService(tenantRepo *repository.TenantRepository, vendorRepo *repository.VendorRepository) *Service {
	return &Service{tenantRepo: tenantRepo, vendorRepo: vendorRepo}
}

func (s *Service) Create(ctx context.Context, name string) (*models.Tenant, error) {
	if name == "" {
		return nil, apperrors.Validation("tenant name must not be empty")
	}
	tenant := &models.Tenant{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := s.tenantRepo.Create(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return s.tenantRepo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]models.Tenant, error) {
	return s.tenantRepo.List(ctx, limit, offset)
}

// CreateVendor registers a vendor under a tenant.
func (s *Service) CreateVendor(ctx context.Context, tenantID uuid.UUID, name string) (*models.Vendor, error) {
	if _, err := s.tenantRepo.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, apperrors.Validation("vendor name must not be empty")
	}
	vendor := &models.Vendor{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := s.vendorRepo.Create(ctx, vendor); err != nil {
		return nil, err
	}
	return vendor, nil
}
