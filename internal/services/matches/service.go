package matches

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/apperrors"
	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/repository"
)

// Service advances proposed matches to confirmed or rejected. The engine
// never touches a match's status after these transitions.
type Service struct {
	db          *gorm.DB
	tenantRepo  *repository.TenantRepository
	matchRepo   *repository.MatchRepository
	invoiceRepo *repository.InvoiceRepository
	logger      *zap.Logger
}

func NewService(
	db *gorm.DB,
	tenantRepo *repository.TenantRepository,
	matchRepo *repository.MatchRepository,
	invoiceRepo *repository.InvoiceRepository,
	logger *zap.Logger,
) *Service {
	return &Service{
		db:          db,
		tenantRepo:  tenantRepo,
		matchRepo:   matchRepo,
		invoiceRepo: invoiceRepo,
		logger:      logger,
	}
}

// Confirm transitions a proposed match to confirmed, stamps ConfirmedAt and
// flips the linked invoice to matched, all in one transaction. Confirming a
// match that is not proposed is a conflict.
func (s *Service) Confirm(ctx context.Context, tenantID, matchID uuid.UUID, performedBy string) (*models.Match, error) {
	if _, err := s.tenantRepo.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}

	var confirmed *models.Match
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matchRepo := s.matchRepo.WithTx(tx)

		match, err := matchRepo.GetByID(ctx, tenantID, matchID)
		if err != nil {
			return err
		}
		if match.Status != models.MatchStatusProposed {
			return apperrors.Conflict("match %s is already %s", matchID, match.Status)
		}

		now := time.Now()
		match.Status = models.MatchStatusConfirmed
		match.ConfirmedAt = &now
		if err := matchRepo.Update(ctx, match); err != nil {
			return err
		}

		if err := s.invoiceRepo.WithTx(tx).UpdateStatus(ctx, tenantID, match.InvoiceID, models.InvoiceStatusMatched); err != nil {
			return err
		}

		if err := s.writeAudit(ctx, tx, match, "confirm", performedBy, ""); err != nil {
			return err
		}

		confirmed = match
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("match confirmed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("match_id", matchID.String()),
	)
	return confirmed, nil
}

// Reject transitions a proposed match to rejected. The transaction stays
// eligible for future reconciliation runs.
func (s *Service) Reject(ctx context.Context, tenantID, matchID uuid.UUID, performedBy, reason string) (*models.Match, error) {
	if _, err := s.tenantRepo.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}

	var rejected *models.Match
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matchRepo := s.matchRepo.WithTx(tx)

		match, err := matchRepo.GetByID(ctx, tenantID, matchID)
		if err != nil {
			return err
		}
		if match.Status != models.MatchStatusProposed {
			return apperrors.Conflict("match %s is already %s", matchID, match.Status)
		}

		match.Status = models.MatchStatusRejected
		if err := matchRepo.Update(ctx, match); err != nil {
			return err
		}

		if err := s.writeAudit(ctx, tx, match, "reject", performedBy, reason); err != nil {
			return err
		}

		rejected = match
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

// Get returns a match by id, tenant-scoped.
func (s *Service) Get(ctx context.Context, tenantID, matchID uuid.UUID) (*models.Match, error) {
	return s.matchRepo.GetByID(ctx, tenantID, matchID)
}

func (s *Service) writeAudit(ctx context.Context, tx *gorm.DB, match *models.Match, action, performedBy, reason string) error {
	return tx.WithContext(ctx).Create(&models.MatchAuditLog{
		ID:          uuid.New(),
		TenantID:    match.TenantID,
		MatchID:     match.ID,
		Action:      action,
		PerformedBy: performedBy,
		Reason:      reason,
		CreatedAt:   time.Now(),
	}).Error
}
