package reconciliation

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/apperrors"
	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/repository"
	"invoice-reconciliation-backend/internal/services/scoring"
)

// Service runs reconciliation for a tenant: score all open invoices against
// all unmatched bank transactions, resolve a one-to-one assignment, and
// persist it idempotently.
type Service struct {
	db          *gorm.DB
	tenantRepo  *repository.TenantRepository
	invoiceRepo *repository.InvoiceRepository
	txRepo      *repository.BankTransactionRepository
	vendorRepo  *repository.VendorRepository
	matchRepo   *repository.MatchRepository
	logger      *zap.Logger
}

func NewService(
	db *gorm.DB,
	tenantRepo *repository.TenantRepository,
	invoiceRepo *repository.InvoiceRepository,
	txRepo *repository.BankTransactionRepository,
	vendorRepo *repository.VendorRepository,
	matchRepo *repository.MatchRepository,
	logger *zap.Logger,
) *Service {
	return &Service{
		db:          db,
		tenantRepo:  tenantRepo,
		invoiceRepo: invoiceRepo,
		txRepo:      txRepo,
		vendorRepo:  vendorRepo,
		matchRepo:   matchRepo,
		logger:      logger,
	}
}

type assignment struct {
	invoice     *models.Invoice
	transaction *models.BankTransaction
	score       decimal.Decimal
}

// Reconcile scores every open invoice against every eligible transaction,
// greedily assigns transactions to invoices (highest score wins a contested
// transaction), and persists the result. Re-running with unchanged data
// changes nothing. Returns every match the run created or updated, plus the
// tenant's pre-existing proposed matches the run left untouched.
func (s *Service) Reconcile(ctx context.Context, tenantID uuid.UUID, minScore decimal.Decimal) ([]models.Match, error) {
	if minScore.IsNegative() || minScore.GreaterThan(decimal.NewFromInt(100)) {
		return nil, apperrors.Validation("min_score must be between 0 and 100")
	}
	if _, err := s.tenantRepo.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}

	// 1. Load open invoices and transactions without a confirmed match.
	invoices, err := s.invoiceRepo.GetOpenInvoices(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	transactions, err := s.txRepo.GetUnmatchedTransactions(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var touched []models.Match
	if len(invoices) > 0 && len(transactions) > 0 {
		// 2. Batch-load the invoices' vendors, tenant-scoped.
		vendors, err := s.loadVendors(ctx, tenantID, invoices)
		if err != nil {
			return nil, err
		}

		// 3. Resolve the assignment and persist it atomically.
		assignments := resolveAssignments(invoices, transactions, vendors, minScore)
		touched, err = s.persistAssignments(ctx, tenantID, assignments)
		if err != nil {
			return nil, err
		}

		s.logger.Info("reconciliation run complete",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("open_invoices", len(invoices)),
			zap.Int("eligible_transactions", len(transactions)),
			zap.Int("assignments", len(assignments)),
		)
	}

	proposed, err := s.matchRepo.ListCandidates(ctx, tenantID, repository.MatchFilter{
		Status: models.MatchStatusProposed,
	})
	if err != nil {
		return nil, err
	}

	// The proposed list already carries every proposed match, touched or
	// not; add the touched matches in other states (a rejected pair whose
	// score was raised stays rejected but was still part of this run).
	result := proposed
	for _, m := range touched {
		if m.Status != models.MatchStatusProposed {
			result = append(result, m)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Score.GreaterThan(result[j].Score)
	})
	return result, nil
}

// ListCandidates returns proposed matches ordered by score descending,
// optionally narrowed to one invoice or one transaction.
func (s *Service) ListCandidates(ctx context.Context, tenantID uuid.UUID, invoiceID, transactionID *uuid.UUID) ([]models.Match, error) {
	if _, err := s.tenantRepo.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.matchRepo.ListCandidates(ctx, tenantID, repository.MatchFilter{
		Status:            models.MatchStatusProposed,
		InvoiceID:         invoiceID,
		BankTransactionID: transactionID,
	})
}

func (s *Service) loadVendors(ctx context.Context, tenantID uuid.UUID, invoices []models.Invoice) (map[uuid.UUID]*models.Vendor, error) {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for i := range invoices {
		if invoices[i].VendorID != nil && !seen[*invoices[i].VendorID] {
			seen[*invoices[i].VendorID] = true
			ids = append(ids, *invoices[i].VendorID)
		}
	}
	return s.vendorRepo.GetByIDs(ctx, tenantID, ids)
}

// resolveAssignments turns the full score matrix into a conflict-free
// one-to-one assignment. Greedy, not globally optimal: each invoice
// nominates its single best transaction at or above minScore, then
// nominations are granted in score order so higher-confidence matches win
// contested transactions. Ties keep the first transaction encountered,
// which is stable because the inputs arrive in load order.
func resolveAssignments(
	invoices []models.Invoice,
	transactions []models.BankTransaction,
	vendors map[uuid.UUID]*models.Vendor,
	minScore decimal.Decimal,
) []assignment {
	var candidates []assignment

	for i := range invoices {
		invoice := &invoices[i]

		var vendor *models.Vendor
		if invoice.VendorID != nil {
			vendor = vendors[*invoice.VendorID]
		}

		var best *models.BankTransaction
		bestScore := decimal.Zero

		for t := range transactions {
			tx := &transactions[t]
			score := scoring.Score(invoice, tx, vendor)
			if score.GreaterThanOrEqual(minScore) && score.GreaterThan(bestScore) {
				best = tx
				bestScore = score
			}
		}

		if best != nil {
			candidates = append(candidates, assignment{
				invoice:     invoice,
				transaction: best,
				score:       bestScore,
			})
		}
	}

	// Stable sort keeps insertion order on equal scores.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score.GreaterThan(candidates[j].score)
	})

	claimed := make(map[uuid.UUID]bool)
	assignments := make([]assignment, 0, len(candidates))
	for _, c := range candidates {
		if claimed[c.transaction.ID] {
			continue
		}
		claimed[c.transaction.ID] = true
		assignments = append(assignments, c)
	}
	return assignments
}

// persistAssignments reconciles the assignment against stored matches in one
// transaction: new pairs become proposed matches, known pairs get their
// score raised when the new score is strictly higher, and status is never
// touched. Returns the matches the run created or updated. A cancelled
// context rolls the whole run back.
func (s *Service) persistAssignments(ctx context.Context, tenantID uuid.UUID, assignments []assignment) ([]models.Match, error) {
	var touched []models.Match

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matchRepo := s.matchRepo.WithTx(tx)
		touched = touched[:0]

		for _, a := range assignments {
			existing, err := matchRepo.GetByPair(ctx, tenantID, a.invoice.ID, a.transaction.ID)
			if err != nil {
				return err
			}

			if existing != nil {
				if a.score.GreaterThan(existing.Score) {
					existing.Score = a.score
					if err := matchRepo.Update(ctx, existing); err != nil {
						return err
					}
					touched = append(touched, *existing)
				}
				continue
			}

			match := &models.Match{
				ID:                uuid.New(),
				TenantID:          tenantID,
				InvoiceID:         a.invoice.ID,
				BankTransactionID: a.transaction.ID,
				Score:             a.score,
				Status:            models.MatchStatusProposed,
				CreatedAt:         time.Now(),
			}
			if err := matchRepo.Create(ctx, match); err != nil {
				// A concurrent run created the same pair first; take the
				// update path against their row instead of failing.
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					winner, readErr := matchRepo.GetByPair(ctx, tenantID, a.invoice.ID, a.transaction.ID)
					if readErr != nil {
						return readErr
					}
					if winner != nil && a.score.GreaterThan(winner.Score) {
						winner.Score = a.score
						if err := matchRepo.Update(ctx, winner); err != nil {
							return err
						}
						touched = append(touched, *winner)
					}
					continue
				}
				return err
			}
			touched = append(touched, *match)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return touched, nil
}
