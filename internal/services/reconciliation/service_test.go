package reconciliation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/apperrors"
	"invoice-reconciliation-backend/internal/database"
	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/repository"
)

func setupService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	service := NewService(
		db,
		repository.NewTenantRepository(db),
		repository.NewInvoiceRepository(db),
		repository.NewBankTransactionRepository(db),
		repository.NewVendorRepository(db),
		repository.NewMatchRepository(db),
		zap.NewNop(),
	)
	return service, db
}

func seedTenant(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()
	tenant := &models.Tenant{ID: uuid.New(), Name: "Test Tenant", CreatedAt: time.Now()}
	require.NoError(t, db.Create(tenant).Error)
	return tenant.ID
}

func seedInvoice(t *testing.T, db *gorm.DB, tenantID uuid.UUID, amount string, invoiceDate time.Time, description string) *models.Invoice {
	t.Helper()
	invoice := &models.Invoice{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Amount:      decimal.RequireFromString(amount),
		Currency:    "USD",
		InvoiceDate: &invoiceDate,
		Description: description,
		Status:      models.InvoiceStatusOpen,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, db.Create(invoice).Error)
	return invoice
}

func seedTransaction(t *testing.T, db *gorm.DB, tenantID uuid.UUID, amount string, postedAt time.Time, description string) *models.BankTransaction {
	t.Helper()
	tx := &models.BankTransaction{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Amount:      decimal.RequireFromString(amount),
		Currency:    "USD",
		PostedAt:    postedAt,
		Description: description,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, db.Create(tx).Error)
	return tx
}

func day(yearDay int) time.Time {
	return time.Date(2024, 1, yearDay, 0, 0, 0, 0, time.UTC)
}

func TestReconcile_CreatesProposedMatches(t *testing.T) {
	service, db := setupService(t)
	tenantID := seedTenant(t, db)
	ctx := context.Background()

	invoice := seedInvoice(t, db, tenantID, "100.00", day(15), "office supplies")
	tx := seedTransaction(t, db, tenantID, "100.00", day(15), "office supplies payment")

	matches, err := service.Reconcile(ctx, tenantID, decimal.NewFromInt(50))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	assert.Equal(t, invoice.ID, matches[0].InvoiceID)
	assert.Equal(t, tx.ID, matches[0].BankTransactionID)
	assert.Equal(t, models.MatchStatusProposed, matches[0].Status)
	assert.True(t, matches[0].Score.GreaterThanOrEqual(decimal.NewFromInt(50)))
}

func TestReconcile_Idempotent(t *testing.T) {
	service, db := setupService(t)
	tenantID := seedTenant(t, db)
	ctx := context.Background()

	seedInvoice(t, db, tenantID, "100.00", day(15), "hosting")
	seedInvoice(t, db, tenantID, "250.00", day(20), "consulting")
	seedTransaction(t, db, tenantID, "100.00", day(15), "hosting fee")
	seedTransaction(t, db, tenantID, "250.00", day(21), "consulting invoice")

	first, err := service.Reconcile(ctx, tenantID, decimal.NewFromInt(50))
	require.NoError(t, err)
	second, err := service.Reconcile(ctx, tenantID, decimal.NewFromInt(50))
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))

	var count int64
	require.NoError(t, db.Model(&models.Match{}).Count(&count).Error)
	assert.Equal(t, int64(len(first)), count)

	scores := make(map[uuid.UUID]string)
	for _, m := range first {
		scores[m.ID] = m.Score.String()
	}
	for _, m := range second {
		assert.Equal(t, scores[m.ID], m.Score.String(), "score changed on re-run")
	}
}

func TestReconcile_OneToOne(t *testing.T) {
	service, db := setupService(t)
	tenantID := seedTenant(t, db)
	ctx := context.Background()

	// Three invoices competing for two plausible transactions.
	for _, amount := range []string{"100.00", "100.00", "100.00"} {
		seedInvoice(t, db, tenantID, amount, day(15), "recurring payment")
	}
	seedTransaction(t, db, tenantID, "100.00", day(15), "recurring payment")
	seedTransaction(t, db, tenantID, "100.00", day(16), "recurring payment")

	matches, err := service.Reconcile(ctx, tenantID, decimal.NewFromInt(50))
	require.NoError(t, err)

	seenInvoices := make(map[uuid.UUID]bool)
	seenTransactions := make(map[uuid.UUID]bool)
	for _, m := range matches {
		assert.False(t, seenInvoices[m.InvoiceID], "invoice assigned twice")
		assert.False(t, seenTransactions[m.BankTransactionID], "transaction assigned twice")
		seenInvoices[m.InvoiceID] = true
		seenTransactions[m.BankTransactionID] = true
	}
	assert.LessOrEqual(t, len(matches), 2)
}

func TestReconcile_RespectsMinScore(t *testing.T) {
	service, db := setupService(t)
	tenantID := seedTenant(t, db)
	ctx := context.Background()

	// Amounts far apart, different everything: scores stay low.
	seedInvoice(t, db, tenantID, "5000.00", day(1), "")
	seedTransaction(t, db, tenantID, "3.50", day(28), "")

	matches, err := service.Reconcile(ctx, tenantID, decimal.NewFromInt(90))
	require.NoError(t, err)
	assert.Empty(t, matches)

	var count int64
	require.NoError(t, db.Model(&models.Match{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestReconcile_HigherScoreWinsContestedTransaction(t *testing.T) {
	service, db := setupService(t)
	tenantID := seedTenant(t, db)
	ctx := context.Background()

	// Both invoices want the same transaction; the exact-amount one wins.
	exact := seedInvoice(t, db, tenantID, "100.00", day(15), "")
	seedInvoice(t, db, tenantID, "104.00", day(15), "")
	tx := seedTransaction(t, db, tenantID, "100.00", day(15), "")

	matches, err := service.Reconcile(ctx, tenantID, decimal.NewFromInt(50))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, exact.ID, matches[0].InvoiceID)
	assert.Equal(t, tx.ID, matches[0].BankTransactionID)
}

func TestReconcile_EmptySetsProduceNoMatches(t *testing.T) {
	service, db := setupService(t)
	tenantID := seedTenant(t, db)
	ctx := context.Background()

	t.Run("no invoices, no transactions", func(t *testing.T) {
		matches, err := service.Reconcile(ctx, tenantID, decimal.NewFromInt(50))
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("invoices but no transactions", func(t *testing.T) {
		seedInvoice(t, db, tenantID, "10.00", day(5), "")
		matches, err := service.Reconcile(ctx, tenantID, decimal.NewFromInt(50))
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}

func TestReconcile_ConfirmedTransactionNotReused(t *testing.T) {
	service, db := setupService(t)
	tenantID := seedTenant(t, db)
	ctx := context.Background()

	matched := seedInvoice(t, db, tenantID, "100.00", day(15), "")
	tx := seedTransaction(t, db, tenantID, "100.00", day(15), "")

	confirmedAt := time.Now()
	require.NoError(t, db.Create(&models.Match{
		ID:                uuid.New(),
		TenantID:          tenantID,
		InvoiceID:         matched.ID,
		BankTransactionID: tx.ID,
		Score:             decimal.NewFromInt(90),
		Status:            models.MatchStatusConfirmed,
		CreatedAt:         time.Now(),
		ConfirmedAt:       &confirmedAt,
	}).Error)

	// A new open invoice would score highly against tx, but tx already has
	// a confirmed match and is no longer eligible.
	seedInvoice(t, db, tenantID, "100.00", day(15), "")

	matches, err := service.Reconcile(ctx, tenantID, decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestReconcile_RejectedTransactionStaysEligible(t *testing.T) {
	service, db := setupService(t)
	tenantID := seedTenant(t, db)
	ctx := context.Background()

	invoice := seedInvoice(t, db, tenantID, "100.00", day(15), "")
	tx := seedTransaction(t, db, tenantID, "100.00", day(15), "")

	require.NoError(t, db.Create(&models.Match{
		ID:                uuid.New(),
		TenantID:          tenantID,
		InvoiceID:         invoice.ID,
		BankTransactionID: tx.ID,
		Score:             decimal.NewFromInt(70),
		Status:            models.MatchStatusRejected,
		CreatedAt:         time.Now(),
	}).Error)

	matches, err := service.Reconcile(ctx, tenantID, decimal.NewFromInt(50))
	require.NoError(t, err)

	// The rejected pair is the invoice's only candidate: the run raises its
	// score (70 -> 80), reports it as touched, and never re-proposes it.
	require.Len(t, matches, 1)
	assert.Equal(t, models.MatchStatusRejected, matches[0].Status)
	assert.True(t, matches[0].Score.Equal(decimal.NewFromInt(80)), "got %s", matches[0].Score)

	var match models.Match
	require.NoError(t, db.First(&match, "invoice_id = ?", invoice.ID).Error)
	assert.Equal(t, models.MatchStatusRejected, match.Status)
}

func TestReconcile_UntouchedRejectedMatchNotReturned(t *testing.T) {
	service, db := setupService(t)
	tenantID := seedTenant(t, db)
	ctx := context.Background()

	invoice := seedInvoice(t, db, tenantID, "100.00", day(15), "")
	tx := seedTransaction(t, db, tenantID, "100.00", day(15), "")

	// Stored score already exceeds anything the run can compute, so the
	// rejected pair is left alone and stays out of the result.
	require.NoError(t, db.Create(&models.Match{
		ID:                uuid.New(),
		TenantID:          tenantID,
		InvoiceID:         invoice.ID,
		BankTransactionID: tx.ID,
		Score:             decimal.NewFromInt(95),
		Status:            models.MatchStatusRejected,
		CreatedAt:         time.Now(),
	}).Error)

	matches, err := service.Reconcile(ctx, tenantID, decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestReconcile_ConcurrentWriterWinsPairCreation(t *testing.T) {
	service, db := setupService(t)
	tenantID := seedTenant(t, db)
	ctx := context.Background()

	invoice := seedInvoice(t, db, tenantID, "100.00", day(15), "")
	tx := seedTransaction(t, db, tenantID, "100.00", day(15), "")

	// Slip a rival match row for the same pair in just before the run's own
	// insert, the way a second concurrent run would.
	rivalID := uuid.New()
	planted := false
	err := db.Callback().Create().Before("gorm:create").Register("rival_match_writer", func(op *gorm.DB) {
		if _, ok := op.Statement.Dest.(*models.Match); !ok {
			return
		}
		if planted {
			return
		}
		planted = true
		op.Session(&gorm.Session{NewDB: true}).Create(&models.Match{
			ID:                rivalID,
			TenantID:          tenantID,
			InvoiceID:         invoice.ID,
			BankTransactionID: tx.ID,
			Score:             decimal.NewFromInt(10),
			Status:            models.MatchStatusProposed,
			CreatedAt:         time.Now(),
		})
	})
	require.NoError(t, err)

	matches, err := service.Reconcile(ctx, tenantID, decimal.NewFromInt(50))
	require.NoError(t, err)
	require.True(t, planted)

	// The run lost the insert race, re-read the rival's row and raised its
	// score instead of failing or writing a second row for the pair.
	var count int64
	require.NoError(t, db.Model(&models.Match{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	require.Len(t, matches, 1)
	assert.Equal(t, rivalID, matches[0].ID)
	assert.Equal(t, models.MatchStatusProposed, matches[0].Status)
	assert.True(t, matches[0].Score.Equal(decimal.NewFromInt(80)), "got %s", matches[0].Score)
}

func TestReconcile_UpdatesScoreOnlyWhenStrictlyHigher(t *testing.T) {
	service, db := setupService(t)
	tenantID := seedTenant(t, db)
	ctx := context.Background()

	invoice := seedInvoice(t, db, tenantID, "100.00", day(15), "")
	tx := seedTransaction(t, db, tenantID, "100.00", day(15), "")

	stored := &models.Match{
		ID:                uuid.New(),
		TenantID:          tenantID,
		InvoiceID:         invoice.ID,
		BankTransactionID: tx.ID,
		Score:             decimal.NewFromInt(99),
		Status:            models.MatchStatusProposed,
		CreatedAt:         time.Now(),
	}
	require.NoError(t, db.Create(stored).Error)

	_, err := service.Reconcile(ctx, tenantID, decimal.NewFromInt(50))
	require.NoError(t, err)

	var after models.Match
	require.NoError(t, db.First(&after, "id = ?", stored.ID).Error)
	// The computed score (80: amount + date + currency) is below the stored
	// 99, so the stored score stands.
	assert.True(t, after.Score.Equal(decimal.NewFromInt(99)), "got %s", after.Score)
}

func TestReconcile_TenantIsolation(t *testing.T) {
	service, db := setupService(t)
	tenantA := seedTenant(t, db)
	tenantB := seedTenant(t, db)
	ctx := context.Background()

	seedInvoice(t, db, tenantA, "100.00", day(15), "")
	seedTransaction(t, db, tenantB, "100.00", day(15), "")

	matchesA, err := service.Reconcile(ctx, tenantA, decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.Empty(t, matchesA, "tenant A matched against tenant B's transaction")

	matchesB, err := service.Reconcile(ctx, tenantB, decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.Empty(t, matchesB)
}

func TestReconcile_VendorBoostsScore(t *testing.T) {
	service, db := setupService(t)
	tenantID := seedTenant(t, db)
	ctx := context.Background()

	vendor := &models.Vendor{ID: uuid.New(), TenantID: tenantID, Name: "Globex", CreatedAt: time.Now()}
	require.NoError(t, db.Create(vendor).Error)

	invoice := seedInvoice(t, db, tenantID, "100.00", day(15), "")
	invoice.VendorID = &vendor.ID
	require.NoError(t, db.Save(invoice).Error)

	seedTransaction(t, db, tenantID, "100.00", day(15), "wire from GLOBEX")

	matches, err := service.Reconcile(ctx, tenantID, decimal.NewFromInt(50))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	// amount 40 + date 30 + vendor 15 + currency 10
	assert.True(t, matches[0].Score.Equal(decimal.NewFromInt(95)), "got %s", matches[0].Score)
}

func TestReconcile_DanglingVendorScoredAsAbsent(t *testing.T) {
	service, db := setupService(t)
	tenantID := seedTenant(t, db)
	ctx := context.Background()

	missing := uuid.New()
	invoice := seedInvoice(t, db, tenantID, "100.00", day(15), "")
	invoice.VendorID = &missing
	require.NoError(t, db.Save(invoice).Error)

	seedTransaction(t, db, tenantID, "100.00", day(15), "")

	matches, err := service.Reconcile(ctx, tenantID, decimal.NewFromInt(50))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	// No vendor contribution: amount 40 + date 30 + currency 10.
	assert.True(t, matches[0].Score.Equal(decimal.NewFromInt(80)), "got %s", matches[0].Score)
}

func TestReconcile_InvalidMinScore(t *testing.T) {
	service, db := setupService(t)
	tenantID := seedTenant(t, db)

	_, err := service.Reconcile(context.Background(), tenantID, decimal.NewFromInt(101))
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	_, err = service.Reconcile(context.Background(), tenantID, decimal.NewFromInt(-1))
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestReconcile_UnknownTenant(t *testing.T) {
	service, _ := setupService(t)
	_, err := service.Reconcile(context.Background(), uuid.New(), decimal.NewFromInt(50))
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestListCandidates_FiltersAndOrders(t *testing.T) {
	service, db := setupService(t)
	tenantID := seedTenant(t, db)
	ctx := context.Background()

	invoiceA := seedInvoice(t, db, tenantID, "100.00", day(15), "")
	invoiceB := seedInvoice(t, db, tenantID, "200.00", day(10), "")
	txA := seedTransaction(t, db, tenantID, "100.00", day(15), "")
	txB := seedTransaction(t, db, tenantID, "200.00", day(12), "")

	_, err := service.Reconcile(ctx, tenantID, decimal.NewFromInt(50))
	require.NoError(t, err)

	all, err := service.ListCandidates(ctx, tenantID, nil, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].Score.GreaterThanOrEqual(all[1].Score), "not ordered by score desc")

	byInvoice, err := service.ListCandidates(ctx, tenantID, &invoiceA.ID, nil)
	require.NoError(t, err)
	require.Len(t, byInvoice, 1)
	assert.Equal(t, txA.ID, byInvoice[0].BankTransactionID)

	byTx, err := service.ListCandidates(ctx, tenantID, nil, &txB.ID)
	require.NoError(t, err)
	require.Len(t, byTx, 1)
	assert.Equal(t, invoiceB.ID, byTx[0].InvoiceID)
}

func TestResolveAssignments_TieKeepsFirstTransaction(t *testing.T) {
	invoice := models.Invoice{ID: uuid.New(), Amount: decimal.RequireFromString("100.00"), Currency: "USD"}
	posted := day(15)
	first := models.BankTransaction{ID: uuid.New(), Amount: decimal.RequireFromString("100.00"), Currency: "USD", PostedAt: posted}
	second := models.BankTransaction{ID: uuid.New(), Amount: decimal.RequireFromString("100.00"), Currency: "USD", PostedAt: posted}

	assignments := resolveAssignments(
		[]models.Invoice{invoice},
		[]models.BankTransaction{first, second},
		nil,
		decimal.NewFromInt(10),
	)
	require.Len(t, assignments, 1)
	assert.Equal(t, first.ID, assignments[0].transaction.ID)
}
