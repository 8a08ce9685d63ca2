package matches

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
		repository.NewMatchRepository(db),
		repository.NewInvoiceRepository(db),
		zap.NewNop(),
	)
	return service, db
}

type fixture struct {
	tenantID uuid.UUID
	invoice  *models.Invoice
	tx       *models.BankTransaction
	match    *models.Match
}

func seedProposedMatch(t *testing.T, db *gorm.DB) fixture {
	t.Helper()

	tenant := &models.Tenant{ID: uuid.New(), Name: "Match Tenant", CreatedAt: time.Now()}
	require.NoError(t, db.Create(tenant).Error)

	invoice := &models.Invoice{
		ID:        uuid.New(),
		TenantID:  tenant.ID,
		Amount:    decimal.RequireFromString("75.00"),
		Currency:  "USD",
		Status:    models.InvoiceStatusOpen,
		CreatedAt: time.Now(),
	}
	require.NoError(t, db.Create(invoice).Error)

	tx := &models.BankTransaction{
		ID:        uuid.New(),
		TenantID:  tenant.ID,
		PostedAt:  time.Now(),
		Amount:    decimal.RequireFromString("75.00"),
		Currency:  "USD",
		CreatedAt: time.Now(),
	}
	require.NoError(t, db.Create(tx).Error)

	match := &models.Match{
		ID:                uuid.New(),
		TenantID:          tenant.ID,
		InvoiceID:         invoice.ID,
		BankTransactionID: tx.ID,
		Score:             decimal.RequireFromString("85.00"),
		Status:            models.MatchStatusProposed,
		CreatedAt:         time.Now(),
	}
	require.NoError(t, db.Create(match).Error)

	return fixture{tenantID: tenant.ID, invoice: invoice, tx: tx, match: match}
}

func TestConfirm(t *testing.T) {
	service, db := setupService(t)
	f := seedProposedMatch(t, db)
	ctx := context.Background()

	confirmed, err := service.Confirm(ctx, f.tenantID, f.match.ID, "reviewer@example.com")
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	assert.WithinDuration(t, time.Now(), *confirmed.ConfirmedAt, time.Minute)

	var invoice models.Invoice
	require.NoError(t, db.First(&invoice, "id = ?", f.invoice.ID).Error)
	assert.Equal(t, models.InvoiceStatusMatched, invoice.Status)

	var audit models.MatchAuditLog
	require.NoError(t, db.First(&audit, "match_id = ?", f.match.ID).Error)
	assert.Equal(t, "confirm", audit.Action)
	assert.Equal(t, "reviewer@example.com", audit.PerformedBy)
}

func TestConfirm_AlreadyConfirmed(t *testing.T) {
	service, db := setupService(t)
	f := seedProposedMatch(t, db)
	ctx := context.Background()

	_, err := service.Confirm(ctx, f.tenantID, f.match.ID, "reviewer")
	require.NoError(t, err)

	_, err = service.Confirm(ctx, f.tenantID, f.match.ID, "reviewer")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))

	// One audit row only; the second attempt rolled back.
	var audits int64
	require.NoError(t, db.Model(&models.MatchAuditLog{}).Count(&audits).Error)
	assert.Equal(t, int64(1), audits)
}

func TestConfirm_RejectedMatch(t *testing.T) {
	service, db := setupService(t)
	f := seedProposedMatch(t, db)
	require.NoError(t, db.Model(f.match).Update("status", models.MatchStatusRejected).Error)

	_, err := service.Confirm(context.Background(), f.tenantID, f.match.ID, "reviewer")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))

	var invoice models.Invoice
	require.NoError(t, db.First(&invoice, "id = ?", f.invoice.ID).Error)
	assert.Equal(t, models.InvoiceStatusOpen, invoice.Status)
}

func TestConfirm_UnknownMatch(t *testing.T) {
	service, db := setupService(t)
	f := seedProposedMatch(t, db)

	_, err := service.Confirm(context.Background(), f.tenantID, uuid.New(), "reviewer")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestConfirm_WrongTenant(t *testing.T) {
	service, db := setupService(t)
	f := seedProposedMatch(t, db)

	other := &models.Tenant{ID: uuid.New(), Name: "Other", CreatedAt: time.Now()}
	require.NoError(t, db.Create(other).Error)

	_, err := service.Confirm(context.Background(), other.ID, f.match.ID, "reviewer")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestReject(t *testing.T) {
	service, db := setupService(t)
	f := seedProposedMatch(t, db)

	rejected, err := service.Reject(context.Background(), f.tenantID, f.match.ID, "reviewer", "amount off by one cent")
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusRejected, rejected.Status)
	assert.Nil(t, rejected.ConfirmedAt)

	// Rejecting leaves the invoice open.
	var invoice models.Invoice
	require.NoError(t, db.First(&invoice, "id = ?", f.invoice.ID).Error)
	assert.Equal(t, models.InvoiceStatusOpen, invoice.Status)

	var audit models.MatchAuditLog
	require.NoError(t, db.First(&audit, "match_id = ?", f.match.ID).Error)
	assert.Equal(t, "reject", audit.Action)
	assert.Equal(t, "amount off by one cent", audit.Reason)
}

func TestReject_NotProposed(t *testing.T) {
	service, db := setupService(t)
	f := seedProposedMatch(t, db)

	_, err := service.Confirm(context.Background(), f.tenantID, f.match.ID, "reviewer")
	require.NoError(t, err)

	_, err = service.Reject(context.Background(), f.tenantID, f.match.ID, "reviewer", "")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))
}

func TestGet(t *testing.T) {
	service, db := setupService(t)
	f := seedProposedMatch(t, db)

	match, err := service.Get(context.Background(), f.tenantID, f.match.ID)
	require.NoError(t, err)
	assert.Equal(t, f.match.ID, match.ID)
	assert.True(t, match.Score.Equal(f.match.Score))
}
