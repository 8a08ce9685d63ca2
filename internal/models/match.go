package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MatchStatusProposed  = "proposed"
	MatchStatusConfirmed = "confirmed"
	MatchStatusRejected  = "rejected"
)

// Match links one invoice to one bank transaction with a 0-100 confidence
// score. At most one row may exist per (tenant, invoice, transaction) pair.
type Match struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID          uuid.UUID       `gorm:"type:uuid;uniqueIndex:uq_match_tenant_invoice_tx;index:idx_match_tenant_status;not null" json:"tenant_id"`
	InvoiceID         uuid.UUID       `gorm:"type:uuid;uniqueIndex:uq_match_tenant_invoice_tx;not null" json:"invoice_id"`
	BankTransactionID uuid.UUID       `gorm:"type:uuid;uniqueIndex:uq_match_tenant_invoice_tx;not null" json:"bank_transaction_id"`
	Score             decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"score"`
	Status            string          `gorm:"index:idx_match_tenant_status;not null;default:proposed" json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	ConfirmedAt       *time.Time      `json:"confirmed_at"`
}
