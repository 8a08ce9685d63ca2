package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	InvoiceStatusOpen    = "open"
	InvoiceStatusMatched = "matched"
	InvoiceStatusPaid    = "paid"
)

type Invoice struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID      uuid.UUID       `gorm:"type:uuid;index:idx_invoice_tenant_status;not null" json:"tenant_id"`
	VendorID      *uuid.UUID      `gorm:"type:uuid;index" json:"vendor_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Amount        decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"amount"`
	Currency      string          `gorm:"size:3;not null;default:USD" json:"currency"`
	InvoiceDate   *time.Time      `json:"invoice_date"`
	Description   string          `json:"description"`
	Status        string          `gorm:"index:idx_invoice_tenant_status;not null;default:open" json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}
