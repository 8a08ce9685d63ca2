package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BankTransaction struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID    uuid.UUID       `gorm:"type:uuid;uniqueIndex:uq_bank_tx_tenant_external;index:idx_bank_tx_tenant_posted;not null" json:"tenant_id"`
	ExternalID  *string         `gorm:"uniqueIndex:uq_bank_tx_tenant_external" json:"external_id"`
	PostedAt    time.Time       `gorm:"index:idx_bank_tx_tenant_posted;not null" json:"posted_at"`
	Amount      decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"amount"`
	Currency    string          `gorm:"size:3;not null;default:USD" json:"currency"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}
