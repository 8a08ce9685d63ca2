package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// IdempotencyRecord caches the outcome of an effectful request keyed by a
// caller-supplied idempotency key, unique per tenant.
type IdempotencyRecord struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID     uuid.UUID      `gorm:"type:uuid;uniqueIndex:uq_idem_tenant_key;not null" json:"tenant_id"`
	Key          string         `gorm:"uniqueIndex:uq_idem_tenant_key;size:255;not null" json:"key"`
	Endpoint     string         `gorm:"size:255;not null" json:"endpoint"`
	RequestHash  string         `gorm:"size:64;not null" json:"request_hash"`
	ResponseData datatypes.JSON `json:"response_data"`
	CreatedAt    time.Time      `json:"created_at"`
}
