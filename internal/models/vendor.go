package models

import (
	"time"

	"github.com/google/uuid"
)

type Vendor struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID  uuid.UUID `gorm:"type:uuid;index;not null" json:"tenant_id"`
	Name      string    `gorm:"index:idx_vendor_tenant_name;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
