package models

import (
	"time"

	"github.com/google/uuid"
)

type MatchAuditLog struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID    uuid.UUID `gorm:"type:uuid;index;not null" json:"tenant_id"`
	MatchID     uuid.UUID `gorm:"type:uuid;index;not null" json:"match_id"`
	Action      string    `gorm:"not null" json:"action"`
	PerformedBy string    `json:"performed_by"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}
