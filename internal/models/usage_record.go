package models

import (
	"time"

	"github.com/google/uuid"
)

// One row per API key per UTC day. Created lazily on the first admitted
// request of the day; the count only ever moves through the atomic
// increment in the usage repository.
type UsageRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	APIKeyID     uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_usage_key_day;not null" json:"api_key_id"`
	Day          string    `gorm:"uniqueIndex:idx_usage_key_day;not null" json:"day"` // "2006-01-02" in UTC
	RequestCount int64     `gorm:"not null;default:0" json:"request_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (UsageRecord) TableName() string {
	return "usage_records"
}
