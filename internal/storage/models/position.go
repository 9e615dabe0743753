// internal/storage/models/position.go
package models

import "time"

// PositionRecord is one persisted closed position.
type PositionRecord struct {
	BaseModel
	PositionID   string        `gorm:"unique;not null;type:varchar(36)"`
	TokenAddress string        `gorm:"index;not null;type:varchar(64)"`
	TokenSymbol  string        `gorm:"type:varchar(32)"`
	Strategy     string        `gorm:"not null;type:varchar(32)"`
	EntryPrice   float64       `gorm:"type:decimal(30,18);not null"`
	ExitPrice    float64       `gorm:"type:decimal(30,18)"`
	ROIPercent   float64       `gorm:"type:decimal(12,4)"`
	ExitValueSOL float64       `gorm:"type:decimal(20,9)"`
	HoldTime     time.Duration `gorm:"type:bigint"`
	ExitReason   string        `gorm:"type:text"`
	OpenedAt     time.Time     `gorm:"index"`
	ClosedAt     time.Time     `gorm:"index"`
}
