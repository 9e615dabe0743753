// internal/storage/models/trade.go
package models

import "time"

// TradeRecord is one persisted simulated trade.
type TradeRecord struct {
	BaseModel
	TradeID      string    `gorm:"unique;not null;type:varchar(36)"`
	PositionID   string    `gorm:"index;not null;type:varchar(36)"`
	TokenAddress string    `gorm:"index;not null;type:varchar(64)"`
	TokenSymbol  string    `gorm:"type:varchar(32)"`
	TradeType    string    `gorm:"not null;type:varchar(16)"`
	AmountSOL    float64   `gorm:"type:decimal(20,9);not null"`
	Price        float64   `gorm:"type:decimal(30,18);not null"`
	PnLSOL       float64   `gorm:"type:decimal(20,9)"`
	ROIPercent   float64   `gorm:"type:decimal(12,4)"`
	Reason       string    `gorm:"type:text"`
	ExecutedAt   time.Time `gorm:"index;not null"`
}
