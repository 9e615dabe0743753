// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/solsniper/simbot/internal/storage/models"
)

// Storage persists the simulation's trade and position history.
type Storage interface {
	SaveTrade(ctx context.Context, trade *models.TradeRecord) error
	ListTrades(ctx context.Context, tokenAddress string, limit, offset int) ([]*models.TradeRecord, error)

	SavePosition(ctx context.Context, position *models.PositionRecord) error
	GetPosition(ctx context.Context, positionID string) (*models.PositionRecord, error)

	RunMigrations() error
}
