package interfaces

import (
	"context"

	"github.com/bobmcallan/tally/internal/models"
)

// PortfolioService is the boundary the presentation layer calls into.
type PortfolioService interface {
	// GetPositions returns a snapshot of all positions in insertion order
	GetPositions() []models.Position

	// AddPosition records a purchase, averaging the cost basis
	AddPosition(ctx context.Context, ticker string, quantity int64, price float64) (models.Position, error)

	// ReducePosition records a sale; removed is true when the position was closed
	ReducePosition(ctx context.Context, ticker string, quantity int64) (position models.Position, removed bool, err error)

	// RemovePosition deletes a position outright
	RemovePosition(ctx context.Context, ticker string) error

	// BuildReport fetches series for every position and derives the report
	BuildReport(ctx context.Context, period models.Period) (*models.PortfolioReport, error)

	// Quote fetches the series of a single ticker, held or not
	Quote(ctx context.Context, ticker string, period models.Period) (*models.PriceSeries, error)
}
