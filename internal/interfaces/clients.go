package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/tally/internal/models"
)

// PriceSeriesProvider fetches closing-price history for a ticker.
// Missing data is reported as an error wrapping models.ErrProviderUnavailable,
// never as a panic or an ambiguous empty success.
type PriceSeriesProvider interface {
	FetchSeries(ctx context.Context, ticker string, period models.Period) (*models.PriceSeries, error)
}

// EODHDClient provides access to the EODHD end-of-day API
type EODHDClient interface {
	PriceSeriesProvider

	// GetEOD retrieves end-of-day price data
	GetEOD(ctx context.Context, ticker string, opts ...EODOption) (*models.EODResponse, error)
}

// EODOption configures EOD data requests
type EODOption func(*EODParams)

// EODParams holds EOD query parameters
type EODParams struct {
	From   time.Time
	To     time.Time
	Period string // d=daily, w=weekly, m=monthly
	Order  string // a=ascending, d=descending
}

// WithDateRange sets the date range for EOD query
func WithDateRange(from, to time.Time) EODOption {
	return func(p *EODParams) {
		p.From = from
		p.To = to
	}
}

// WithPeriod sets the bar period for EOD query
func WithPeriod(period string) EODOption {
	return func(p *EODParams) {
		p.Period = period
	}
}

// WithOrder sets the sort order for EOD query
func WithOrder(order string) EODOption {
	return func(p *EODParams) {
		p.Order = order
	}
}
