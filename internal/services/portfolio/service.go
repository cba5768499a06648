// Package portfolio provides the portfolio service the presentation layer calls
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bobmcallan/tally/internal/analytics"
	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/ledger"
	"github.com/bobmcallan/tally/internal/models"
)

// Service implements PortfolioService
type Service struct {
	ledger   *ledger.Ledger
	provider interfaces.PriceSeriesProvider
	analyzer *analytics.Analyzer
	logger   *common.Logger
	now      func() time.Time
}

var _ interfaces.PortfolioService = (*Service)(nil)

// NewService creates a new portfolio service
func NewService(
	ledger *ledger.Ledger,
	provider interfaces.PriceSeriesProvider,
	logger *common.Logger,
) *Service {
	return &Service{
		ledger:   ledger,
		provider: provider,
		analyzer: analytics.NewAnalyzer(),
		logger:   logger,
		now:      time.Now,
	}
}

// GetPositions returns a snapshot of the ledger
func (s *Service) GetPositions() []models.Position {
	return s.ledger.List()
}

// AddPosition records a purchase
func (s *Service) AddPosition(ctx context.Context, ticker string, quantity int64, price float64) (models.Position, error) {
	return s.ledger.Add(ctx, ticker, quantity, price)
}

// ReducePosition records a sale
func (s *Service) ReducePosition(ctx context.Context, ticker string, quantity int64) (models.Position, bool, error) {
	return s.ledger.Reduce(ctx, ticker, quantity)
}

// RemovePosition deletes a position
func (s *Service) RemovePosition(ctx context.Context, ticker string) error {
	return s.ledger.Remove(ctx, ticker)
}

// BuildReport fetches the series of every held ticker, then derives the report.
// An empty ledger yields the empty report without any fetch. A ticker the
// provider cannot serve is skipped, not fatal. Cancellation of ctx during
// the fetch stage returns ctx.Err().
func (s *Service) BuildReport(ctx context.Context, period models.Period) (*models.PortfolioReport, error) {
	positions := s.ledger.List()
	if len(positions) == 0 {
		s.logger.Debug().Str("period", period.String()).Msg("Empty ledger, skipping report fetch")
		return models.NewEmptyReport(period, s.now()), nil
	}

	start := time.Now()
	in := analytics.Input{
		Period:    period,
		Positions: positions,
		Series:    make(map[string]models.PriceSeries, len(positions)),
		Failures:  make(map[string]error),
	}

	for _, pos := range positions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		series, err := s.provider.FetchSeries(ctx, pos.Ticker, period)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if !errors.Is(err, models.ErrProviderUnavailable) {
				err = fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
			}
			s.logger.Warn().Err(err).Str("ticker", pos.Ticker).Msg("Price series unavailable, skipping")
			in.Failures[pos.Ticker] = err
			continue
		}
		if series.IsEmpty() {
			err := fmt.Errorf("%w: %s: empty price series", models.ErrProviderUnavailable, pos.Ticker)
			s.logger.Warn().Str("ticker", pos.Ticker).Msg("Empty price series, skipping")
			in.Failures[pos.Ticker] = err
			continue
		}
		in.Series[pos.Ticker] = *series
	}

	in.AsOf = s.now()
	report := s.analyzer.Analyze(in)

	s.logger.Info().
		Str("period", period.String()).
		Int("positions", len(positions)).
		Int("skipped", len(report.Skipped)).
		Float64("value", report.CurrentValue).
		Dur("elapsed", time.Since(start)).
		Msg("Report built")

	return report, nil
}

// Quote fetches the series of one ticker, held or not
func (s *Service) Quote(ctx context.Context, ticker string, period models.Period) (*models.PriceSeries, error) {
	ticker = models.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", models.ErrInvalidInput)
	}
	series, err := s.provider.FetchSeries(ctx, ticker, period)
	if err != nil {
		return nil, err
	}
	if series.IsEmpty() {
		return nil, fmt.Errorf("%w: %s: empty price series", models.ErrProviderUnavailable, ticker)
	}
	s.logger.Debug().Str("ticker", ticker).Int("points", len(series.Points)).Msg("Quote fetched")
	return series, nil
}
