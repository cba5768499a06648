package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/tally/internal/models"
)

// positionRecord is the persisted shape of a position, keyed by ticker.
type positionRecord struct {
	Ticker       string `badgerhold:"key"`
	Quantity     int64
	AveragePrice float64
}

// LoadAll returns every stored position
func (s *Store) LoadAll(_ context.Context) ([]models.Position, error) {
	var records []positionRecord
	if err := s.db.Find(&records, nil); err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	out := make([]models.Position, len(records))
	for i, r := range records {
		out[i] = models.Position{Ticker: r.Ticker, Quantity: r.Quantity, AverageCost: r.AveragePrice}
	}
	return out, nil
}

// Upsert replaces the stored position for p.Ticker
func (s *Store) Upsert(_ context.Context, p models.Position) error {
	rec := positionRecord{Ticker: p.Ticker, Quantity: p.Quantity, AveragePrice: p.AverageCost}
	if err := s.db.Upsert(p.Ticker, rec); err != nil {
		return fmt.Errorf("failed to save position '%s': %w", p.Ticker, err)
	}
	s.logger.Debug().Str("ticker", p.Ticker).Int64("quantity", p.Quantity).Msg("Position saved")
	return nil
}

// Delete removes the stored position for ticker. Absent tickers are ignored.
func (s *Store) Delete(_ context.Context, ticker string) error {
	err := s.db.Delete(ticker, positionRecord{})
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete position '%s': %w", ticker, err)
	}
	s.logger.Debug().Str("ticker", ticker).Msg("Position deleted")
	return nil
}
