// Package surrealdb provides a SurrealDB-backed ledger store.
package surrealdb

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
)

const portfolioTable = "portfolio"

// positionRecord is one row of the portfolio table. The record id is the ticker.
type positionRecord struct {
	Ticker       string  `json:"ticker"`
	Quantity     int64   `json:"quantity"`
	AveragePrice float64 `json:"average_price"`
}

// Store implements interfaces.LedgerStore on a SurrealDB table.
type Store struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewStore connects, signs in, selects the namespace and database and
// ensures the portfolio table exists.
func NewStore(ctx context.Context, logger *common.Logger, cfg common.StorageConfig) (*Store, error) {
	db, err := surrealdb.New(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": cfg.Username,
		"pass": cfg.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	s, err := newStoreWithDB(ctx, db, logger)
	if err != nil {
		db.Close(ctx)
		return nil, err
	}

	logger.Info().
		Str("address", cfg.Address).
		Str("namespace", cfg.Namespace).
		Str("database", cfg.Database).
		Msg("SurrealDB ledger store initialized")

	return s, nil
}

// newStoreWithDB wraps an already selected connection
func newStoreWithDB(ctx context.Context, db *surrealdb.DB, logger *common.Logger) (*Store, error) {
	// SurrealDB v3 errors on querying non-existent tables
	sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", portfolioTable)
	if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
		return nil, fmt.Errorf("failed to define table %s: %w", portfolioTable, err)
	}
	return &Store{db: db, logger: logger}, nil
}

// LoadAll returns every stored position
func (s *Store) LoadAll(ctx context.Context) ([]models.Position, error) {
	list, err := surrealdb.Select[[]positionRecord](ctx, s.db, surrealmodels.Table(portfolioTable))
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}

	var out []models.Position
	if list != nil {
		for _, r := range *list {
			out = append(out, models.Position{Ticker: r.Ticker, Quantity: r.Quantity, AverageCost: r.AveragePrice})
		}
	}
	return out, nil
}

// Upsert replaces the stored position for p.Ticker
func (s *Store) Upsert(ctx context.Context, p models.Position) error {
	rec := positionRecord{Ticker: p.Ticker, Quantity: p.Quantity, AveragePrice: p.AverageCost}
	sql := "UPSERT type::record($tb, $id) CONTENT $rec"
	vars := map[string]any{"tb": portfolioTable, "id": p.Ticker, "rec": rec}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]positionRecord](ctx, s.db, sql, vars)
		if err == nil {
			s.logger.Debug().Str("ticker", p.Ticker).Int64("quantity", p.Quantity).Msg("Position saved")
			return nil
		}
		if attempt == 3 || ctx.Err() != nil {
			return fmt.Errorf("failed to save position '%s': %w", p.Ticker, err)
		}
	}
	return nil
}

// Delete removes the stored position for ticker. Absent tickers are ignored.
func (s *Store) Delete(ctx context.Context, ticker string) error {
	if _, err := surrealdb.Delete[positionRecord](ctx, s.db, surrealmodels.NewRecordID(portfolioTable, ticker)); err != nil {
		return fmt.Errorf("failed to delete position '%s': %w", ticker, err)
	}
	s.logger.Debug().Str("ticker", ticker).Msg("Position deleted")
	return nil
}

// Close closes the SurrealDB connection
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close(context.Background())
}
