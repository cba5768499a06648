// Package sqldb provides a gorm-backed ledger store for SQLite and PostgreSQL.
package sqldb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
)

// positionRow maps to portfolio(ticker TEXT PRIMARY KEY, quantity INTEGER NOT NULL,
// average_price REAL NOT NULL).
type positionRow struct {
	Ticker       string  `gorm:"column:ticker;primaryKey"`
	Quantity     int64   `gorm:"column:quantity;not null"`
	AveragePrice float64 `gorm:"column:average_price;not null"`
}

func (positionRow) TableName() string { return "portfolio" }

// Store implements interfaces.LedgerStore over gorm.
type Store struct {
	db     *gorm.DB
	logger *common.Logger
}

// OpenSQLite opens (creating if needed) a SQLite database file
func OpenSQLite(logger *common.Logger, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory %s: %w", dir, err)
		}
	}
	return open(logger, sqlite.Open(path), "sqlite", path)
}

// OpenPostgres connects to PostgreSQL with dsn
func OpenPostgres(logger *common.Logger, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres backend requires storage.dsn")
	}
	return open(logger, postgres.Open(dsn), "postgres", "")
}

func open(logger *common.Logger, dialector gorm.Dialector, driver, location string) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if err := db.AutoMigrate(&positionRow{}); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("failed to migrate portfolio table: %w", err)
	}

	logger.Debug().Str("driver", driver).Str("location", location).Msg("SQL ledger store opened")
	return &Store{db: db, logger: logger}, nil
}

// LoadAll returns every stored position ordered by ticker
func (s *Store) LoadAll(ctx context.Context) ([]models.Position, error) {
	var rows []positionRow
	if err := s.db.WithContext(ctx).Order("ticker").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	out := make([]models.Position, len(rows))
	for i, r := range rows {
		out[i] = models.Position{Ticker: r.Ticker, Quantity: r.Quantity, AverageCost: r.AveragePrice}
	}
	return out, nil
}

// Upsert writes p, replacing quantity and average_price on conflict
func (s *Store) Upsert(ctx context.Context, p models.Position) error {
	row := positionRow{Ticker: p.Ticker, Quantity: p.Quantity, AveragePrice: p.AverageCost}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ticker"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "average_price"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save position '%s': %w", p.Ticker, err)
	}
	s.logger.Debug().Str("ticker", p.Ticker).Int64("quantity", p.Quantity).Msg("Position saved")
	return nil
}

// Delete removes the row for ticker. Absent tickers are ignored.
func (s *Store) Delete(ctx context.Context, ticker string) error {
	if err := s.db.WithContext(ctx).Where("ticker = ?", ticker).Delete(&positionRow{}).Error; err != nil {
		return fmt.Errorf("failed to delete position '%s': %w", ticker, err)
	}
	s.logger.Debug().Str("ticker", ticker).Msg("Position deleted")
	return nil
}

// Close closes the connection pool
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return closeDB(s.db)
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
