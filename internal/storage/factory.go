// Package storage selects and builds the ledger store backend.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/storage/badger"
	"github.com/bobmcallan/tally/internal/storage/sqldb"
	"github.com/bobmcallan/tally/internal/storage/surrealdb"
)

// Backend type constants.
const (
	BackendMemory    = "memory"
	BackendFile      = "file"
	BackendBadger    = "badger"
	BackendSurrealDB = "surrealdb"
	BackendSQLite    = "sqlite"
	BackendPostgres  = "postgres"
)

// NewLedgerStore creates the ledger store named by config.Storage.Backend.
// Supported backends: "file" (default), "memory", "badger", "surrealdb", "sqlite", "postgres".
func NewLedgerStore(ctx context.Context, logger *common.Logger, config *common.Config) (interfaces.LedgerStore, error) {
	cfg := config.Storage
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendFile
	}

	logger.Debug().Str("backend", backend).Msg("Opening ledger store")

	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil

	case BackendFile:
		return opened(NewFileStore(logger, cfg.Path, cfg.Versions))

	case BackendBadger:
		return opened(badger.NewStore(logger, cfg.Path))

	case BackendSurrealDB:
		return opened(surrealdb.NewStore(ctx, logger, cfg))

	case BackendSQLite:
		return opened(sqldb.OpenSQLite(logger, cfg.Path))

	case BackendPostgres:
		return opened(sqldb.OpenPostgres(logger, cfg.DSN))

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: memory, file, badger, surrealdb, sqlite, postgres)", backend)
	}
}

// opened keeps a typed nil store out of the returned interface
func opened[T interfaces.LedgerStore](store T, err error) (interfaces.LedgerStore, error) {
	if err != nil {
		return nil, err
	}
	return store, nil
}
