// Package interfaces defines service contracts for Tally
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/tally/internal/models"
)

// LedgerStore is the durable backing for the position ledger.
// Stores persist the absolute values they are given; they never merge
// quantities or average costs. Delete of an absent ticker is not an error.
type LedgerStore interface {
	// LoadAll returns every persisted position
	LoadAll(ctx context.Context) ([]models.Position, error)

	// Upsert inserts or replaces the position keyed by its ticker
	Upsert(ctx context.Context, position models.Position) error

	// Delete removes the position for ticker
	Delete(ctx context.Context, ticker string) error

	// Close releases the underlying connection or file handles
	Close() error
}

// CacheStore is a byte-oriented key-value cache with per-entry TTL.
// A ttl <= 0 stores the entry without expiry.
type CacheStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
