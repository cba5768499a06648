package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
)

// NewStore creates the CacheStore named by cfg.Backend.
// Backend "none" (or empty) returns a nil store and no error.
func NewStore(ctx context.Context, cfg common.CacheConfig, logger *common.Logger) (interfaces.CacheStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none":
		logger.Debug().Msg("Price cache disabled")
		return nil, nil
	case "memory":
		logger.Debug().Str("ttl", cfg.GetTTL().String()).Msg("Using in-memory price cache")
		return NewMemoryStore(), nil
	case "redis":
		store, err := NewRedisStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("address", cfg.RedisAddress).Int("db", cfg.RedisDB).Msg("Using redis price cache")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
