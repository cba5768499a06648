package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// Provider decorates a PriceSeriesProvider with a read-through cache.
// Failed fetches are never cached. Cache errors are logged and the
// underlying provider is used instead.
type Provider struct {
	next   interfaces.PriceSeriesProvider
	store  interfaces.CacheStore
	ttl    time.Duration
	logger *common.Logger
}

// NewProvider wraps next with store
func NewProvider(next interfaces.PriceSeriesProvider, store interfaces.CacheStore, ttl time.Duration, logger *common.Logger) *Provider {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Provider{next: next, store: store, ttl: ttl, logger: logger}
}

// SeriesKey is the cache key for one ticker and period
func SeriesKey(ticker string, period models.Period) string {
	return fmt.Sprintf("series:%s:%s", period, models.NormalizeTicker(ticker))
}

// FetchSeries returns the cached series when present, otherwise fetches and caches it.
func (p *Provider) FetchSeries(ctx context.Context, ticker string, period models.Period) (*models.PriceSeries, error) {
	key := SeriesKey(ticker, period)

	data, found, err := p.store.Get(ctx, key)
	switch {
	case err != nil:
		p.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed")
	case found:
		var series models.PriceSeries
		if err := json.Unmarshal(data, &series); err != nil {
			p.logger.Warn().Err(err).Str("key", key).Msg("Discarding corrupt cache entry")
			_ = p.store.Delete(ctx, key)
		} else if !series.IsEmpty() {
			p.logger.Debug().Str("key", key).Msg("Cache hit")
			return &series, nil
		}
	}

	series, err := p.next.FetchSeries(ctx, ticker, period)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(series); err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("Cache encode failed")
	} else if err := p.store.Set(ctx, key, data, p.ttl); err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
	return series, nil
}

// Invalidate drops every cached period for ticker
func (p *Provider) Invalidate(ctx context.Context, ticker string) error {
	for _, period := range models.Periods {
		if err := p.store.Delete(ctx, SeriesKey(ticker, period)); err != nil {
			return err
		}
	}
	return nil
}
