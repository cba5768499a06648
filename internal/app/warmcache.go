package app

import (
	"context"
	"os"
	"time"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// warmCache builds one report on startup so the price cache holds every
// held ticker before the first interactive request.
func warmCache(ctx context.Context, service interfaces.PortfolioService, period models.Period, logger *common.Logger) {
	if os.Getenv("TALLY_WARM_CACHE") == "off" {
		logger.Info().Msg("Warm cache: disabled via TALLY_WARM_CACHE=off")
		return
	}

	positions := service.GetPositions()
	if len(positions) == 0 {
		logger.Info().Msg("Warm cache: ledger empty, skipping")
		return
	}

	start := time.Now()
	report, err := service.BuildReport(ctx, period)
	if err != nil {
		logger.Warn().Err(err).Msg("Warm cache: report failed")
		return
	}

	logger.Info().
		Str("period", period.String()).
		Int("tickers", len(positions)).
		Int("skipped", len(report.Skipped)).
		Dur("elapsed", time.Since(start)).
		Msg("Warm cache: complete")
}
