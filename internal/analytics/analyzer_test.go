package analytics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bobmcallan/tally/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	d1 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	d2 = d1.AddDate(0, 0, 1)
	d3 = d1.AddDate(0, 0, 2)
	at = time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC)
)

func series(ticker string, pts ...models.PricePoint) models.PriceSeries {
	return models.PriceSeries{Ticker: ticker, Period: models.Period1M, Points: pts}
}

func pt(d time.Time, close float64) models.PricePoint {
	return models.PricePoint{Date: d, Close: close}
}

func TestAnalyze_UnionByDate(t *testing.T) {
	in := Input{
		Period: models.Period1M,
		Positions: []models.Position{
			{Ticker: "AAPL", Quantity: 1, AverageCost: 90},
			{Ticker: "MSFT", Quantity: 2, AverageCost: 40},
		},
		Series: map[string]models.PriceSeries{
			"AAPL": series("AAPL", pt(d1, 100)),
			"MSFT": series("MSFT", pt(d1, 50), pt(d2, 55)),
		},
		AsOf: at,
	}

	r := NewAnalyzer().Analyze(in)

	require.Len(t, r.DailySeries, 2)
	assert.Equal(t, d1, r.DailySeries[0].Date)
	assert.InDelta(t, 200.0, r.DailySeries[0].Value, 1e-9)
	assert.Equal(t, d2, r.DailySeries[1].Date)
	assert.InDelta(t, 110.0, r.DailySeries[1].Value, 1e-9)

	assert.InDelta(t, 100.0, r.Composition["AAPL"], 1e-9)
	assert.InDelta(t, 110.0, r.Composition["MSFT"], 1e-9)
	assert.InDelta(t, 210.0, r.CurrentValue, 1e-9)

	assert.InDelta(t, -90.0, r.DailyChange, 1e-9)
	assert.InDelta(t, -45.0, r.DailyChangePct, 1e-9)
	assert.InDelta(t, -45.0, r.PeriodReturnPct, 1e-9)

	// cost basis 1*90 + 2*40 = 170
	assert.InDelta(t, 170.0, r.TotalCostBasis, 1e-9)
	assert.InDelta(t, (210.0-170.0)/170.0*100, r.SincePurchaseReturnPct, 1e-9)

	assert.Equal(t, "MSFT", r.TopPerformer.Ticker)
	assert.InDelta(t, 10.0, r.TopPerformer.ReturnPct, 1e-9)
	assert.Equal(t, "AAPL", r.FlopPerformer.Ticker)
	assert.InDelta(t, 0.0, r.FlopPerformer.ReturnPct, 1e-9)

	assert.Empty(t, r.Skipped)
	assert.False(t, r.IsEmpty())
	assert.Equal(t, models.Period1M, r.Period)
	assert.Equal(t, at, r.GeneratedAt)
}

func TestAnalyze_NoPositions(t *testing.T) {
	r := NewAnalyzer().Analyze(Input{Period: models.Period5D, AsOf: at})

	assert.True(t, r.IsEmpty())
	assert.Empty(t, r.DailySeries)
	assert.Zero(t, r.CurrentValue)
	assert.Zero(t, r.TotalCostBasis)
	assert.Zero(t, r.SincePurchaseReturnPct)
	assert.Zero(t, r.PeriodReturnPct)
	assert.Equal(t, models.NoPerformer, r.TopPerformer)
	assert.Equal(t, models.NoPerformer, r.FlopPerformer)
}

func TestAnalyze_AllTickersUnavailable(t *testing.T) {
	in := Input{
		Period: models.Period1M,
		Positions: []models.Position{
			{Ticker: "AAPL", Quantity: 1, AverageCost: 100},
			{Ticker: "ZZZZ", Quantity: 5, AverageCost: 2},
		},
		Series: map[string]models.PriceSeries{
			"AAPL": series("AAPL"),
		},
		Failures: map[string]error{
			"ZZZZ": fmt.Errorf("%w: ZZZZ.US: not found", models.ErrProviderUnavailable),
		},
		AsOf: at,
	}

	r := NewAnalyzer().Analyze(in)

	assert.True(t, r.IsEmpty())
	assert.Empty(t, r.DailySeries)
	assert.Zero(t, r.DailyChange)
	assert.Zero(t, r.DailyChangePct)
	assert.Zero(t, r.PeriodReturnPct)
	assert.Equal(t, models.NoPerformer, r.TopPerformer)
	assert.Equal(t, models.NoPerformer, r.FlopPerformer)

	assert.InDelta(t, 110.0, r.TotalCostBasis, 1e-9)
	assert.Zero(t, r.SincePurchaseReturnPct)

	require.Len(t, r.Skipped, 2)
	assert.Equal(t, "AAPL", r.Skipped[0].Ticker)
	assert.Equal(t, "no price data", r.Skipped[0].Reason)
	assert.Equal(t, "ZZZZ", r.Skipped[1].Ticker)
	assert.Contains(t, r.Skipped[1].Reason, "not found")
}

func TestAnalyze_OneTickerUnavailable(t *testing.T) {
	in := Input{
		Period: models.Period1M,
		Positions: []models.Position{
			{Ticker: "AAPL", Quantity: 3, AverageCost: 100},
			{Ticker: "BAD", Quantity: 1, AverageCost: 10},
		},
		Series: map[string]models.PriceSeries{
			"AAPL": series("AAPL", pt(d1, 100), pt(d2, 110), pt(d3, 121)),
		},
		Failures: map[string]error{"BAD": models.ErrProviderUnavailable},
		AsOf:     at,
	}

	r := NewAnalyzer().Analyze(in)

	assert.Len(t, r.Composition, 1)
	assert.InDelta(t, 363.0, r.Composition["AAPL"], 1e-9)
	require.Len(t, r.DailySeries, 3)
	assert.InDelta(t, 33.0, r.DailyChange, 1e-9)
	assert.InDelta(t, 10.0, r.DailyChangePct, 1e-9)
	assert.InDelta(t, 21.0, r.PeriodReturnPct, 1e-9)
	assert.Equal(t, "AAPL", r.TopPerformer.Ticker)
	assert.Equal(t, "AAPL", r.FlopPerformer.Ticker)

	require.Len(t, r.Skipped, 1)
	assert.Equal(t, "BAD", r.Skipped[0].Ticker)
	assert.True(t, errors.Is(in.Failures["BAD"], models.ErrProviderUnavailable))
}

func TestAnalyze_TiesKeepFirstTicker(t *testing.T) {
	in := Input{
		Period: models.Period1M,
		Positions: []models.Position{
			{Ticker: "BBB", Quantity: 1, AverageCost: 1},
			{Ticker: "AAA", Quantity: 1, AverageCost: 1},
			{Ticker: "CCC", Quantity: 1, AverageCost: 1},
		},
		Series: map[string]models.PriceSeries{
			"AAA": series("AAA", pt(d1, 10), pt(d2, 11)),
			"BBB": series("BBB", pt(d1, 20), pt(d2, 22)),
			"CCC": series("CCC", pt(d1, 5), pt(d2, 5.5)),
		},
		AsOf: at,
	}

	r := NewAnalyzer().Analyze(in)

	assert.Equal(t, "BBB", r.TopPerformer.Ticker)
	assert.Equal(t, "BBB", r.FlopPerformer.Ticker)

	// Ticker figures follow ledger order
	require.Len(t, r.Tickers, 3)
	assert.Equal(t, "BBB", r.Tickers[0].Ticker)
	assert.Equal(t, "AAA", r.Tickers[1].Ticker)
	assert.Equal(t, "CCC", r.Tickers[2].Ticker)
}

func TestAnalyze_ZeroGuards(t *testing.T) {
	in := Input{
		Period: models.Period1M,
		Positions: []models.Position{
			{Ticker: "ZERO", Quantity: 4, AverageCost: 1},
		},
		Series: map[string]models.PriceSeries{
			"ZERO": series("ZERO", pt(d1, 0), pt(d2, 0), pt(d3, 3)),
		},
		AsOf: at,
	}

	r := NewAnalyzer().Analyze(in)

	// Baselines are zero: no division, all ratios stay 0
	assert.Zero(t, r.PeriodReturnPct)
	assert.Zero(t, r.Tickers[0].ReturnPct)
	assert.Zero(t, r.DailyChange)
	assert.Zero(t, r.DailyChangePct)
	assert.InDelta(t, 12.0, r.CurrentValue, 1e-9)
	assert.InDelta(t, 200.0, r.SincePurchaseReturnPct, 1e-9)
}

func TestAnalyze_SinglePointSeries(t *testing.T) {
	in := Input{
		Period:    models.Period1D,
		Positions: []models.Position{{Ticker: "AAPL", Quantity: 2, AverageCost: 50}},
		Series:    map[string]models.PriceSeries{"AAPL": series("AAPL", pt(d3, 60))},
		AsOf:      at,
	}

	r := NewAnalyzer().Analyze(in)

	require.Len(t, r.DailySeries, 1)
	assert.Zero(t, r.DailyChange)
	assert.Zero(t, r.DailyChangePct)
	assert.Zero(t, r.PeriodReturnPct)
	assert.InDelta(t, 20.0, r.SincePurchaseReturnPct, 1e-9)
	assert.InDelta(t, 60.0, r.Tickers[0].LastClose, 1e-9)
}

func TestAnalyze_UnsortedSeriesAndDuplicateDays(t *testing.T) {
	late := d2.Add(20 * time.Hour)
	in := Input{
		Period:    models.Period1M,
		Positions: []models.Position{{Ticker: "AAPL", Quantity: 1, AverageCost: 1}},
		Series: map[string]models.PriceSeries{
			"AAPL": series("AAPL", pt(d3, 30), pt(d1, 10), pt(d2, 19), pt(late, 20)),
		},
		AsOf: at,
	}
	original := append([]models.PricePoint(nil), in.Series["AAPL"].Points...)

	r := NewAnalyzer().Analyze(in)

	require.Len(t, r.DailySeries, 3)
	assert.InDelta(t, 10.0, r.DailySeries[0].Value, 1e-9)
	assert.InDelta(t, 20.0, r.DailySeries[1].Value, 1e-9)
	assert.InDelta(t, 30.0, r.DailySeries[2].Value, 1e-9)
	assert.InDelta(t, 200.0, r.PeriodReturnPct, 1e-9)

	assert.Equal(t, original, in.Series["AAPL"].Points, "input must not be mutated")
}

func TestReport_WeightsAndOrdering(t *testing.T) {
	in := Input{
		Period: models.Period1M,
		Positions: []models.Position{
			{Ticker: "A", Quantity: 1, AverageCost: 1},
			{Ticker: "B", Quantity: 3, AverageCost: 1},
		},
		Series: map[string]models.PriceSeries{
			"A": series("A", pt(d1, 25)),
			"B": series("B", pt(d1, 25)),
		},
		AsOf: at,
	}

	r := NewAnalyzer().Analyze(in)
	w := r.Weights()

	assert.InDelta(t, 25.0, w["A"], 1e-9)
	assert.InDelta(t, 75.0, w["B"], 1e-9)
	assert.Equal(t, []string{"B", "A"}, r.CompositionTickers())
}
