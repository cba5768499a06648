// Package analytics turns ledger positions and price series into portfolio reports
package analytics

import (
	"sort"
	"time"

	"github.com/bobmcallan/tally/internal/models"
)

// Input is everything one report is computed from. All fetches must have
// finished before Analyze is called.
type Input struct {
	Period    models.Period
	Positions []models.Position
	// Series is keyed by normalized ticker.
	Series map[string]models.PriceSeries
	// Failures records why a ticker has no series, keyed by normalized ticker.
	Failures map[string]error
	AsOf     time.Time
}

// Analyzer computes portfolio reports. It holds no state.
type Analyzer struct{}

// NewAnalyzer creates a new analyzer
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// tickerValues is one ticker's market value per day, ascending.
type tickerValues struct {
	position models.Position
	days     []time.Time
	values   []float64
}

// Analyze computes the report for in. It does not modify in.
func (a *Analyzer) Analyze(in Input) *models.PortfolioReport {
	report := models.NewEmptyReport(in.Period, in.AsOf)

	var valued []tickerValues
	for _, pos := range in.Positions {
		series, ok := in.Series[pos.Ticker]
		if !ok || series.IsEmpty() {
			report.Skipped = append(report.Skipped, models.SkippedTicker{
				Ticker: pos.Ticker,
				Reason: skipReason(in.Failures[pos.Ticker]),
			})
			continue
		}
		valued = append(valued, valuesFor(pos, &series))
	}

	// Cost basis covers every held position, valued or not
	for _, pos := range in.Positions {
		report.TotalCostBasis += pos.CostBasis()
	}

	if len(valued) == 0 {
		return report
	}

	byDay := make(map[time.Time]float64)
	for _, tv := range valued {
		last := len(tv.values) - 1
		report.Composition[tv.position.Ticker] = tv.values[last]
		report.CurrentValue += tv.values[last]

		for i, d := range tv.days {
			byDay[d] += tv.values[i]
		}

		report.Tickers = append(report.Tickers, models.TickerPerformance{
			Ticker:     tv.position.Ticker,
			Quantity:   tv.position.Quantity,
			LastClose:  tv.values[last] / float64(tv.position.Quantity),
			FirstValue: tv.values[0],
			LastValue:  tv.values[last],
			ReturnPct:  pctChange(tv.values[0], tv.values[last]),
		})
	}

	report.DailySeries = make([]models.ValuePoint, 0, len(byDay))
	for d, v := range byDay {
		report.DailySeries = append(report.DailySeries, models.ValuePoint{Date: d, Value: v})
	}
	sort.Slice(report.DailySeries, func(i, j int) bool {
		return report.DailySeries[i].Date.Before(report.DailySeries[j].Date)
	})

	if n := len(report.DailySeries); n >= 2 {
		prev, curr := report.DailySeries[n-2].Value, report.DailySeries[n-1].Value
		if prev != 0 {
			report.DailyChange = curr - prev
			report.DailyChangePct = pctChange(prev, curr)
		}
		report.PeriodReturnPct = pctChange(report.DailySeries[0].Value, curr)
	}

	if report.TotalCostBasis > 0 {
		report.SincePurchaseReturnPct = pctChange(report.TotalCostBasis, report.CurrentValue)
	}

	report.TopPerformer, report.FlopPerformer = performers(report.Tickers)
	return report
}

// valuesFor multiplies each close by the held quantity. Points sharing a
// calendar day collapse to the later one.
func valuesFor(pos models.Position, series *models.PriceSeries) tickerValues {
	tv := tickerValues{position: pos}
	qty := float64(pos.Quantity)
	for _, pt := range series.Sorted() {
		d := models.Day(pt.Date)
		v := qty * pt.Close
		if n := len(tv.days); n > 0 && tv.days[n-1].Equal(d) {
			tv.values[n-1] = v
			continue
		}
		tv.days = append(tv.days, d)
		tv.values = append(tv.values, v)
	}
	return tv
}

// performers returns the best and worst return. Ties keep the earlier ticker.
func performers(tickers []models.TickerPerformance) (top, flop models.Performer) {
	if len(tickers) == 0 {
		return models.NoPerformer, models.NoPerformer
	}
	top = models.Performer{Ticker: tickers[0].Ticker, ReturnPct: tickers[0].ReturnPct}
	flop = top
	for _, t := range tickers[1:] {
		if t.ReturnPct > top.ReturnPct {
			top = models.Performer{Ticker: t.Ticker, ReturnPct: t.ReturnPct}
		}
		if t.ReturnPct < flop.ReturnPct {
			flop = models.Performer{Ticker: t.Ticker, ReturnPct: t.ReturnPct}
		}
	}
	return top, flop
}

// pctChange returns the percentage change from base to v, or 0 when base is 0.
func pctChange(base, v float64) float64 {
	if base == 0 {
		return 0
	}
	return (v - base) / base * 100
}

func skipReason(err error) string {
	if err == nil {
		return "no price data"
	}
	return err.Error()
}
