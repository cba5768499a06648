package models

import (
	"sort"
	"time"
)

// NotAvailable is the ticker reported for top/flop when nothing could be valued.
const NotAvailable = "n/a"

// ValuePoint is the aggregate market value of the portfolio on one date.
type ValuePoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Performer names a ticker and its return over the report period.
type Performer struct {
	Ticker    string  `json:"ticker"`
	ReturnPct float64 `json:"return_pct"`
}

// NoPerformer is the sentinel used when no ticker produced a valid series.
var NoPerformer = Performer{Ticker: NotAvailable}

// TickerPerformance holds the per-ticker figures behind composition and top/flop.
type TickerPerformance struct {
	Ticker     string  `json:"ticker"`
	Quantity   int64   `json:"quantity"`
	LastClose  float64 `json:"last_close"`
	FirstValue float64 `json:"first_value"`
	LastValue  float64 `json:"last_value"`
	ReturnPct  float64 `json:"return_pct"`
}

// SkippedTicker records a position left out of a report and why.
type SkippedTicker struct {
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
}

// PortfolioReport is derived from the ledger and freshly fetched series on
// every request. It has no persisted identity.
type PortfolioReport struct {
	Period      Period    `json:"period"`
	GeneratedAt time.Time `json:"generated_at"`

	// Composition maps ticker to latest market value (quantity * last close).
	Composition map[string]float64 `json:"composition"`

	// DailySeries is the aggregate value per date, ascending.
	DailySeries []ValuePoint `json:"daily_series"`

	CurrentValue           float64 `json:"current_value"`
	TotalCostBasis         float64 `json:"total_cost_basis"`
	DailyChange            float64 `json:"daily_change"`
	DailyChangePct         float64 `json:"daily_change_pct"`
	PeriodReturnPct        float64 `json:"period_return_pct"`
	SincePurchaseReturnPct float64 `json:"since_purchase_return_pct"`

	TopPerformer  Performer `json:"top_performer"`
	FlopPerformer Performer `json:"flop_performer"`

	// Tickers lists valued positions in ledger order.
	Tickers []TickerPerformance `json:"tickers"`
	Skipped []SkippedTicker     `json:"skipped,omitempty"`
}

// NewEmptyReport returns the report for a portfolio with nothing to value.
func NewEmptyReport(period Period, at time.Time) *PortfolioReport {
	return &PortfolioReport{
		Period:        period,
		GeneratedAt:   at,
		Composition:   map[string]float64{},
		DailySeries:   []ValuePoint{},
		TopPerformer:  NoPerformer,
		FlopPerformer: NoPerformer,
	}
}

// IsEmpty reports whether no ticker contributed to the report. The
// presentation layer shows an empty-portfolio state rather than an error.
func (r *PortfolioReport) IsEmpty() bool {
	return r == nil || len(r.Composition) == 0
}

// Weights returns each ticker's share of CurrentValue in percent.
func (r *PortfolioReport) Weights() map[string]float64 {
	out := make(map[string]float64, len(r.Composition))
	for ticker, v := range r.Composition {
		if r.CurrentValue > 0 {
			out[ticker] = v / r.CurrentValue * 100
		} else {
			out[ticker] = 0
		}
	}
	return out
}

// CompositionTickers returns the composition keys by descending value,
// ticker ascending on ties.
func (r *PortfolioReport) CompositionTickers() []string {
	tickers := make([]string, 0, len(r.Composition))
	for t := range r.Composition {
		tickers = append(tickers, t)
	}
	sort.Slice(tickers, func(i, j int) bool {
		vi, vj := r.Composition[tickers[i]], r.Composition[tickers[j]]
		if vi != vj {
			return vi > vj
		}
		return tickers[i] < tickers[j]
	})
	return tickers
}
