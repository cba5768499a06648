package main

import (
	"fmt"
	"strings"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
)

// Delegate to common format helpers
func formatMoney(v float64) string       { return common.FormatMoney(v) }
func formatSignedMoney(v float64) string { return common.FormatSignedMoney(v) }
func formatSignedPct(v float64) string   { return common.FormatSignedPct(v) }

// maxSeriesRows caps the daily value table; longer periods show the most recent days.
const maxSeriesRows = 30

// formatReport formats a portfolio report as markdown
func formatReport(r *models.PortfolioReport) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Portfolio Report (%s)\n\n", r.Period))
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04")))

	if r.IsEmpty() {
		sb.WriteString("No positions could be valued for this period.\n")
		writeSkipped(&sb, r.Skipped)
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("**Current Value:** %s\n", formatMoney(r.CurrentValue)))
	sb.WriteString(fmt.Sprintf("**Cost Basis:** %s\n", formatMoney(r.TotalCostBasis)))
	sb.WriteString(fmt.Sprintf("**Day Change:** %s (%s)\n", formatSignedMoney(r.DailyChange), formatSignedPct(r.DailyChangePct)))
	sb.WriteString(fmt.Sprintf("**Period Return:** %s\n", formatSignedPct(r.PeriodReturnPct)))
	sb.WriteString(fmt.Sprintf("**Since Purchase:** %s\n\n", formatSignedPct(r.SincePurchaseReturnPct)))

	sb.WriteString(fmt.Sprintf("**Top:** %s\n", formatPerformer(r.TopPerformer)))
	sb.WriteString(fmt.Sprintf("**Flop:** %s\n\n", formatPerformer(r.FlopPerformer)))

	// Composition
	perf := make(map[string]models.TickerPerformance, len(r.Tickers))
	for _, tp := range r.Tickers {
		perf[tp.Ticker] = tp
	}
	weights := r.Weights()

	sb.WriteString("## Composition\n\n")
	sb.WriteString("| Symbol | Qty | Close | Value | Weight | Return |\n")
	sb.WriteString("|--------|-----|-------|-------|--------|--------|\n")
	for _, ticker := range r.CompositionTickers() {
		tp := perf[ticker]
		sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s | %s |\n",
			ticker,
			tp.Quantity,
			formatMoney(tp.LastClose),
			formatMoney(r.Composition[ticker]),
			common.FormatPct(weights[ticker]),
			formatSignedPct(tp.ReturnPct),
		))
	}
	sb.WriteString(fmt.Sprintf("| **Total** | | | **%s** | 100.0%% | |\n\n", formatMoney(r.CurrentValue)))

	// Daily value
	points := r.DailySeries
	if len(points) > maxSeriesRows {
		points = points[len(points)-maxSeriesRows:]
	}
	sb.WriteString("## Daily Value\n\n")
	sb.WriteString("| Date | Value |\n")
	sb.WriteString("|------|-------|\n")
	for _, p := range points {
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", p.Date.Format("2006-01-02"), formatMoney(p.Value)))
	}
	sb.WriteString("\n")

	writeSkipped(&sb, r.Skipped)
	return sb.String()
}

func formatPerformer(p models.Performer) string {
	if p.Ticker == models.NotAvailable {
		return models.NotAvailable
	}
	return fmt.Sprintf("%s %s", p.Ticker, formatSignedPct(p.ReturnPct))
}

func writeSkipped(sb *strings.Builder, skipped []models.SkippedTicker) {
	if len(skipped) == 0 {
		return
	}
	sb.WriteString("## Skipped\n\n")
	for _, s := range skipped {
		sb.WriteString(fmt.Sprintf("- **%s**: %s\n", s.Ticker, s.Reason))
	}
	sb.WriteString("\n")
}

// formatPositions formats the ledger as a markdown table
func formatPositions(positions []models.Position) string {
	var sb strings.Builder
	sb.WriteString("# Positions\n\n")

	if len(positions) == 0 {
		sb.WriteString("No positions. Use `tally add` to record a purchase.\n")
		return sb.String()
	}

	sb.WriteString("| Symbol | Qty | Avg Cost | Cost Basis |\n")
	sb.WriteString("|--------|-----|----------|------------|\n")
	total := 0.0
	for _, p := range positions {
		total += p.CostBasis()
		sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s |\n",
			p.Ticker, p.Quantity, formatMoney(p.AverageCost), formatMoney(p.CostBasis())))
	}
	sb.WriteString(fmt.Sprintf("| **Total** | | | **%s** |\n", formatMoney(total)))
	return sb.String()
}

// formatQuote formats a single ticker's closes, most recent first
func formatQuote(s *models.PriceSeries) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s (%s)\n\n", s.Ticker, s.Period))

	points := s.Sorted()
	if len(points) == 0 {
		sb.WriteString("No price data.\n")
		return sb.String()
	}

	first, last := points[0], points[len(points)-1]
	sb.WriteString(fmt.Sprintf("**Last Close:** %s (%s)\n", formatMoney(last.Close), last.Date.Format("2006-01-02")))
	if first.Close != 0 && len(points) > 1 {
		sb.WriteString(fmt.Sprintf("**Change:** %s (%s)\n",
			formatSignedMoney(last.Close-first.Close),
			formatSignedPct((last.Close-first.Close)/first.Close*100)))
	}
	sb.WriteString("\n")

	if len(points) > maxSeriesRows {
		points = points[len(points)-maxSeriesRows:]
	}
	sb.WriteString("| Date | Close |\n")
	sb.WriteString("|------|-------|\n")
	for i := len(points) - 1; i >= 0; i-- {
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", points[i].Date.Format("2006-01-02"), formatMoney(points[i].Close)))
	}
	return sb.String()
}
