// Package models defines data structures for Tally
package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Position is one ticker's current holding.
// A position only exists while Quantity > 0; AverageCost is the
// quantity-weighted mean purchase price across all buys.
type Position struct {
	Ticker      string  `json:"ticker"`
	Quantity    int64   `json:"quantity"`
	AverageCost float64 `json:"average_cost"`
}

// CostBasis returns the total amount paid for the position.
func (p Position) CostBasis() float64 {
	return float64(p.Quantity) * p.AverageCost
}

// NormalizeTicker trims and upper-cases a ticker symbol
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// AverageCost folds a purchase of addQty units at price into an existing
// holding of oldQty units at oldAvg and returns the new average cost.
// An empty holding (oldQty <= 0) yields price.
func AverageCost(oldQty int64, oldAvg float64, addQty int64, price float64) float64 {
	if oldQty <= 0 {
		return price
	}
	if addQty <= 0 {
		return oldAvg
	}

	total := decimal.NewFromInt(oldQty).Add(decimal.NewFromInt(addQty))
	cost := decimal.NewFromInt(oldQty).Mul(decimal.NewFromFloat(oldAvg)).
		Add(decimal.NewFromInt(addQty).Mul(decimal.NewFromFloat(price)))
	avg, _ := cost.Div(total).Float64()
	return avg
}
