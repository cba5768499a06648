package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Period is the historical window a price series and period return cover.
type Period string

const (
	Period1D  Period = "1d"
	Period5D  Period = "5d"
	Period1M  Period = "1mo"
	Period3M  Period = "3mo"
	Period6M  Period = "6mo"
	Period1Y  Period = "1y"
	Period5Y  Period = "5y"
	PeriodMax Period = "max"

	// DefaultPeriod is the window the dashboard reports on.
	DefaultPeriod = Period1M
)

// Periods lists every supported period, shortest first.
var Periods = []Period{Period1D, Period5D, Period1M, Period3M, Period6M, Period1Y, Period5Y, PeriodMax}

// ParsePeriod validates a period string. An empty string yields DefaultPeriod.
func ParsePeriod(s string) (Period, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultPeriod, nil
	}
	for _, p := range Periods {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: unknown period %q", ErrInvalidInput, s)
}

func (p Period) String() string { return string(p) }

// TradingDays returns the number of most recent bars the period keeps for
// day-counted periods (1d, 5d), or 0 for calendar periods.
func (p Period) TradingDays() int {
	switch p {
	case Period1D:
		return 1
	case Period5D:
		return 5
	}
	return 0
}

// Start returns the first calendar date to request for the period, relative
// to now. Day-counted periods reach back far enough to cover weekends and
// holidays; the caller trims to TradingDays. PeriodMax returns the zero time.
func (p Period) Start(now time.Time) time.Time {
	switch p {
	case Period1D:
		return now.AddDate(0, 0, -7)
	case Period5D:
		return now.AddDate(0, 0, -14)
	case Period1M:
		return now.AddDate(0, -1, 0)
	case Period3M:
		return now.AddDate(0, -3, 0)
	case Period6M:
		return now.AddDate(0, -6, 0)
	case Period1Y:
		return now.AddDate(-1, 0, 0)
	case Period5Y:
		return now.AddDate(-5, 0, 0)
	}
	return time.Time{}
}

// Day truncates t to its calendar day, dropping time-of-day and zone.
// Series from different sources are aligned on this key.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PricePoint is the closing price of one ticker on one date.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceSeries is the ordered closing-price history of one ticker over a period.
// Points may be empty when the provider had no data.
type PriceSeries struct {
	Ticker string       `json:"ticker"`
	Period Period       `json:"period"`
	Points []PricePoint `json:"points"`
}

// IsEmpty reports whether the series carries no points.
func (s *PriceSeries) IsEmpty() bool {
	return s == nil || len(s.Points) == 0
}

// Sorted returns a copy of the points in ascending date order.
func (s *PriceSeries) Sorted() []PricePoint {
	if s == nil {
		return nil
	}
	out := make([]PricePoint, len(s.Points))
	copy(out, s.Points)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// Last returns the most recent point, if any.
func (s *PriceSeries) Last() (PricePoint, bool) {
	pts := s.Sorted()
	if len(pts) == 0 {
		return PricePoint{}, false
	}
	return pts[len(pts)-1], true
}

// Trim keeps only the most recent n points (ascending). n <= 0 keeps all.
func (s *PriceSeries) Trim(n int) {
	if s == nil {
		return
	}
	pts := s.Sorted()
	if n > 0 && len(pts) > n {
		pts = pts[len(pts)-n:]
	}
	s.Points = pts
}

// EODBar represents a single day's price data
type EODBar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adjusted_close"`
	Volume   int64     `json:"volume"`
}

// EODResponse holds end-of-day bars as returned by the provider
type EODResponse struct {
	Data []EODBar `json:"data"`
}
