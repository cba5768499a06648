package eodhd

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bobmcallan/tally/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 28, 15, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", WithBaseURL(srv.URL), WithClock(func() time.Time { return fixedNow }))
}

const weekOfBars = `[
	{"date": "2025-03-21", "open": 10, "high": 11, "low": 9, "close": 10.5, "adjusted_close": 10.5, "volume": 100},
	{"date": "2025-03-24", "open": 10, "high": 11, "low": 9, "close": 10.6, "adjusted_close": 10.6, "volume": 100},
	{"date": "2025-03-25", "open": 10, "high": 11, "low": 9, "close": "10.70", "adjusted_close": "10.70", "volume": "100"},
	{"date": "2025-03-26", "open": 10, "high": 11, "low": 9, "close": 10.8, "adjusted_close": 10.8, "volume": 100},
	{"date": "2025-03-27", "open": 10, "high": 11, "low": 9, "close": 10.9, "adjusted_close": 10.9, "volume": 100},
	{"date": "2025-03-28", "open": 10, "high": 11, "low": 9, "close": 11.0, "adjusted_close": 11.0, "volume": 100}
]`

func TestFetchSeries_RequestShape(t *testing.T) {
	var gotPath string
	var gotQuery map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(weekOfBars))
	})

	series, err := client.FetchSeries(context.Background(), "aapl", models.Period1M)
	require.NoError(t, err)

	assert.Equal(t, "/eod/AAPL.US", gotPath)
	assert.Equal(t, "a", gotQuery["order"])
	assert.Equal(t, "d", gotQuery["period"])
	assert.Equal(t, "json", gotQuery["fmt"])
	assert.Equal(t, "test-key", gotQuery["api_token"])
	assert.Equal(t, "2025-02-28", gotQuery["from"])
	assert.Equal(t, "2025-03-28", gotQuery["to"])

	assert.Equal(t, "AAPL", series.Ticker)
	assert.Equal(t, models.Period1M, series.Period)
	require.Len(t, series.Points, 6)
	assert.Equal(t, 10.7, series.Points[2].Close)
}

func TestFetchSeries_DayCountedPeriodsTrim(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(weekOfBars))
	})

	s, err := client.FetchSeries(context.Background(), "AAPL", models.Period5D)
	require.NoError(t, err)
	require.Len(t, s.Points, 5)
	assert.Equal(t, time.Date(2025, 3, 24, 0, 0, 0, 0, time.UTC), s.Points[0].Date)

	s, err = client.FetchSeries(context.Background(), "AAPL", models.Period1D)
	require.NoError(t, err)
	require.Len(t, s.Points, 1)
	assert.Equal(t, 11.0, s.Points[0].Close)
}

func TestFetchSeries_MaxHasNoRange(t *testing.T) {
	var hasFrom bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, hasFrom = r.URL.Query()["from"]
		w.Write([]byte(weekOfBars))
	})

	_, err := client.FetchSeries(context.Background(), "AAPL", models.PeriodMax)
	require.NoError(t, err)
	assert.False(t, hasFrom)
}

func TestFetchSeries_ExplicitExchangeKept(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(weekOfBars))
	})

	_, err := client.FetchSeries(context.Background(), "bhp.au", models.Period1M)
	require.NoError(t, err)
	assert.Equal(t, "/eod/BHP.AU", gotPath)
}

func TestFetchSeries_Unavailable(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"unknown symbol", http.StatusNotFound, "Ticker Not Found.", "unknown symbol"},
		{"empty result", http.StatusOK, "[]", "no data"},
		{"server error", http.StatusInternalServerError, "boom", "status: 500"},
		{"bad json", http.StatusOK, "{not json", "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			s, err := client.FetchSeries(context.Background(), "ZZZZ", models.Period1M)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.True(t, errors.Is(err, models.ErrProviderUnavailable), "got %v", err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestFetchSeries_CancelledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(weekOfBars))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchSeries(ctx, "AAPL", models.Period1M)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, models.ErrProviderUnavailable))
}

func TestFetchSeries_EmptyTicker(t *testing.T) {
	client := NewClient("k")
	_, err := client.FetchSeries(context.Background(), "  ", models.Period1M)
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}

func TestGetEOD_SkipsBadDates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"date":"not-a-date","close":1},{"date":"2025-03-28","close":"2.5","volume":"7"}]`))
	})

	resp, err := client.GetEOD(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, 2.5, resp.Data[0].Close)
	assert.Equal(t, int64(7), resp.Data[0].Volume)
}

func TestAPIError_Message(t *testing.T) {
	err := &APIError{StatusCode: 401, Message: "Unauthenticated", Endpoint: "/eod/AAPL.US"}
	assert.Equal(t, "EODHD API error: Unauthenticated (status: 401, endpoint: /eod/AAPL.US)", err.Error())
}

func TestSymbol(t *testing.T) {
	c := NewClient("k", WithExchange("au"))
	assert.Equal(t, "CBA.AU", c.Symbol("cba"))
	assert.Equal(t, "VOO.US", c.Symbol("VOO.US"))
	assert.Equal(t, "", c.Symbol(""))
}
