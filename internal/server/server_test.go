package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/bobmcallan/tally/internal/app"
	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test helpers ---

type mockPortfolioService struct {
	positions   []models.Position
	addErr      error
	reportErr   error
	quoteSeries *models.PriceSeries
	lastPeriod  models.Period
}

func (m *mockPortfolioService) GetPositions() []models.Position { return m.positions }

func (m *mockPortfolioService) AddPosition(ctx context.Context, ticker string, quantity int64, price float64) (models.Position, error) {
	if m.addErr != nil {
		return models.Position{}, m.addErr
	}
	return models.Position{Ticker: models.NormalizeTicker(ticker), Quantity: quantity, AverageCost: price}, nil
}

func (m *mockPortfolioService) ReducePosition(ctx context.Context, ticker string, quantity int64) (models.Position, bool, error) {
	return models.Position{}, false, models.ErrNotFound
}

func (m *mockPortfolioService) RemovePosition(ctx context.Context, ticker string) error { return nil }

func (m *mockPortfolioService) BuildReport(ctx context.Context, period models.Period) (*models.PortfolioReport, error) {
	m.lastPeriod = period
	if m.reportErr != nil {
		return nil, m.reportErr
	}
	return models.NewEmptyReport(period, time.Now()), nil
}

func (m *mockPortfolioService) Quote(ctx context.Context, ticker string, period models.Period) (*models.PriceSeries, error) {
	m.lastPeriod = period
	if m.quoteSeries == nil {
		return nil, models.ErrProviderUnavailable
	}
	return m.quoteSeries, nil
}

func newTestServer(svc *mockPortfolioService) *Server {
	logger := common.NewSilentLogger()
	a := &app.App{
		Config:           common.NewDefaultConfig(),
		Logger:           logger,
		PortfolioService: svc,
		DefaultPeriod:    models.Period1M,
	}
	return NewServer(a)
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(data)
}

func do(t *testing.T, srv *Server, method, path string, body *bytes.Buffer) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, body)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

// --- System ---

func TestHealthAndVersion(t *testing.T) {
	srv := newTestServer(&mockPortfolioService{})

	rec := do(t, srv, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))

	rec = do(t, srv, http.MethodPost, "/api/version", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))
}

func TestCorrelationIDPropagated(t *testing.T) {
	srv := newTestServer(&mockPortfolioService{})
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc123", rec.Header().Get("X-Correlation-ID"))
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(&mockPortfolioService{})
	rec := do(t, srv, http.MethodOptions, "/api/positions", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

// --- Error mapping ---

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{models.ErrInvalidInput, http.StatusBadRequest},
		{models.ErrNotFound, http.StatusNotFound},
		{models.ErrProviderUnavailable, http.StatusBadGateway},
		{models.ErrStoreFailure, http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeServiceError(rec, tt.err)
		assert.Equal(t, tt.code, rec.Code, "%v", tt.err)
	}
}

func TestValidateTicker(t *testing.T) {
	valid := map[string]string{"aapl": "AAPL", " bhp.au ": "BHP.AU", "BRK-B": "BRK-B"}
	for in, want := range valid {
		got, msg := validateTicker(in)
		assert.Empty(t, msg, in)
		assert.Equal(t, want, got)
	}
	for _, in := range []string{"", "../etc/passwd", "A B", "AAPL;DROP", "X..Y"} {
		_, msg := validateTicker(in)
		assert.NotEmpty(t, msg, "%q should be rejected", in)
	}
}

// --- Handlers with a mock service ---

func TestHandlePositions_AddValidation(t *testing.T) {
	svc := &mockPortfolioService{addErr: models.ErrInvalidInput}
	srv := newTestServer(svc)

	rec := do(t, srv, http.MethodPost, "/api/positions", jsonBody(t, map[string]interface{}{"ticker": "AAPL", "quantity": 0, "price": 1}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/positions", bytes.NewBufferString("{not json"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid JSON")

	rec = do(t, srv, http.MethodPut, "/api/positions", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleReport_PeriodParam(t *testing.T) {
	svc := &mockPortfolioService{}
	srv := newTestServer(svc)

	rec := do(t, srv, http.MethodGet, "/api/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.Period1M, svc.lastPeriod)

	rec = do(t, srv, http.MethodGet, "/api/report?period=1y", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.Period1Y, svc.lastPeriod)

	var r models.PortfolioReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, models.NotAvailable, r.TopPerformer.Ticker)

	rec = do(t, srv, http.MethodGet, "/api/report?period=fortnight", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleQuote(t *testing.T) {
	d := time.Date(2025, 3, 28, 0, 0, 0, 0, time.UTC)
	svc := &mockPortfolioService{quoteSeries: &models.PriceSeries{
		Ticker: "MSFT", Period: models.Period5D,
		Points: []models.PricePoint{{Date: d, Close: 412.5}, {Date: d.AddDate(0, 0, -1), Close: 400}},
	}}
	srv := newTestServer(svc)

	rec := do(t, srv, http.MethodGet, "/api/quote/msft", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.Period5D, svc.lastPeriod)

	var resp struct {
		Ticker    string              `json:"ticker"`
		LastClose float64             `json:"last_close"`
		Points    []models.PricePoint `json:"points"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 412.5, resp.LastClose)
	require.Len(t, resp.Points, 2)
	assert.Equal(t, 400.0, resp.Points[0].Close)

	svc.quoteSeries = nil
	rec = do(t, srv, http.MethodGet, "/api/quote/NOPE", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/quote/", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleReportLatest_NotReady(t *testing.T) {
	srv := newTestServer(&mockPortfolioService{})
	rec := do(t, srv, http.MethodGet, "/api/report/latest", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	at := time.Date(2025, 3, 28, 18, 0, 0, 0, time.UTC)
	srv.setLatest(models.NewEmptyReport(models.Period1M, at), at)
	rec = do(t, srv, http.MethodGet, "/api/report/latest", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, at.Format(http.TimeFormat), rec.Header().Get("Last-Modified"))
}

// --- End to end over a real app ---

func newAppServer(t *testing.T) *Server {
	t.Helper()
	eodhd := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/eod/AAPL.US":
			w.Write([]byte(`[{"date":"2025-03-27","close":100},{"date":"2025-03-28","close":110}]`))
		case "/eod/MSFT.US":
			w.Write([]byte(`[{"date":"2025-03-27","close":50},{"date":"2025-03-28","close":40}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(eodhd.Close)

	cfg := common.NewDefaultConfig()
	cfg.Storage.Backend = "file"
	cfg.Storage.Path = filepath.Join(t.TempDir(), "portfolio.json")
	cfg.Storage.Versions = 0
	cfg.Cache.Backend = "none"
	cfg.Clients.EODHD.BaseURL = eodhd.URL
	cfg.Clients.EODHD.APIKey = "test-key"

	a, err := app.NewAppWithConfig(context.Background(), cfg, common.NewSilentLogger())
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return NewServer(a)
}

func TestLedgerLifecycleOverHTTP(t *testing.T) {
	srv := newAppServer(t)

	rec := do(t, srv, http.MethodPost, "/api/positions", jsonBody(t, map[string]interface{}{"ticker": "aapl", "quantity": 10, "price": 100}))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, srv, http.MethodPost, "/api/positions", jsonBody(t, map[string]interface{}{"ticker": "AAPL", "quantity": 10, "price": 200}))
	require.Equal(t, http.StatusCreated, rec.Code)

	var p models.Position
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, models.Position{Ticker: "AAPL", Quantity: 20, AverageCost: 150}, p)

	rec = do(t, srv, http.MethodGet, "/api/positions/aapl", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/positions/AAPL/reduce", jsonBody(t, map[string]int{"quantity": 5}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"position":{"ticker":"AAPL","quantity":15,"average_cost":150},"removed":false}`, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/api/positions/MSFT/reduce", jsonBody(t, map[string]int{"quantity": 1}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/positions/AAPL", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/positions/AAPL", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/positions/AAPL/history", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportOverHTTP(t *testing.T) {
	srv := newAppServer(t)

	for _, body := range []map[string]interface{}{
		{"ticker": "AAPL", "quantity": 1, "price": 90},
		{"ticker": "MSFT", "quantity": 2, "price": 45},
		{"ticker": "GONE", "quantity": 3, "price": 1},
	} {
		rec := do(t, srv, http.MethodPost, "/api/positions", jsonBody(t, body))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := do(t, srv, http.MethodGet, "/api/report?period=5d", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var r models.PortfolioReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	// d1 = 100 + 2*50 = 200, d2 = 110 + 2*40 = 190
	assert.InDelta(t, 190.0, r.CurrentValue, 1e-9)
	assert.InDelta(t, -10.0, r.DailyChange, 1e-9)
	assert.Equal(t, "AAPL", r.TopPerformer.Ticker)
	assert.Equal(t, "MSFT", r.FlopPerformer.Ticker)
	// cost basis 90 + 90 + 3 = 183 includes the skipped position
	assert.InDelta(t, 183.0, r.TotalCostBasis, 1e-9)
	require.Len(t, r.Skipped, 1)
	assert.Equal(t, "GONE", r.Skipped[0].Ticker)
}

func TestFollowReports(t *testing.T) {
	srv := newAppServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := srv.app.ReportWorker()
	done := make(chan struct{})
	go func() {
		srv.FollowReports(ctx)
		close(done)
	}()

	worker.Request(models.Period1M)

	require.Eventually(t, func() bool {
		r, _ := srv.latestReport()
		return r != nil
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("FollowReports did not stop")
	}
}
