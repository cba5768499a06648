package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bobmcallan/tally/internal/models"
)

// defaultQuotePeriod is used when /api/quote has no ?period=.
const defaultQuotePeriod = models.Period5D

// --- Ledger handlers ---

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"positions": s.app.PortfolioService.GetPositions(),
		})
	case http.MethodPost:
		var req struct {
			Ticker   string  `json:"ticker"`
			Quantity int64   `json:"quantity"`
			Price    float64 `json:"price"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}
		p, err := s.app.PortfolioService.AddPosition(r.Context(), req.Ticker, req.Quantity, req.Price)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, p)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request, ticker string) {
	switch r.Method {
	case http.MethodGet:
		for _, p := range s.app.PortfolioService.GetPositions() {
			if p.Ticker == ticker {
				WriteJSON(w, http.StatusOK, p)
				return
			}
		}
		WriteErrorWithCode(w, http.StatusNotFound, "position not found: "+ticker, "not_found")
	case http.MethodDelete:
		if err := s.app.PortfolioService.RemovePosition(r.Context(), ticker); err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"ticker": ticker, "removed": true})
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (s *Server) handlePositionReduce(w http.ResponseWriter, r *http.Request, ticker string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Quantity int64 `json:"quantity"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	p, removed, err := s.app.PortfolioService.ReducePosition(r.Context(), ticker, req.Quantity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"position": p,
		"removed":  removed,
	})
}

// --- Report handlers ---

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	period, err := queryPeriod(r, s.app.DefaultPeriod)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	report, err := s.app.PortfolioService.BuildReport(ctx, period)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// handleReportLatest returns the most recent scheduled refresh, if any.
func (s *Server) handleReportLatest(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	report, at := s.latestReport()
	if report == nil {
		WriteErrorWithCode(w, http.StatusNotFound, "no report has been refreshed yet", "not_ready")
		return
	}
	w.Header().Set("Last-Modified", at.UTC().Format(http.TimeFormat))
	WriteJSON(w, http.StatusOK, report)
}

// --- Market handlers ---

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	ticker, errMsg := validateTicker(strings.TrimPrefix(r.URL.Path, "/api/quote/"))
	if errMsg != "" {
		WriteError(w, http.StatusBadRequest, errMsg)
		return
	}

	period, err := queryPeriod(r, defaultQuotePeriod)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	series, err := s.app.PortfolioService.Quote(r.Context(), ticker, period)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := map[string]interface{}{
		"ticker": series.Ticker,
		"period": series.Period,
		"points": series.Sorted(),
	}
	if last, ok := series.Last(); ok {
		resp["last_close"] = last.Close
		resp["last_date"] = last.Date
	}
	WriteJSON(w, http.StatusOK, resp)
}
