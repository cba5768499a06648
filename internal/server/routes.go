package server

import (
	"net/http"
	"strings"

	"github.com/bobmcallan/tally/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)

	// Ledger
	mux.HandleFunc("/api/positions/", s.routePositions)
	mux.HandleFunc("/api/positions", s.handlePositions)

	// Reports
	mux.HandleFunc("/api/report/latest", s.handleReportLatest)
	mux.HandleFunc("/api/report", s.handleReport)

	// Market
	mux.HandleFunc("/api/quote/", s.handleQuote)
}

// routePositions dispatches /api/positions/{ticker}[/reduce].
func (s *Server) routePositions(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/positions/")
	if path == "" {
		s.handlePositions(w, r)
		return
	}

	parts := strings.SplitN(path, "/", 2)
	ticker, errMsg := validateTicker(parts[0])
	if errMsg != "" {
		WriteError(w, http.StatusBadRequest, errMsg)
		return
	}

	subpath := ""
	if len(parts) > 1 {
		subpath = parts[1]
	}

	switch subpath {
	case "":
		s.handlePosition(w, r, ticker)
	case "reduce":
		s.handlePositionReduce(w, r, ticker)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"full":    common.GetFullVersion(),
	})
}
