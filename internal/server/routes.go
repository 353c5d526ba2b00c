package server

import (
	"net/http"
	"time"

	"github.com/bobmcallan/folio/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Portfolios and their ledgers
	mux.HandleFunc("/api/portfolios/", s.routePortfolios)
	mux.HandleFunc("/api/portfolios", s.handlePortfolioRoot)

	// Suggested trades by id
	mux.HandleFunc("/api/suggestions/", s.routeSuggestions)

	// Prices
	mux.HandleFunc("/api/quotes/", s.handleQuote)

	// Jobs
	mux.HandleFunc("/api/jobs/ws", s.handleJobsWS)
	mux.HandleFunc("/api/jobs", s.handleJobs)
}

// routePortfolios dispatches /api/portfolios/{id}/* to the appropriate handler.
func (s *Server) routePortfolios(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r, "/api/portfolios/")
	if len(parts) == 0 {
		s.handlePortfolioRoot(w, r)
		return
	}
	id := parts[0]

	switch len(parts) {
	case 1:
		s.handlePortfolio(w, r, id)
		return
	case 2:
		switch parts[1] {
		case "positions":
			s.handlePositions(w, r, id)
		case "trades":
			s.handleTrades(w, r, id)
		case "valuation":
			s.handleValuation(w, r, id)
		case "advice":
			s.handleAdvice(w, r, id)
		case "recover":
			s.handleRecover(w, r, id)
		case "suggestions":
			s.handlePortfolioSuggestions(w, r, id)
		default:
			WriteError(w, http.StatusNotFound, "Not found")
		}
		return
	case 3:
		switch {
		case parts[1] == "positions":
			s.handlePosition(w, r, id, parts[2])
		case parts[1] == "cash" && parts[2] == "recalculate":
			s.handleRecalculateCash(w, r, id)
		case parts[1] == "totals" && parts[2] == "recalculate":
			s.handleRecalculateTotals(w, r, id)
		case parts[1] == "suggestions" && parts[2] == "generate":
			s.handleGenerateSuggestions(w, r, id, false)
		case parts[1] == "suggestions" && parts[2] == "regenerate":
			s.handleGenerateSuggestions(w, r, id, true)
		default:
			WriteError(w, http.StatusNotFound, "Not found")
		}
		return
	case 4:
		if parts[1] == "positions" && parts[3] == "close" {
			s.handleClosePosition(w, r, id, parts[2])
			return
		}
	}
	WriteError(w, http.StatusNotFound, "Not found")
}

// routeSuggestions dispatches /api/suggestions/{id}/{action}.
func (s *Server) routeSuggestions(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r, "/api/suggestions/")
	switch len(parts) {
	case 1:
		s.handleSuggestionGet(w, r, parts[0])
	case 2:
		switch parts[1] {
		case "convert":
			s.handleSuggestionConvert(w, r, parts[0])
		case "dismiss":
			s.handleSuggestionDismiss(w, r, parts[0])
		default:
			WriteError(w, http.StatusNotFound, "Not found")
		}
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
	WriteJSON(w, http.StatusOK, common.VersionInfo())
}

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")
	WriteJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})

	if s.shutdownChan != nil {
		go func() {
			// let the response flush first
			time.Sleep(100 * time.Millisecond)
			select {
			case s.shutdownChan <- struct{}{}:
			default:
			}
		}()
	}
}
