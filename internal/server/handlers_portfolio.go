package server

import (
	"net/http"

	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// handlePortfolioRoot handles GET (list own) and POST (create) on /api/portfolios.
func (s *Server) handlePortfolioRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		portfolios, err := s.app.PortfolioService.ListPortfolios(r.Context())
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		if portfolios == nil {
			portfolios = []*models.Portfolio{}
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"portfolios": portfolios})
	case http.MethodPost:
		var req interfaces.CreatePortfolioRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		p, err := s.app.PortfolioService.CreatePortfolio(r.Context(), req)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, p)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handlePortfolio handles GET, PATCH and DELETE on /api/portfolios/{id}.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		p, err := s.app.PortfolioService.GetPortfolio(ctx, id)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, p)
	case http.MethodPatch, http.MethodPut:
		var update models.PortfolioUpdate
		if !DecodeJSON(w, r, &update) {
			return
		}
		p, err := s.app.PortfolioService.UpdatePortfolio(ctx, id, update)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, p)
	case http.MethodDelete:
		if err := s.app.PortfolioService.DeletePortfolio(ctx, id); err != nil {
			WriteServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPatch, http.MethodPut, http.MethodDelete)
	}
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	trades, err := s.app.PortfolioService.ListTrades(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if trades == nil {
		trades = []*models.Trade{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"trades": trades})
}

func (s *Server) handleValuation(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	v, err := s.app.PortfolioService.Valuation(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, v)
}

func (s *Server) handleAdvice(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	advice, err := s.app.AdvisoryService.Advise(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, advice)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	parts := splitPath(r, "/api/quotes/")
	if len(parts) != 1 {
		WriteError(w, http.StatusBadRequest, "symbol is required in path")
		return
	}
	q, err := s.app.QuoteService.GetPrice(r.Context(), parts[0])
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, q)
}
