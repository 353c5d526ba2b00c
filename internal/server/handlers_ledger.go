package server

import (
	"net/http"

	"github.com/bobmcallan/folio/internal/models"
)

// authorizeWrite confirms the caller may modify the portfolio. Ledger
// operations themselves are access-agnostic.
func (s *Server) authorizeWrite(w http.ResponseWriter, r *http.Request, portfolioID string) bool {
	if _, err := s.app.PortfolioService.CheckAccess(r.Context(), portfolioID, true); err != nil {
		WriteServiceError(w, err)
		return false
	}
	return true
}

// handlePositions handles GET (list, ?status=open|closed) and POST (open)
// on /api/portfolios/{id}/positions.
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request, portfolioID string) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		status := models.PositionStatus(r.URL.Query().Get("status"))
		positions, err := s.app.PortfolioService.ListPositions(ctx, portfolioID, status)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		if positions == nil {
			positions = []*models.Position{}
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"positions": positions})
	case http.MethodPost:
		var req models.OpenPositionRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		req.PortfolioID = portfolioID
		req.SuggestionID = ""
		if !s.authorizeWrite(w, r, portfolioID) {
			return
		}
		res, err := s.app.LedgerService.OpenPosition(ctx, req)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, res)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handlePosition handles DELETE on /api/portfolios/{id}/positions/{positionID}.
func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request, portfolioID, positionID string) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}
	if !s.authorizeWrite(w, r, portfolioID) {
		return
	}
	if err := s.app.LedgerService.DeletePosition(r.Context(), portfolioID, positionID); err != nil {
		WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClosePosition handles POST /api/portfolios/{id}/positions/{positionID}/close.
// Omitting quantity closes the full remaining quantity.
func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request, portfolioID, positionID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req models.ClosePositionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	req.PortfolioID = portfolioID
	req.PositionID = positionID
	req.SuggestionID = ""
	if !s.authorizeWrite(w, r, portfolioID) {
		return
	}
	res, err := s.app.LedgerService.ClosePosition(r.Context(), req)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleRecalculateCash(w http.ResponseWriter, r *http.Request, portfolioID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if !s.authorizeWrite(w, r, portfolioID) {
		return
	}
	cash, err := s.app.LedgerService.RecalculateCashBalance(r.Context(), portfolioID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"portfolio_id": portfolioID, "cash_balance": cash})
}

func (s *Server) handleRecalculateTotals(w http.ResponseWriter, r *http.Request, portfolioID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if !s.authorizeWrite(w, r, portfolioID) {
		return
	}
	totals, err := s.app.LedgerService.UpdatePortfolioTotals(r.Context(), portfolioID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, totals)
}

// handleRecover handles POST /api/portfolios/{id}/recover. With ?async=true
// the recovery is queued as a reconcile job instead of run inline.
func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request, portfolioID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if !s.authorizeWrite(w, r, portfolioID) {
		return
	}
	if queryBool(r, "async") {
		s.enqueue(w, r, models.JobTypeReconcilePortfolio, portfolioID)
		return
	}
	report, err := s.app.LedgerService.RecoverPortfolio(r.Context(), portfolioID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}
