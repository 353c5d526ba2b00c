package server

import (
	"net/http"

	"github.com/bobmcallan/folio/internal/models"
)

// handlePortfolioSuggestions handles GET (list, ?status=) and POST (create)
// on /api/portfolios/{id}/suggestions.
func (s *Server) handlePortfolioSuggestions(w http.ResponseWriter, r *http.Request, portfolioID string) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		status := models.SuggestionStatus(r.URL.Query().Get("status"))
		suggestions, err := s.app.SuggestionService.ListSuggestions(ctx, portfolioID, status)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		if suggestions == nil {
			suggestions = []*models.SuggestedTrade{}
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions})
	case http.MethodPost:
		var in models.SuggestedTrade
		if !DecodeJSON(w, r, &in) {
			return
		}
		in.PortfolioID = portfolioID
		sug, err := s.app.SuggestionService.CreateSuggestion(ctx, &in)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, sug)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleGenerateSuggestions handles POST .../suggestions/generate and
// .../suggestions/regenerate. Generate is queued as a job unless ?sync=true
// is given or background jobs are disabled; regenerate always runs inline
// so the superseded suggestions and their replacements land together.
func (s *Server) handleGenerateSuggestions(w http.ResponseWriter, r *http.Request, portfolioID string, regenerate bool) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	async := s.app.JobManager != nil && s.app.Config.Jobs.Enabled && !queryBool(r, "sync")
	if async && !regenerate {
		if _, err := s.app.PortfolioService.CheckAccess(ctx, portfolioID, true); err != nil {
			WriteServiceError(w, err)
			return
		}
		s.enqueue(w, r, models.JobTypeGenerateSuggestions, portfolioID)
		return
	}

	var (
		suggestions []*models.SuggestedTrade
		err         error
	)
	if regenerate {
		suggestions, err = s.app.SuggestionService.RegenerateSuggestions(ctx, portfolioID)
	} else {
		suggestions, err = s.app.SuggestionService.GenerateSuggestions(ctx, portfolioID)
	}
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if suggestions == nil {
		suggestions = []*models.SuggestedTrade{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}

func (s *Server) handleSuggestionGet(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	sug, err := s.app.SuggestionService.GetSuggestion(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, sug)
}

// handleSuggestionConvert handles POST /api/suggestions/{id}/convert with
// optional overrides in the body.
func (s *Server) handleSuggestionConvert(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var overrides models.ConvertOverrides
	if !decodeOptionalJSON(w, r, &overrides) {
		return
	}
	res, err := s.app.SuggestionService.ConvertSuggestion(r.Context(), id, &overrides)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleSuggestionDismiss(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if !decodeOptionalJSON(w, r, &body) {
		return
	}
	if err := s.app.SuggestionService.DismissSuggestion(r.Context(), id, body.Reason); err != nil {
		WriteServiceError(w, err)
		return
	}
	sug, err := s.app.SuggestionService.GetSuggestion(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, sug)
}
