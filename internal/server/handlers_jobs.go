package server

import (
	"net/http"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/bobmcallan/folio/internal/services/jobmanager"
)

// handleJobs handles GET (recent jobs) and POST (enqueue) on /api/jobs.
// Listing is scoped to the caller unless they are an admin.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.app.JobManager == nil {
		WriteError(w, http.StatusServiceUnavailable, "Job manager not available")
		return
	}
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		jobs, err := s.app.JobManager.ListJobs(ctx, models.JobFilter{
			PortfolioID: q.Get("portfolio_id"),
			Status:      q.Get("status"),
			Limit:       queryInt(r, "limit", 50),
		})
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		if jobs == nil {
			jobs = []*models.Job{}
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
	case http.MethodPost:
		var body struct {
			JobType     string `json:"job_type"`
			PortfolioID string `json:"portfolio_id"`
		}
		if !DecodeJSON(w, r, &body) {
			return
		}
		if body.PortfolioID != "" && !s.authorizeWrite(w, r, body.PortfolioID) {
			return
		}
		s.enqueue(w, r, body.JobType, body.PortfolioID)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// enqueue queues a job for the caller and answers 202 with the job.
func (s *Server) enqueue(w http.ResponseWriter, r *http.Request, jobType, portfolioID string) {
	if s.app.JobManager == nil {
		WriteError(w, http.StatusServiceUnavailable, "Job manager not available")
		return
	}
	job, err := s.app.JobManager.Enqueue(r.Context(), jobType, portfolioID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, job)
}

// handleJobsWS upgrades GET /api/jobs/ws to a websocket streaming job
// events. ?portfolio_id= narrows the stream to one readable portfolio.
func (s *Server) handleJobsWS(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if s.app.JobManager == nil {
		WriteError(w, http.StatusServiceUnavailable, "Job manager not available")
		return
	}
	ctx := r.Context()

	sub := jobmanager.Subscription{
		OwnerID:     common.ResolveUserID(ctx),
		PortfolioID: r.URL.Query().Get("portfolio_id"),
		All:         common.IsAdmin(ctx),
	}
	if sub.PortfolioID != "" && !sub.All {
		if _, err := s.app.PortfolioService.CheckAccess(ctx, sub.PortfolioID, false); err != nil {
			WriteServiceError(w, err)
			return
		}
	}
	s.app.JobManager.Events().Serve(w, r, sub)
}
