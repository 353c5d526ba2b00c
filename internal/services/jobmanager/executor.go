package jobmanager

import (
	"context"
	"fmt"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

// executeJob dispatches a job to the service that performs it. The job runs
// on behalf of the user that queued it.
func (jm *JobManager) executeJob(ctx context.Context, job *models.Job) error {
	ctx = common.WithUserContext(ctx, &common.UserContext{UserID: job.OwnerID})

	switch job.JobType {
	case models.JobTypeGenerateSuggestions:
		out, err := jm.suggestions.GenerateSuggestions(ctx, job.PortfolioID)
		if err != nil {
			return err
		}
		jm.logger.Info().Str("portfolio", job.PortfolioID).Int("count", len(out)).Msg("Generated suggestions")
		return nil

	case models.JobTypeReconcilePortfolio:
		report, err := jm.ledger.RecoverPortfolio(ctx, job.PortfolioID)
		if err != nil {
			return err
		}
		if len(report.Failed) > 0 {
			return fmt.Errorf("%d journal entries of portfolio %s could not be resumed", len(report.Failed), job.PortfolioID)
		}
		return nil

	case models.JobTypeRefreshPrices:
		n, err := jm.quotes.RefreshHeld(ctx)
		if err != nil {
			return err
		}
		jm.logger.Debug().Int("symbols", n).Msg("Refreshed held prices")
		return nil

	default:
		return fmt.Errorf("unknown job type %q: %w", job.JobType, models.ErrInvalidArgument)
	}
}
