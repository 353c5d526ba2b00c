package jobmanager

import (
	"context"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

// SweepIncomplete queues a reconcile job for every portfolio with unfinished
// journal entries. Portfolios that already have one pending are skipped.
func (jm *JobManager) SweepIncomplete(ctx context.Context) (int, error) {
	ids, err := jm.storage.OperationStore().PortfoliosWithIncomplete(ctx)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	ctx = common.SystemContext(ctx)
	queued := 0
	for _, id := range ids {
		added, err := jm.EnqueueIfNeeded(ctx, models.JobTypeReconcilePortfolio, id)
		if err != nil {
			jm.logger.Warn().Err(err).Str("portfolio", id).Msg("Sweep: failed to queue reconcile job")
			continue
		}
		if added {
			queued++
		}
	}

	jm.logger.Info().Int("portfolios", len(ids)).Int("queued", queued).Msg("Sweep: reconcile jobs queued")
	return queued, nil
}

// QueuePriceRefresh queues a global price refresh unless one is pending.
func (jm *JobManager) QueuePriceRefresh(ctx context.Context) (bool, error) {
	ctx = common.SystemContext(ctx)
	return jm.EnqueueIfNeeded(ctx, models.JobTypeRefreshPrices, "")
}

// Cleanup purges finished jobs and finished journal entries older than
// retention.
func (jm *JobManager) Cleanup(ctx context.Context, retention time.Duration) {
	cutoff := time.Now().Add(-retention)

	jobs, err := jm.storage.JobQueueStore().PurgeCompleted(ctx, cutoff)
	if err != nil {
		jm.logger.Warn().Err(err).Msg("Cleanup: failed to purge jobs")
	}
	ops, err := jm.storage.OperationStore().PurgeFinished(ctx, cutoff)
	if err != nil {
		jm.logger.Warn().Err(err).Msg("Cleanup: failed to purge journal")
	}

	if jobs > 0 || ops > 0 {
		jm.logger.Info().Int("jobs", jobs).Int("operations", ops).Msg("Cleanup: purged finished records")
	}
}
