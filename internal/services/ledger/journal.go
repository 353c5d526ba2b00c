package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/bobmcallan/folio/internal/models"
	"github.com/bobmcallan/folio/internal/pnl"
)

// begin persists a fully planned operation before any ledger record is written.
func (s *Service) begin(ctx context.Context, op *models.LedgerOperation) error {
	if err := s.storage.OperationStore().Save(ctx, op); err != nil {
		return fmt.Errorf("failed to journal %s: %w", op.Kind, err)
	}
	return nil
}

// execute applies every remaining stage of op in order, journalling each
// stage once it has been applied. When recovering, the incremental cash step
// is skipped because the caller replays cash in full afterwards.
func (s *Service) execute(ctx context.Context, op *models.LedgerOperation, recovering bool) error {
	if !s.locks.Holds(ctx, op.PortfolioID) {
		return fmt.Errorf("operation %s run without the lock on portfolio %s", op.ID, op.PortfolioID)
	}
	for _, stage := range op.Remaining() {
		if err := s.applyStage(ctx, op, stage, recovering); err != nil {
			return s.fail(ctx, op, fmt.Errorf("%s: %w", stage, err))
		}

		op.Stage = stage
		op.UpdatedAt = s.now()
		if stage == models.StageCompleted {
			done := op.UpdatedAt
			op.CompletedAt = &done
			op.Error = ""
		}
		if err := s.storage.OperationStore().Save(ctx, op); err != nil {
			return s.fail(ctx, op, fmt.Errorf("journal %s: %w", stage, err))
		}
	}
	return nil
}

// applyStage performs the write of one stage. Every write sets absolute
// values planned in the journal, so applying a stage twice is harmless.
// The one exception is the incremental cash step, which only runs live.
func (s *Service) applyStage(ctx context.Context, op *models.LedgerOperation, stage models.OperationStage, recovering bool) error {
	switch stage {
	case models.StagePositionWritten:
		return s.storage.PositionStore().Save(ctx, op.Position)

	case models.StageSourceUpdated:
		return s.storage.PositionStore().Save(ctx, op.Source)

	case models.StageTradeWritten:
		return s.storage.TradeStore().Create(ctx, op.Trade)

	case models.StageCashApplied:
		if recovering {
			return nil
		}
		return s.applyCashDelta(ctx, op.PortfolioID, op.CashDelta)

	case models.StageSuggestionUpdated:
		return s.markSuggestionConverted(ctx, op)

	case models.StageTradesDeleted:
		for _, id := range op.TradeIDs {
			if err := s.storage.TradeStore().Delete(ctx, id); err != nil && !errors.Is(err, models.ErrNotFound) {
				return fmt.Errorf("trade %s: %w", id, err)
			}
		}
		return nil

	case models.StagePositionDeleted:
		if err := s.storage.PositionStore().Delete(ctx, op.PositionID); err != nil && !errors.Is(err, models.ErrNotFound) {
			return err
		}
		return nil

	case models.StageCompleted:
		if op.Kind == models.OpDeletePosition && !recovering {
			_, err := s.reconcile(ctx, op.PortfolioID)
			return err
		}
		return nil
	}
	return fmt.Errorf("unknown stage %q", stage)
}

// applyCashDelta adds one event's cash effect and refreshes the totals in
// the same portfolio write.
func (s *Service) applyCashDelta(ctx context.Context, portfolioID string, delta float64) error {
	p, err := s.getPortfolio(ctx, portfolioID)
	if err != nil {
		return err
	}
	positions, err := s.storage.PositionStore().ListByPortfolio(ctx, portfolioID, "")
	if err != nil {
		return fmt.Errorf("failed to list positions: %w", err)
	}

	p.CashBalance = pnl.AddCash(p.CashBalance, delta)
	setTotals(p, pnl.Totals(positions))
	p.UpdatedAt = s.now()
	return s.storage.PortfolioStore().Save(ctx, p)
}

func (s *Service) markSuggestionConverted(ctx context.Context, op *models.LedgerOperation) error {
	sug, err := s.storage.SuggestionStore().Get(ctx, op.SuggestionID)
	if err != nil {
		return err
	}
	if sug.Status == models.SuggestionConverted && sug.ConvertedTradeID == op.Trade.ID {
		return nil
	}
	if sug.Status != models.SuggestionPending {
		// The ledger records stand. A suggestion settled elsewhere keeps its
		// outcome and the entry still completes.
		s.logger.Warn().
			Str("op", op.ID).
			Str("suggestion", sug.ID).
			Str("status", string(sug.Status)).
			Str("converted_trade", sug.ConvertedTradeID).
			Msg("Suggestion already settled, leaving it unchanged")
		return nil
	}

	at := op.Trade.CreatedAt
	sug.Status = models.SuggestionConverted
	sug.ConvertedPositionID = op.Position.ID
	sug.ConvertedTradeID = op.Trade.ID
	sug.ConvertedAt = &at
	sug.UpdatedAt = s.now()
	return s.storage.SuggestionStore().Save(ctx, sug)
}

// fail settles the journal after a stage error. If nothing was written the
// operation is abandoned and the cause returned as is; otherwise the caller
// gets a PartialFailureError naming the operation to recover.
func (s *Service) fail(ctx context.Context, op *models.LedgerOperation, cause error) error {
	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()

	if op.Stage == models.StageStarted {
		landed, err := s.firstWriteLanded(bctx, op)
		if err == nil && !landed {
			s.abandon(bctx, op, cause)
			return cause
		}
	}

	op.Error = cause.Error()
	op.UpdatedAt = s.now()
	if err := s.storage.OperationStore().Save(bctx, op); err != nil {
		s.logger.Warn().Err(err).Str("op", op.ID).Msg("Failed to record operation error")
	}

	s.logger.Error().
		Err(cause).
		Str("portfolio", op.PortfolioID).
		Str("op", op.ID).
		Str("kind", string(op.Kind)).
		Str("stage", string(op.Stage)).
		Msg("Ledger operation partially applied")

	return &models.PartialFailureError{OperationID: op.ID, Stage: op.Stage, Err: cause}
}

func (s *Service) abandon(ctx context.Context, op *models.LedgerOperation, cause error) {
	op.Stage = models.StageAbandoned
	op.UpdatedAt = s.now()
	if cause != nil {
		op.Error = cause.Error()
	}
	if err := s.storage.OperationStore().Save(ctx, op); err != nil {
		s.logger.Warn().Err(err).Str("op", op.ID).Msg("Failed to mark operation abandoned")
	}
}

// firstWriteLanded reports whether the first write of an operation still at
// the started stage reached storage.
func (s *Service) firstWriteLanded(ctx context.Context, op *models.LedgerOperation) (bool, error) {
	switch op.Kind {
	case models.OpOpenPosition:
		_, err := s.storage.PositionStore().Get(ctx, op.Position.ID)
		return found(err)

	case models.OpClosePosition:
		pos, err := s.storage.PositionStore().Get(ctx, op.Position.ID)
		if ok, err := found(err); !ok || err != nil {
			return ok, err
		}
		// A full close rewrites the original, so it only counts once closed.
		return op.Source != nil || !pos.IsOpen(), nil

	case models.OpDeletePosition:
		// Any record already gone means the delete started landing.
		if _, err := s.storage.PositionStore().Get(ctx, op.PositionID); err != nil {
			ok, err := found(err)
			return !ok && err == nil, err
		}
		for _, id := range op.TradeIDs {
			if _, err := s.storage.TradeStore().Get(ctx, id); err != nil {
				ok, err := found(err)
				if err != nil {
					return false, err
				}
				if !ok {
					return true, nil
				}
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("unknown operation kind %q", op.Kind)
}

// found turns a Get error into existence.
func found(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	return false, err
}
