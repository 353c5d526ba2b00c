package ledger

import (
	"context"
	"fmt"

	"github.com/bobmcallan/folio/internal/models"
	"github.com/bobmcallan/folio/internal/pnl"
)

func setTotals(p *models.Portfolio, t models.PortfolioTotals) {
	p.TotalValue = t.TotalValue
	p.TotalGainLoss = t.TotalGainLoss
	p.TotalGainLossPercent = t.TotalGainLossPercent
}

// RecalculateCashBalance replays every trade of the portfolio from its
// initial balance and stores the result. This is the authoritative repair
// for any drift in the incrementally maintained balance.
func (s *Service) RecalculateCashBalance(ctx context.Context, portfolioID string) (float64, error) {
	ctx, unlock, err := s.lock(ctx, portfolioID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	p, err := s.getPortfolio(ctx, portfolioID)
	if err != nil {
		return 0, err
	}
	cash, err := s.replayCash(ctx, p)
	if err != nil {
		return 0, err
	}

	previous := p.CashBalance
	p.CashBalance = cash
	p.UpdatedAt = s.now()
	if err := s.storage.PortfolioStore().Save(ctx, p); err != nil {
		return 0, fmt.Errorf("failed to save cash balance: %w", err)
	}

	s.logger.Info().
		Str("portfolio", portfolioID).
		Float64("previous", previous).
		Float64("cash", cash).
		Msg("Cash balance recalculated")
	return cash, nil
}

// UpdatePortfolioTotals recomputes total value and gain/loss from the stored
// positions.
func (s *Service) UpdatePortfolioTotals(ctx context.Context, portfolioID string) (*models.PortfolioTotals, error) {
	ctx, unlock, err := s.lock(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := s.getPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	positions, err := s.storage.PositionStore().ListByPortfolio(ctx, portfolioID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}

	totals := pnl.Totals(positions)
	setTotals(p, totals)
	p.UpdatedAt = s.now()
	if err := s.storage.PortfolioStore().Save(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save totals: %w", err)
	}

	s.logger.Debug().
		Str("portfolio", portfolioID).
		Float64("total_value", totals.TotalValue).
		Float64("total_gain_loss", totals.TotalGainLoss).
		Msg("Portfolio totals updated")
	return &totals, nil
}

// RecoverPortfolio finishes every unfinished journal entry of the portfolio
// and then recomputes cash and totals from scratch. Entries whose first
// write never landed are abandoned. An entry that fails again is reported
// and left for the next run.
func (s *Service) RecoverPortfolio(ctx context.Context, portfolioID string) (*models.RecoveryReport, error) {
	ctx, unlock, err := s.lock(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := s.getPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	report := &models.RecoveryReport{
		PortfolioID: portfolioID,
		Resumed:     []string{},
		Abandoned:   []string{},
		CashBefore:  p.CashBalance,
	}

	ops, err := s.storage.OperationStore().ListIncomplete(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list incomplete operations: %w", err)
	}

	for _, op := range ops {
		if op.Stage == models.StageStarted {
			landed, err := s.firstWriteLanded(ctx, op)
			if err != nil {
				s.logger.Warn().Err(err).Str("op", op.ID).Msg("Could not probe operation")
				report.Failed = append(report.Failed, op.ID)
				continue
			}
			if !landed {
				s.abandon(ctx, op, nil)
				report.Abandoned = append(report.Abandoned, op.ID)
				continue
			}
		}

		if err := s.execute(ctx, op, true); err != nil {
			report.Failed = append(report.Failed, op.ID)
			continue
		}
		report.Resumed = append(report.Resumed, op.ID)
	}

	totals, err := s.reconcile(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	report.CashAfter = totals.cash
	report.Totals = totals.PortfolioTotals
	report.RecoveredAt = s.now()

	s.logger.Info().
		Str("portfolio", portfolioID).
		Int("resumed", len(report.Resumed)).
		Int("abandoned", len(report.Abandoned)).
		Int("failed", len(report.Failed)).
		Float64("cash_before", report.CashBefore).
		Float64("cash_after", report.CashAfter).
		Msg("Portfolio recovered")
	return report, nil
}

type reconciled struct {
	models.PortfolioTotals
	cash float64
}

// reconcile replays cash and recomputes totals in one portfolio write.
func (s *Service) reconcile(ctx context.Context, portfolioID string) (*reconciled, error) {
	p, err := s.getPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	cash, err := s.replayCash(ctx, p)
	if err != nil {
		return nil, err
	}
	positions, err := s.storage.PositionStore().ListByPortfolio(ctx, portfolioID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}

	totals := pnl.Totals(positions)
	p.CashBalance = cash
	setTotals(p, totals)
	p.UpdatedAt = s.now()
	if err := s.storage.PortfolioStore().Save(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save portfolio: %w", err)
	}
	return &reconciled{PortfolioTotals: totals, cash: cash}, nil
}

func (s *Service) replayCash(ctx context.Context, p *models.Portfolio) (float64, error) {
	trades, err := s.storage.TradeStore().ListByPortfolio(ctx, p.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list trades: %w", err)
	}
	cash, err := pnl.ReplayCash(p.InitialCashBalance, trades)
	if err != nil {
		return 0, fmt.Errorf("failed to replay cash: %w", err)
	}
	return cash, nil
}
