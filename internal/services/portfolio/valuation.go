package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/folio/internal/models"
	"github.com/shopspring/decimal"
)

// Valuation marks open positions to market. Live or last-known quotes are
// used where available, otherwise the stored current price. Nothing is
// written back; stored ledger fields only change through the ledger.
func (s *Service) Valuation(ctx context.Context, portfolioID string) (*models.PortfolioValuation, error) {
	p, err := s.CheckAccess(ctx, portfolioID, false)
	if err != nil {
		return nil, err
	}
	positions, err := s.storage.PositionStore().ListByPortfolio(ctx, portfolioID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}

	market := decimal.Zero
	unrealized := decimal.Zero
	realized := decimal.Zero
	out := &models.PortfolioValuation{
		PortfolioID: portfolioID,
		CashBalance: p.CashBalance,
		Positions:   []models.PositionValuation{},
	}

	for _, pos := range positions {
		if !pos.IsOpen() {
			realized = realized.Add(decimal.NewFromFloat(pos.GainLoss))
			continue
		}

		v := models.PositionValuation{
			PositionID:  pos.ID,
			Symbol:      pos.Symbol,
			Quantity:    pos.Quantity,
			OpenPrice:   pos.OpenPrice,
			MarketPrice: pos.ValuationPrice(),
		}
		if s.quotes != nil {
			if q, err := s.quotes.GetPrice(ctx, pos.Symbol); err == nil {
				v.MarketPrice = q.Price
				v.PriceAsOf = q.Timestamp
				v.Stale = q.Stale
				v.PriceAvailable = true
			} else {
				s.logger.Debug().Err(err).Str("symbol", pos.Symbol).Msg("No quote for valuation, using stored price")
			}
		}

		qty := decimal.NewFromFloat(pos.Quantity)
		price := decimal.NewFromFloat(v.MarketPrice)
		open := decimal.NewFromFloat(pos.OpenPrice)
		value := qty.Mul(price)
		gain := price.Sub(open).Mul(qty)

		v.MarketValue = value.InexactFloat64()
		v.GainLoss = gain.InexactFloat64()
		if !open.IsZero() {
			v.GainLossPct = price.Sub(open).Div(open).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}

		market = market.Add(value)
		unrealized = unrealized.Add(gain)
		out.Positions = append(out.Positions, v)
	}

	out.MarketValue = market.InexactFloat64()
	out.UnrealizedGain = unrealized.InexactFloat64()
	out.RealizedGain = realized.InexactFloat64()
	out.NetWorth = decimal.NewFromFloat(p.CashBalance).Add(market).InexactFloat64()
	out.ValuedAt = time.Now().UTC()
	return out, nil
}
