// Package pnl holds the pure ledger arithmetic: gain/loss, cash deltas,
// cash replay and portfolio totals.
//
// Inputs and outputs are float64; arithmetic is carried out in decimal so
// that sums over many trades do not drift.
package pnl

import (
	"errors"
	"fmt"

	"github.com/bobmcallan/folio/internal/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func nonNegative(name string, v float64) error {
	if v < 0 {
		return fmt.Errorf("%s must not be negative (got %v): %w", name, v, models.ErrInvalidArgument)
	}
	return nil
}

// GainLoss returns (evalPrice - openPrice) * quantity.
func GainLoss(openPrice, evalPrice, quantity float64) (float64, error) {
	if err := nonNegative("open price", openPrice); err != nil {
		return 0, err
	}
	if err := nonNegative("price", evalPrice); err != nil {
		return 0, err
	}
	if err := nonNegative("quantity", quantity); err != nil {
		return 0, err
	}
	return d(evalPrice).Sub(d(openPrice)).Mul(d(quantity)).InexactFloat64(), nil
}

// GainLossPercent returns (evalPrice - openPrice) / openPrice * 100.
// A zero open price yields 0 together with models.ErrDivisionByZero.
func GainLossPercent(openPrice, evalPrice float64) (float64, error) {
	if err := nonNegative("open price", openPrice); err != nil {
		return 0, err
	}
	if err := nonNegative("price", evalPrice); err != nil {
		return 0, err
	}
	if openPrice == 0 {
		return 0, fmt.Errorf("gain/loss percent with zero open price: %w", models.ErrDivisionByZero)
	}
	open := d(openPrice)
	return d(evalPrice).Sub(open).Div(open).Mul(hundred).InexactFloat64(), nil
}

// TradeCashDelta is the signed cash effect of a trade: a buy costs
// price*quantity + fee, a sell returns price*quantity - fee.
func TradeCashDelta(t models.TradeType, price, quantity, fee float64) (float64, error) {
	delta, err := cashDelta(t, price, quantity, fee)
	if err != nil {
		return 0, err
	}
	return delta.InexactFloat64(), nil
}

func cashDelta(t models.TradeType, price, quantity, fee float64) (decimal.Decimal, error) {
	if err := nonNegative("price", price); err != nil {
		return decimal.Zero, err
	}
	if err := nonNegative("quantity", quantity); err != nil {
		return decimal.Zero, err
	}
	if err := nonNegative("fee", fee); err != nil {
		return decimal.Zero, err
	}
	gross := d(price).Mul(d(quantity))
	switch t {
	case models.TradeBuyToOpen:
		return gross.Add(d(fee)).Neg(), nil
	case models.TradeSellToClose:
		return gross.Sub(d(fee)), nil
	default:
		return decimal.Zero, fmt.Errorf("unknown trade type %q: %w", t, models.ErrInvalidArgument)
	}
}

// ReplayCash folds every trade's cash delta onto the initial balance.
func ReplayCash(initial float64, trades []*models.Trade) (float64, error) {
	cash := d(initial)
	for _, t := range trades {
		delta, err := cashDelta(t.Type, t.Price, t.Quantity, t.Fee)
		if err != nil {
			return 0, fmt.Errorf("trade %s: %w", t.ID, err)
		}
		cash = cash.Add(delta)
	}
	return cash.InexactFloat64(), nil
}

// AddCash adds a delta to a balance in decimal.
func AddCash(balance, delta float64) float64 {
	return d(balance).Add(d(delta)).InexactFloat64()
}

// Totals sums stored value and gain/loss over every position. The percent is
// taken over total cost basis and is 0 when nothing was invested.
func Totals(positions []*models.Position) models.PortfolioTotals {
	value := decimal.Zero
	gain := decimal.Zero
	invested := decimal.Zero
	for _, p := range positions {
		value = value.Add(d(p.TotalValue))
		gain = gain.Add(d(p.GainLoss))
		invested = invested.Add(d(p.OpenPrice).Mul(d(p.Quantity)))
	}

	totals := models.PortfolioTotals{
		TotalValue:    value.InexactFloat64(),
		TotalGainLoss: gain.InexactFloat64(),
	}
	if !invested.IsZero() {
		totals.TotalGainLossPercent = gain.Div(invested).Mul(hundred).InexactFloat64()
	}
	return totals
}

// Revalue recomputes a position's value fields at its valuation price:
// the close price for a closed position, otherwise the current price
// falling back to the open price.
func Revalue(p *models.Position) error {
	price := p.ValuationPrice()
	if err := nonNegative("quantity", p.Quantity); err != nil {
		return err
	}
	gl, err := GainLoss(p.OpenPrice, price, p.Quantity)
	if err != nil {
		return err
	}
	pct, err := GainLossPercent(p.OpenPrice, price)
	if err != nil && !errors.Is(err, models.ErrDivisionByZero) {
		return err
	}
	p.TotalValue = d(p.Quantity).Mul(d(price)).InexactFloat64()
	p.GainLoss = gl
	p.GainLossPercent = pct
	return nil
}
