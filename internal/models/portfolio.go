// Package models defines data structures for Folio
package models

import "time"

// Portfolio is the top-level ledger owned by a user. Cash and the three
// aggregate totals are derived fields maintained by the ledger service.
type Portfolio struct {
	ID                   string    `json:"id"`
	OwnerID              string    `json:"owner_id"`
	Name                 string    `json:"name"`
	Description          string    `json:"description,omitempty"`
	Goal                 string    `json:"goal,omitempty"`
	Public               bool      `json:"public"`
	CashBalance          float64   `json:"cash_balance"`
	InitialCashBalance   float64   `json:"initial_cash_balance"`
	TotalValue           float64   `json:"total_value"`
	TotalGainLoss        float64   `json:"total_gain_loss"`
	TotalGainLossPercent float64   `json:"total_gain_loss_percent"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// PortfolioTotals is the result of an aggregate recompute.
type PortfolioTotals struct {
	TotalValue           float64 `json:"total_value"`
	TotalGainLoss        float64 `json:"total_gain_loss"`
	TotalGainLossPercent float64 `json:"total_gain_loss_percent"`
}

// PortfolioUpdate carries the user-editable fields of a portfolio.
// Nil fields are left unchanged.
type PortfolioUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Goal        *string `json:"goal,omitempty"`
	Public      *bool   `json:"public,omitempty"`
}

// PositionValuation is a mark-to-market view of one open position.
// It is computed on read and never written back.
type PositionValuation struct {
	PositionID     string    `json:"position_id"`
	Symbol         string    `json:"symbol"`
	Quantity       float64   `json:"quantity"`
	OpenPrice      float64   `json:"open_price"`
	MarketPrice    float64   `json:"market_price"`
	MarketValue    float64   `json:"market_value"`
	GainLoss       float64   `json:"gain_loss"`
	GainLossPct    float64   `json:"gain_loss_percent"`
	PriceAsOf      time.Time `json:"price_as_of,omitempty"`
	Stale          bool      `json:"stale"`
	PriceAvailable bool      `json:"price_available"`
}

// PortfolioValuation is a read-only snapshot of a portfolio at market prices.
type PortfolioValuation struct {
	PortfolioID    string              `json:"portfolio_id"`
	CashBalance    float64             `json:"cash_balance"`
	MarketValue    float64             `json:"market_value"`
	RealizedGain   float64             `json:"realized_gain_loss"`
	UnrealizedGain float64             `json:"unrealized_gain_loss"`
	NetWorth       float64             `json:"net_worth"`
	Positions      []PositionValuation `json:"positions"`
	ValuedAt       time.Time           `json:"valued_at"`
}
