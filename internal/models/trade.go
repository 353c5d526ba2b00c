package models

import "time"

// TradeType is the kind of ledger event a trade records.
type TradeType string

const (
	TradeBuyToOpen   TradeType = "BuyToOpen"
	TradeSellToClose TradeType = "SellToClose"
)

// Trade sources
const (
	TradeSourceManual     = "manual"
	TradeSourceSuggestion = "suggestion"
)

// Trade is an immutable record of a buy or sell. Trades are the source of
// truth for cash replay and are only removed by cascade.
type Trade struct {
	ID          string    `json:"id"`
	PortfolioID string    `json:"portfolio_id"`
	PositionID  string    `json:"position_id,omitempty"`
	Symbol      string    `json:"symbol"`
	Type        TradeType `json:"type"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	Fee         float64   `json:"fee"`
	Date        time.Time `json:"date"`
	Notes       string    `json:"notes,omitempty"`
	Source      string    `json:"source,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
