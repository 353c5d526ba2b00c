package models

import "time"

// OpenPositionRequest describes a buy that opens a new position.
type OpenPositionRequest struct {
	PortfolioID string         `json:"portfolio_id"`
	Symbol      string         `json:"symbol"`
	Name        string         `json:"name"`
	Type        InstrumentType `json:"type"`
	Quantity    float64        `json:"quantity"`
	OpenPrice   float64        `json:"open_price"`
	Fee         float64        `json:"fee"`
	OpenDate    time.Time      `json:"open_date"` // zero means now
	Notes       string         `json:"notes,omitempty"`
	Source      string         `json:"source,omitempty"`

	// SuggestionID marks the suggestion converted as the final step.
	SuggestionID string `json:"-"`
}

// ClosePositionRequest describes a sell against an open position.
type ClosePositionRequest struct {
	PortfolioID string    `json:"portfolio_id"`
	PositionID  string    `json:"position_id"`
	ClosePrice  float64   `json:"close_price"`
	Quantity    *float64  `json:"quantity,omitempty"` // nil closes the full remaining quantity
	Fee         float64   `json:"fee"`
	CloseDate   time.Time `json:"close_date"` // zero means now
	Notes       string    `json:"notes,omitempty"`
	Source      string    `json:"source,omitempty"`

	SuggestionID string `json:"-"`
}

// LedgerResult identifies the records written by a lifecycle operation.
// For a close, PositionID is the record representing the closed quantity.
type LedgerResult struct {
	OperationID string `json:"operation_id"`
	PositionID  string `json:"position_id"`
	TradeID     string `json:"trade_id"`
}
