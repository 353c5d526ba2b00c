package models

import (
	"strings"
	"time"
)

// InstrumentType classifies what a position holds.
type InstrumentType string

const (
	InstrumentStock  InstrumentType = "stock"
	InstrumentETF    InstrumentType = "etf"
	InstrumentCrypto InstrumentType = "crypto"
	InstrumentBond   InstrumentType = "bond"
	InstrumentOther  InstrumentType = "other"
)

// ParseInstrumentType normalises s and reports whether it names a known type.
// An empty string maps to stock.
func ParseInstrumentType(s string) (InstrumentType, bool) {
	switch t := InstrumentType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return InstrumentStock, true
	case InstrumentStock, InstrumentETF, InstrumentCrypto, InstrumentBond, InstrumentOther:
		return t, true
	default:
		return t, false
	}
}

// PositionStatus is the lifecycle state of a position.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

// Position is a holding of one symbol. Open positions value at CurrentPrice,
// closed positions are frozen at ClosePrice.
type Position struct {
	ID              string         `json:"id"`
	PortfolioID     string         `json:"portfolio_id"`
	Symbol          string         `json:"symbol"`
	Name            string         `json:"name"`
	Type            InstrumentType `json:"type"`
	Quantity        float64        `json:"quantity"`
	OpenPrice       float64        `json:"open_price"`
	CurrentPrice    float64        `json:"current_price"`
	ClosePrice      float64        `json:"close_price,omitempty"`
	OpenDate        time.Time      `json:"open_date"`
	CloseDate       *time.Time     `json:"close_date,omitempty"`
	Status          PositionStatus `json:"status"`
	TotalValue      float64        `json:"total_value"`
	GainLoss        float64        `json:"gain_loss"`
	GainLossPercent float64        `json:"gain_loss_percent"`
	Fees            float64        `json:"fees"`
	SplitFrom       string         `json:"split_from,omitempty"` // original position of a partial-close slice
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// IsOpen reports whether the position is still open.
func (p *Position) IsOpen() bool {
	return p.Status == PositionOpen
}

// ValuationPrice is the price the stored value fields are computed at.
func (p *Position) ValuationPrice() float64 {
	if p.Status == PositionClosed {
		return p.ClosePrice
	}
	if p.CurrentPrice > 0 {
		return p.CurrentPrice
	}
	return p.OpenPrice
}

// CostBasis is open price times quantity.
func (p *Position) CostBasis() float64 {
	return p.OpenPrice * p.Quantity
}
