package models

import "time"

// SuggestionAction is what a suggested trade proposes.
type SuggestionAction string

const (
	ActionBuy  SuggestionAction = "buy"
	ActionSell SuggestionAction = "sell"
)

// SuggestionStatus is the lifecycle state of a suggestion. Converted and
// dismissed are terminal.
type SuggestionStatus string

const (
	SuggestionPending   SuggestionStatus = "pending"
	SuggestionConverted SuggestionStatus = "converted"
	SuggestionDismissed SuggestionStatus = "dismissed"
)

// IsTerminal reports whether no further transition is allowed.
func (s SuggestionStatus) IsTerminal() bool {
	return s == SuggestionConverted || s == SuggestionDismissed
}

// Priority levels
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Risk levels
const (
	RiskHigh    = "high"
	RiskMedium  = "medium"
	RiskLow     = "low"
	RiskUnknown = "unknown"
)

// Suggestion sources
const (
	SuggestionSourceAI     = "ai"
	SuggestionSourceManual = "manual"
)

// DismissReasonSuperseded marks suggestions dismissed by a regeneration.
const DismissReasonSuperseded = "superseded"

// SuggestedTrade is a recommendation awaiting accept or dismiss.
type SuggestedTrade struct {
	ID                  string           `json:"id"`
	PortfolioID         string           `json:"portfolio_id"`
	OwnerID             string           `json:"owner_id"`
	Symbol              string           `json:"symbol"`
	Name                string           `json:"name,omitempty"`
	Type                InstrumentType   `json:"type"`
	Action              SuggestionAction `json:"action"`
	Quantity            float64          `json:"quantity"`
	EstimatedPrice      float64          `json:"estimated_price"`
	Priority            string           `json:"priority"`
	RiskLevel           string           `json:"risk_level,omitempty"`
	AllocationPercent   float64          `json:"allocation_percent,omitempty"`
	Rationale           string           `json:"rationale"`
	Status              SuggestionStatus `json:"status"`
	ConvertedPositionID string           `json:"converted_position_id,omitempty"`
	ConvertedTradeID    string           `json:"converted_trade_id,omitempty"`
	ConvertedAt         *time.Time       `json:"converted_at,omitempty"`
	DismissalReason     string           `json:"dismissal_reason,omitempty"`
	DismissedAt         *time.Time       `json:"dismissed_at,omitempty"`
	Source              string           `json:"source,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// ConvertOverrides replaces suggestion values at conversion time.
// Nil fields keep the suggestion's own value.
type ConvertOverrides struct {
	Quantity *float64   `json:"quantity,omitempty"`
	Price    *float64   `json:"price,omitempty"`
	Fee      *float64   `json:"fee,omitempty"`
	Notes    *string    `json:"notes,omitempty"`
	Date     *time.Time `json:"date,omitempty"`
}

// ConvertResult identifies the records created by a conversion.
type ConvertResult struct {
	PositionID string `json:"position_id"`
	TradeID    string `json:"trade_id"`
}

// AllocationRecommendation is one line of generator output before it is
// turned into a suggested trade.
type AllocationRecommendation struct {
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name,omitempty"`
	Type              string  `json:"type,omitempty"`
	Action            string  `json:"action,omitempty"`
	AllocationPercent float64 `json:"allocation_percent"`
	EstimatedPrice    float64 `json:"estimated_price"`
	Rationale         string  `json:"rationale"`
}

// GenerationRequest describes the portfolio a generator should advise on.
type GenerationRequest struct {
	PortfolioName string     `json:"portfolio_name"`
	Goal          string     `json:"goal,omitempty"`
	Investment    float64    `json:"investment"`
	Holdings      []Position `json:"holdings,omitempty"`
}
