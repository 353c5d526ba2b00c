package models

import "time"

// OperationKind names a journalled ledger operation.
type OperationKind string

const (
	OpOpenPosition   OperationKind = "open_position"
	OpClosePosition  OperationKind = "close_position"
	OpDeletePosition OperationKind = "delete_position"
)

// OperationStage is the last step a journalled operation completed.
type OperationStage string

const (
	StageStarted           OperationStage = "started"
	StagePositionWritten   OperationStage = "position_written"
	StageSourceUpdated     OperationStage = "source_updated"
	StageTradeWritten      OperationStage = "trade_written"
	StageCashApplied       OperationStage = "cash_applied"
	StageSuggestionUpdated OperationStage = "suggestion_updated"
	StageTradesDeleted     OperationStage = "trades_deleted"
	StagePositionDeleted   OperationStage = "position_deleted"
	StageCompleted         OperationStage = "completed"
	StageAbandoned         OperationStage = "abandoned"
)

// LedgerOperation journals one multi-step lifecycle operation. Every record
// the operation writes is planned in full before the first write, so any
// step can be re-applied without changing the outcome.
type LedgerOperation struct {
	ID          string         `json:"id"`
	PortfolioID string         `json:"portfolio_id"`
	Kind        OperationKind  `json:"kind"`
	Stage       OperationStage `json:"stage"`

	// Open and close
	Position     *Position `json:"position,omitempty"` // new position, closed slice, or fully closed original
	Source       *Position `json:"source,omitempty"`   // shrunk original of a partial close
	Trade        *Trade    `json:"trade,omitempty"`
	CashDelta    float64   `json:"cash_delta"`
	SuggestionID string    `json:"suggestion_id,omitempty"`

	// Delete
	PositionID string   `json:"position_id,omitempty"`
	TradeIDs   []string `json:"trade_ids,omitempty"`

	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Steps returns the ordered stages this operation passes through.
func (o *LedgerOperation) Steps() []OperationStage {
	switch o.Kind {
	case OpOpenPosition:
		steps := []OperationStage{StageStarted, StagePositionWritten, StageTradeWritten, StageCashApplied}
		if o.SuggestionID != "" {
			steps = append(steps, StageSuggestionUpdated)
		}
		return append(steps, StageCompleted)
	case OpClosePosition:
		steps := []OperationStage{StageStarted, StagePositionWritten}
		if o.Source != nil {
			steps = append(steps, StageSourceUpdated)
		}
		steps = append(steps, StageTradeWritten, StageCashApplied)
		if o.SuggestionID != "" {
			steps = append(steps, StageSuggestionUpdated)
		}
		return append(steps, StageCompleted)
	case OpDeletePosition:
		return []OperationStage{StageStarted, StageTradesDeleted, StagePositionDeleted, StageCompleted}
	}
	return []OperationStage{StageStarted, StageCompleted}
}

// Remaining returns the stages after the current one.
func (o *LedgerOperation) Remaining() []OperationStage {
	steps := o.Steps()
	for i, s := range steps {
		if s == o.Stage {
			return steps[i+1:]
		}
	}
	return steps[1:]
}

// IsFinished reports whether the operation needs no further work.
func (o *LedgerOperation) IsFinished() bool {
	return o.Stage == StageCompleted || o.Stage == StageAbandoned
}

// RecoveryReport summarises a RecoverPortfolio run.
type RecoveryReport struct {
	PortfolioID string          `json:"portfolio_id"`
	Resumed     []string        `json:"resumed"`
	Abandoned   []string        `json:"abandoned"`
	Failed      []string        `json:"failed,omitempty"`
	CashBefore  float64         `json:"cash_before"`
	CashAfter   float64         `json:"cash_after"`
	Totals      PortfolioTotals `json:"totals"`
	RecoveredAt time.Time       `json:"recovered_at"`
}
