package models

import "time"

// PortfolioAdvice is a heuristic assessment of a portfolio's open positions.
type PortfolioAdvice struct {
	PortfolioID          string             `json:"portfolio_id"`
	Score                float64            `json:"score"`
	RiskLevel            string             `json:"risk_level"`
	DiversificationScore float64            `json:"diversification_score"`
	TypeAllocation       map[string]float64 `json:"type_allocation"` // percent of open value per instrument type
	LargestPosition      string             `json:"largest_position,omitempty"`
	Concentration        float64            `json:"concentration"` // largest position share of open value, 0..1
	Recommendations      []string           `json:"recommendations"`
	Narrative            string             `json:"narrative,omitempty"`
	GeneratedAt          time.Time          `json:"generated_at"`
}
