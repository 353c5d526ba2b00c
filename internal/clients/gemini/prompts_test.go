package gemini

import (
	"strings"
	"testing"

	"github.com/bobmcallan/folio/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAllocations(t *testing.T) {
	text := "```json\n" + `{
  "recommendations": [
    {"ticker_symbol": " vti ", "name": "Vanguard Total", "type": "ETF", "allocation_percent": 40, "estimated_price": 250.5, "rationale": "Broad exposure."},
    {"ticker_symbol": "JNJ", "allocation_percent": 10, "rationale": "Defensive", "notes": "Current price: $1,160.40, P/E 15"},
    {"ticker_symbol": "", "allocation_percent": 20},
    {"symbol": "BTC", "type": "crypto", "allocation_percent": 0}
  ]
}` + "\n```"

	recs, err := parseAllocations(text)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "VTI", recs[0].Symbol)
	assert.Equal(t, "etf", recs[0].Type)
	assert.Equal(t, 250.5, recs[0].EstimatedPrice)
	assert.Equal(t, "Broad exposure.", recs[0].Rationale)

	assert.Equal(t, "JNJ", recs[1].Symbol)
	assert.Equal(t, 1160.40, recs[1].EstimatedPrice)
	assert.Equal(t, "Defensive. Current price: $1,160.40, P/E 15", recs[1].Rationale)
}

func TestParseAllocations_Invalid(t *testing.T) {
	_, err := parseAllocations("I recommend buying AAPL")
	assert.Error(t, err)
}

func TestPriceFromNotes(t *testing.T) {
	tests := []struct {
		notes string
		want  float64
	}{
		{"Current price: $195.50, P/E ratio: 30", 195.50},
		{"PRICE: 42", 42},
		{"no figures here", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, priceFromNotes(tt.notes), tt.notes)
	}
}

func TestBuildAllocationPrompt_IncludesHoldings(t *testing.T) {
	prompt := buildAllocationPrompt(models.GenerationRequest{
		PortfolioName: "Retirement",
		Goal:          "moderate growth",
		Investment:    10000,
		Holdings: []models.Position{
			{Symbol: "aapl", Type: models.InstrumentStock, Quantity: 10, OpenPrice: 100, CurrentPrice: 120, Status: models.PositionOpen},
		},
	})

	assert.Contains(t, prompt, "Goal: moderate growth")
	assert.Contains(t, prompt, "$10000.00")
	assert.Contains(t, prompt, "- AAPL (stock): 10 units at $120.00")
	assert.True(t, strings.Contains(prompt, `"recommendations"`))
}

func TestBuildAdvicePrompt_NoHoldings(t *testing.T) {
	prompt := buildAdvicePrompt(models.GenerationRequest{Investment: 500})
	assert.Contains(t, prompt, "Positions:\nNone")
	assert.NotContains(t, prompt, "Portfolio goal")
}
