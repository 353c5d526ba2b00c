package gemini

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bobmcallan/folio/internal/models"
)

// buildAllocationPrompt describes the portfolio and the JSON shape expected back.
func buildAllocationPrompt(req models.GenerationRequest) string {
	var sb strings.Builder

	sb.WriteString("You are an experienced investment advisor constructing a diversified portfolio.\n\n")
	fmt.Fprintf(&sb, "Portfolio: %s\n", req.PortfolioName)
	if req.Goal != "" {
		fmt.Fprintf(&sb, "Goal: %s\n", req.Goal)
	}
	fmt.Fprintf(&sb, "Amount to invest: $%.2f\n", req.Investment)

	sb.WriteString("\nCurrent holdings:\n")
	sb.WriteString(formatHoldings(req.Holdings))

	sb.WriteString(`
Return ONLY JSON with this structure:

{
  "recommendations": [
    {
      "ticker_symbol": "AAPL",
      "name": "Apple Inc.",
      "type": "stock",
      "action": "buy",
      "allocation_percent": 15.0,
      "estimated_price": 190.25,
      "rationale": "Investment thesis for inclusion",
      "notes": "Current price: $190.25, key metrics"
    }
  ]
}

Rules:
- type is one of stock, etf, crypto, bond, other
- action is buy or sell; sell only for symbols already held
- allocation_percent values of buy recommendations sum to 100
- estimated_price is the latest known price per unit in USD
`)

	return sb.String()
}

// buildAdvicePrompt asks for a short narrative review of the holdings.
func buildAdvicePrompt(req models.GenerationRequest) string {
	var sb strings.Builder

	if req.Goal != "" {
		fmt.Fprintf(&sb, "Portfolio goal: %s\n", req.Goal)
	}
	fmt.Fprintf(&sb, "Cash balance: $%.2f\n", req.Investment)
	sb.WriteString("Positions:\n")
	sb.WriteString(formatHoldings(req.Holdings))
	sb.WriteString("\nDiscuss performance and how well this portfolio matches the goal. ")
	sb.WriteString("Mention relevant metrics for key holdings and end with a short recommendation. ")
	sb.WriteString("Keep it under 200 words.")

	return sb.String()
}

func formatHoldings(holdings []models.Position) string {
	if len(holdings) == 0 {
		return "None\n"
	}
	var sb strings.Builder
	for _, p := range holdings {
		fmt.Fprintf(&sb, "- %s (%s): %g units at $%.2f (gain %+.2f, %+.2f%%)\n",
			strings.ToUpper(p.Symbol), p.Type, p.Quantity, p.ValuationPrice(), p.GainLoss, p.GainLossPercent)
	}
	return sb.String()
}

type allocationPlan struct {
	Recommendations []allocationLine `json:"recommendations"`
}

type allocationLine struct {
	TickerSymbol      string  `json:"ticker_symbol"`
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name"`
	Type              string  `json:"type"`
	Action            string  `json:"action"`
	AllocationPercent float64 `json:"allocation_percent"`
	EstimatedPrice    float64 `json:"estimated_price"`
	Rationale         string  `json:"rationale"`
	Notes             string  `json:"notes"`
}

var notePriceRe = regexp.MustCompile(`(?i)price:\s*\$?\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)

// parseAllocations decodes the model output. Code fences around the JSON are
// tolerated. Lines without a symbol or with a non-positive allocation are
// skipped. A missing estimated price is recovered from "price: $X" in notes.
func parseAllocations(text string) ([]models.AllocationRecommendation, error) {
	text = stripCodeFence(text)

	var plan allocationPlan
	if err := json.Unmarshal([]byte(text), &plan); err != nil {
		return nil, fmt.Errorf("failed to parse allocation JSON: %w", err)
	}

	var recs []models.AllocationRecommendation
	for _, line := range plan.Recommendations {
		symbol := line.TickerSymbol
		if symbol == "" {
			symbol = line.Symbol
		}
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" || line.AllocationPercent <= 0 {
			continue
		}

		price := line.EstimatedPrice
		if price <= 0 {
			price = priceFromNotes(line.Notes)
		}

		rationale := strings.TrimSpace(line.Rationale)
		notes := strings.TrimSpace(line.Notes)
		switch {
		case rationale != "" && notes != "":
			rationale = strings.TrimSuffix(rationale, ".") + ". " + notes
		case rationale == "":
			rationale = notes
		}

		recs = append(recs, models.AllocationRecommendation{
			Symbol:            symbol,
			Name:              strings.TrimSpace(line.Name),
			Type:              strings.ToLower(strings.TrimSpace(line.Type)),
			Action:            strings.ToLower(strings.TrimSpace(line.Action)),
			AllocationPercent: line.AllocationPercent,
			EstimatedPrice:    price,
			Rationale:         rationale,
		})
	}

	return recs, nil
}

func priceFromNotes(notes string) float64 {
	m := notePriceRe.FindStringSubmatch(notes)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
