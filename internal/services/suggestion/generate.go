package suggestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	highRiskKeywords = []string{"crypto", "volatile", "speculative", "growth", "emerging", "small-cap"}
	lowRiskKeywords  = []string{"stable", "dividend", "bond", "conservative", "blue-chip", "utility"}
)

// Priority buckets an allocation percentage.
func Priority(allocationPercent float64) string {
	switch {
	case allocationPercent >= 15:
		return models.PriorityHigh
	case allocationPercent >= 8:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

// RiskLevel compares high and low risk keywords found in text.
func RiskLevel(text string) string {
	text = strings.ToLower(text)
	var high, low int
	for _, k := range highRiskKeywords {
		if strings.Contains(text, k) {
			high++
		}
	}
	for _, k := range lowRiskKeywords {
		if strings.Contains(text, k) {
			low++
		}
	}
	switch {
	case high > low:
		return models.RiskHigh
	case low > high:
		return models.RiskLow
	default:
		return models.RiskMedium
	}
}

// Quantity sizes an allocation of investment at price, rounded to two
// decimals. A non-positive price yields zero.
func Quantity(investment, allocationPercent, price float64) float64 {
	if price <= 0 {
		return 0
	}
	q := decimal.NewFromFloat(investment).
		Mul(decimal.NewFromFloat(allocationPercent)).
		Div(decimal.NewFromInt(100)).
		Div(decimal.NewFromFloat(price)).
		Round(2)
	return q.InexactFloat64()
}

// GenerateSuggestions asks the generator for an allocation plan and stores
// each line as a pending suggestion. Suggestions are sized against the
// portfolio's cash, or the default investment when it holds none.
func (s *Service) GenerateSuggestions(ctx context.Context, portfolioID string) ([]*models.SuggestedTrade, error) {
	if s.generator == nil {
		return nil, fmt.Errorf("no suggestion generator configured: %w", models.ErrUpstreamUnavailable)
	}
	p, err := s.portfolios.CheckAccess(ctx, portfolioID, true)
	if err != nil {
		return nil, err
	}
	holdings, err := s.storage.PositionStore().ListByPortfolio(ctx, portfolioID, models.PositionOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}

	investment := s.investment
	if p.CashBalance > 0 {
		investment = p.CashBalance
	}
	req := models.GenerationRequest{
		PortfolioName: p.Name,
		Goal:          p.Goal,
		Investment:    investment,
	}
	for _, h := range holdings {
		req.Holdings = append(req.Holdings, *h)
	}

	recs, err := s.generator.GenerateAllocations(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate allocations: %w", err)
	}

	out := make([]*models.SuggestedTrade, 0, len(recs))
	for _, rec := range recs {
		sug := s.fromRecommendation(ctx, p, rec, investment)
		if sug == nil {
			continue
		}
		if err := s.storage.SuggestionStore().Save(ctx, sug); err != nil {
			return out, fmt.Errorf("failed to save suggestion for %s: %w", sug.Symbol, err)
		}
		out = append(out, sug)
	}

	s.logger.Info().Str("portfolio", portfolioID).Int("received", len(recs)).Int("stored", len(out)).Msg("Suggestions generated")
	return out, nil
}

// RegenerateSuggestions dismisses every pending suggestion as superseded,
// then generates a fresh set.
func (s *Service) RegenerateSuggestions(ctx context.Context, portfolioID string) ([]*models.SuggestedTrade, error) {
	if _, err := s.portfolios.CheckAccess(ctx, portfolioID, true); err != nil {
		return nil, err
	}
	if err := s.supersedePending(ctx, portfolioID); err != nil {
		return nil, err
	}
	return s.GenerateSuggestions(ctx, portfolioID)
}

func (s *Service) supersedePending(ctx context.Context, portfolioID string) error {
	ctx, unlock, err := s.lock(ctx, portfolioID)
	if err != nil {
		return err
	}
	defer unlock()

	pending, err := s.storage.SuggestionStore().ListByPortfolio(ctx, portfolioID, models.SuggestionPending)
	if err != nil {
		return fmt.Errorf("failed to list pending suggestions: %w", err)
	}
	for _, sug := range pending {
		if err := s.dismiss(ctx, sug, models.DismissReasonSuperseded); err != nil {
			return err
		}
	}
	if len(pending) > 0 {
		s.logger.Info().Str("portfolio", portfolioID).Int("count", len(pending)).Msg("Pending suggestions superseded")
	}
	return nil
}

func (s *Service) fromRecommendation(ctx context.Context, p *models.Portfolio, rec models.AllocationRecommendation, investment float64) *models.SuggestedTrade {
	symbol := common.NormalizeSymbol(rec.Symbol)
	if symbol == "" || rec.AllocationPercent <= 0 {
		s.logger.Debug().Str("symbol", rec.Symbol).Float64("allocation", rec.AllocationPercent).Msg("Skipping incomplete recommendation")
		return nil
	}

	price := rec.EstimatedPrice
	if price <= 0 && s.quotes != nil {
		if q, err := s.quotes.GetPrice(ctx, symbol); err == nil {
			price = q.Price
		}
	}

	typ, ok := models.ParseInstrumentType(rec.Type)
	if !ok {
		typ = models.InstrumentOther
	}
	action := models.ActionBuy
	if strings.EqualFold(rec.Action, string(models.ActionSell)) {
		action = models.ActionSell
	}
	name := strings.TrimSpace(rec.Name)
	if name == "" {
		name = symbol
	}
	rationale := strings.TrimSpace(rec.Rationale)
	if rationale == "" {
		rationale = "AI portfolio recommendation"
	}

	now := s.now()
	return &models.SuggestedTrade{
		ID:                uuid.NewString(),
		PortfolioID:       p.ID,
		OwnerID:           p.OwnerID,
		Symbol:            symbol,
		Name:              name,
		Type:              typ,
		Action:            action,
		Quantity:          Quantity(investment, rec.AllocationPercent, price),
		EstimatedPrice:    price,
		Priority:          Priority(rec.AllocationPercent),
		RiskLevel:         RiskLevel(rationale),
		AllocationPercent: rec.AllocationPercent,
		Rationale:         rationale,
		Status:            models.SuggestionPending,
		Source:            models.SuggestionSourceAI,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
