// Package advisory scores a portfolio's open positions and produces advice
package advisory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/shopspring/decimal"
)

// instrumentTypeCount is the number of instrument types a fully diversified
// portfolio spans.
const instrumentTypeCount = 5

// concentrationLimit is the share of open value one position may hold
// before it is penalised.
const concentrationLimit = 0.3

// Service implements AdvisoryService
type Service struct {
	storage    interfaces.StorageManager
	portfolios interfaces.PortfolioService
	generator  interfaces.SuggestionGenerator
	logger     *common.Logger
	now        func() time.Time
}

var _ interfaces.AdvisoryService = (*Service)(nil)

// NewService creates a new advisory service. generator may be nil, in which
// case the narrative falls back to a fixed assessment.
func NewService(storage interfaces.StorageManager, portfolios interfaces.PortfolioService, generator interfaces.SuggestionGenerator, logger *common.Logger) *Service {
	return &Service{
		storage:    storage,
		portfolios: portfolios,
		generator:  generator,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Advise scores the open positions of a portfolio. Scores use stored
// position values, so advice reflects the last revaluation.
func (s *Service) Advise(ctx context.Context, portfolioID string) (*models.PortfolioAdvice, error) {
	p, err := s.portfolios.CheckAccess(ctx, portfolioID, false)
	if err != nil {
		return nil, err
	}
	positions, err := s.storage.PositionStore().ListByPortfolio(ctx, portfolioID, models.PositionOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}

	advice := &models.PortfolioAdvice{
		PortfolioID:          portfolioID,
		Score:                Score(positions),
		RiskLevel:            Risk(positions),
		DiversificationScore: Diversification(positions),
		TypeAllocation:       typeAllocation(positions),
		GeneratedAt:          s.now(),
	}
	advice.LargestPosition, advice.Concentration = largest(positions)
	advice.Recommendations = recommendations(advice, positions)
	advice.Narrative = s.narrative(ctx, p, positions, advice)

	s.logger.Debug().
		Str("portfolio", portfolioID).
		Float64("score", advice.Score).
		Str("risk", advice.RiskLevel).
		Float64("diversification", advice.DiversificationScore).
		Msg("Portfolio advice computed")
	return advice, nil
}

// Score is 50 plus half the mean gain percent, clamped to 0..100. An empty
// portfolio scores 0.
func Score(positions []*models.Position) float64 {
	if len(positions) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, p := range positions {
		sum = sum.Add(decimal.NewFromFloat(p.GainLossPercent))
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(positions))))
	return clamp(decimal.NewFromInt(50).Add(mean.Div(decimal.NewFromInt(2))).InexactFloat64())
}

// Risk grades the share of crypto positions.
func Risk(positions []*models.Position) string {
	if len(positions) == 0 {
		return models.RiskUnknown
	}
	var crypto int
	for _, p := range positions {
		if p.Type == models.InstrumentCrypto {
			crypto++
		}
	}
	ratio := float64(crypto) / float64(len(positions))
	switch {
	case ratio > 0.3:
		return models.RiskHigh
	case ratio > 0.1:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// Diversification rewards instrument type breadth (up to 50) and penalises
// any position holding more than 30% of open value (up to 50).
func Diversification(positions []*models.Position) float64 {
	if len(positions) == 0 {
		return 0
	}
	types := make(map[models.InstrumentType]struct{})
	for _, p := range positions {
		types[p.Type] = struct{}{}
	}
	_, maxShare := largest(positions)
	penalty := math.Max(0, maxShare-concentrationLimit) * 2
	score := float64(len(types))/instrumentTypeCount*50 + (50 - penalty*100)
	return clamp(score)
}

func largest(positions []*models.Position) (string, float64) {
	var total float64
	var top *models.Position
	for _, p := range positions {
		total += p.TotalValue
		if top == nil || p.TotalValue > top.TotalValue {
			top = p
		}
	}
	if top == nil || total <= 0 {
		return "", 0
	}
	return top.Symbol, top.TotalValue / total
}

func typeAllocation(positions []*models.Position) map[string]float64 {
	out := make(map[string]float64)
	var total float64
	for _, p := range positions {
		total += p.TotalValue
	}
	if total <= 0 {
		return out
	}
	for _, p := range positions {
		out[string(p.Type)] += p.TotalValue / total * 100
	}
	for k, v := range out {
		out[k] = math.Round(v*100) / 100
	}
	return out
}

func recommendations(a *models.PortfolioAdvice, positions []*models.Position) []string {
	if len(positions) == 0 {
		return []string{"No open positions. Generate suggestions to build an initial allocation."}
	}
	var out []string
	if a.Concentration > concentrationLimit {
		out = append(out, fmt.Sprintf("%s is %.0f%% of open value. Consider trimming it to reduce concentration risk.", a.LargestPosition, a.Concentration*100))
	}
	if len(a.TypeAllocation) < 3 {
		types := make([]string, 0, len(a.TypeAllocation))
		for t := range a.TypeAllocation {
			types = append(types, t)
		}
		sort.Strings(types)
		out = append(out, fmt.Sprintf("Holdings span only %s. A broad-market ETF or bond allocation would improve diversification.", strings.Join(types, " and ")))
	}
	switch a.RiskLevel {
	case models.RiskHigh:
		out = append(out, "Crypto makes up a large share of positions. Consider adding defensive holdings.")
	case models.RiskMedium:
		out = append(out, "Crypto exposure is moderate. Monitor volatility.")
	}
	for _, p := range positions {
		if p.GainLossPercent <= -20 {
			out = append(out, fmt.Sprintf("%s is down %.1f%%. Review whether the original thesis still holds.", p.Symbol, -p.GainLossPercent))
		}
	}
	if len(out) == 0 {
		out = append(out, "Allocation looks balanced. Rebalance periodically to maintain target weights.")
	}
	return out
}

func (s *Service) narrative(ctx context.Context, p *models.Portfolio, positions []*models.Position, a *models.PortfolioAdvice) string {
	if s.generator != nil {
		req := models.GenerationRequest{
			PortfolioName: p.Name,
			Goal:          p.Goal,
			Investment:    p.CashBalance,
		}
		for _, pos := range positions {
			req.Holdings = append(req.Holdings, *pos)
		}
		text, err := s.generator.GenerateAdvice(ctx, req)
		if err == nil && text != "" {
			return text
		}
		s.logger.Warn().Err(err).Str("portfolio", p.ID).Msg("Advice generation failed, using fallback narrative")
	}
	return fallbackNarrative(p.Goal, a)
}

func fallbackNarrative(goal string, a *models.PortfolioAdvice) string {
	var text string
	switch {
	case a.RiskLevel == models.RiskUnknown:
		text = "The portfolio holds no open positions yet."
	case a.DiversificationScore >= 60 && a.Score >= 50:
		text = "Your portfolio shows a balanced approach with good diversification. Consider rebalancing to maintain optimal risk levels."
	case a.Concentration > concentrationLimit:
		text = "The portfolio has notable concentration risk. Consider spreading exposure across more positions."
	case a.Score < 50:
		text = "The portfolio is trailing its cost basis. Review underperforming positions against your goals."
	default:
		text = "Your portfolio demonstrates solid growth potential with moderate risk exposure. Consider adding value positions for better balance."
	}

	g := strings.ToLower(goal)
	switch {
	case strings.Contains(g, "moderate"):
		text += " Your moderate risk approach is appropriate for steady long-term growth."
	case strings.Contains(g, "aggressive"):
		text += " Your aggressive strategy shows potential for high returns but monitor risk carefully."
	case strings.Contains(g, "conservative"):
		text += " Your conservative approach prioritizes capital preservation, which is prudent."
	}
	return text
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
