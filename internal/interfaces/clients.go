// Package interfaces defines service contracts for Folio
package interfaces

import (
	"context"

	"github.com/bobmcallan/folio/internal/models"
)

// PriceClient fetches a current price for a symbol from the remote
// price-lookup function.
type PriceClient interface {
	GetPrice(ctx context.Context, symbol string) (*models.Quote, error)
}

// SuggestionGenerator produces allocation recommendations and narrative
// advice. Implementations wrap an AI provider.
type SuggestionGenerator interface {
	GenerateAllocations(ctx context.Context, req models.GenerationRequest) ([]models.AllocationRecommendation, error)
	GenerateAdvice(ctx context.Context, req models.GenerationRequest) (string, error)
}
