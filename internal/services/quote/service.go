// Package quote provides price lookups with a last-known-quote fallback
package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// Service implements QuoteService. Live quotes come from the price client
// and are cached per symbol; when the client fails the cached quote is
// served marked stale.
type Service struct {
	prices  interfaces.PriceClient
	storage interfaces.StorageManager
	logger  *common.Logger
	ttl     time.Duration
}

var _ interfaces.QuoteService = (*Service)(nil)

// DefaultCacheTTL is how long a cached quote is served without asking upstream.
const DefaultCacheTTL = 15 * time.Minute

// Option configures a Service
type Option func(*Service)

// WithCacheTTL sets how long cached quotes count as fresh
func WithCacheTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// NewService creates a new quote service.
// prices may be nil, in which case only cached quotes are served.
func NewService(prices interfaces.PriceClient, storage interfaces.StorageManager, logger *common.Logger, opts ...Option) *Service {
	s := &Service{
		prices:  prices,
		storage: storage,
		logger:  logger,
		ttl:     DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) fresh(q *models.Quote) bool {
	return !q.FetchedAt.IsZero() && time.Since(q.FetchedAt) < s.ttl
}

// GetPrice returns a quote for symbol. A cached quote younger than the
// freshness TTL is returned without calling upstream.
func (s *Service) GetPrice(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = common.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required: %w", models.ErrInvalidArgument)
	}

	cached, err := s.storage.QuoteStore().Get(ctx, symbol)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Quote cache read failed")
	}
	if err != nil {
		cached = nil
	}
	if cached != nil && s.fresh(cached) {
		return cached, nil
	}

	quote, fetchErr := s.fetch(ctx, symbol)
	if fetchErr == nil {
		return quote, nil
	}

	if cached != nil {
		s.logger.Warn().
			Err(fetchErr).
			Str("symbol", symbol).
			Time("fetched_at", cached.FetchedAt).
			Msg("Price lookup failed, serving last known quote")
		cached.Stale = true
		return cached, nil
	}
	return nil, fetchErr
}

// RefreshHeld fetches a live quote for every symbol held in an open position
// and returns how many were refreshed. Individual failures are logged.
func (s *Service) RefreshHeld(ctx context.Context) (int, error) {
	symbols, err := s.storage.PositionStore().ListOpenSymbols(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list held symbols: %w", err)
	}

	refreshed := 0
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return refreshed, ctx.Err()
		}
		if _, err := s.fetch(ctx, common.NormalizeSymbol(symbol)); err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Price refresh failed")
			continue
		}
		refreshed++
	}

	s.logger.Info().Int("symbols", len(symbols)).Int("refreshed", refreshed).Msg("Held prices refreshed")
	return refreshed, nil
}

func (s *Service) fetch(ctx context.Context, symbol string) (*models.Quote, error) {
	if s.prices == nil {
		return nil, fmt.Errorf("no price client configured: %w", models.ErrUpstreamUnavailable)
	}

	quote, err := s.prices.GetPrice(ctx, symbol)
	if err != nil {
		if !errors.Is(err, models.ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
		}
		return nil, err
	}

	quote.Symbol = symbol
	quote.Stale = false
	if quote.FetchedAt.IsZero() {
		quote.FetchedAt = time.Now().UTC()
	}
	if err := s.storage.QuoteStore().Save(ctx, quote); err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache quote")
	}
	return quote, nil
}
