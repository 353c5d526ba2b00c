// Package prices provides a client for the remote stock price function
package prices

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 5 // requests per second

	pricePath = "/get_stock_price"
)

// Client implements interfaces.PriceClient against the get_stock_price function
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

var _ interfaces.PriceClient = (*Client)(nil)

// ClientOption configures the client
type ClientOption func(*Client)

// WithAPIKey sets the bearer token sent with each request
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new price client for the function deployed at baseURL
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents a non-200 response from the price function
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("price API error: %s (status: %d)", e.Message, e.StatusCode)
}

type priceRequest struct {
	Ticker string `json:"ticker"`
}

type priceData struct {
	Ticker    string  `json:"ticker"`
	Price     float64 `json:"price"`
	Currency  string  `json:"currency"`
	Timestamp string  `json:"timestamp"`
	Provider  string  `json:"provider"`
}

type priceResponse struct {
	Success bool      `json:"success"`
	Data    priceData `json:"data"`
	Error   string    `json:"error"`
	Message string    `json:"message"`
}

// GetPrice fetches the current price of symbol. The symbol is trimmed and
// upper-cased before the call. Transport failures, non-200 responses and
// missing prices are reported wrapped in models.ErrUpstreamUnavailable.
func (c *Client) GetPrice(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = common.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required: %w", models.ErrInvalidArgument)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(priceRequest{Ticker: symbol})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pricePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug().Str("symbol", symbol).Msg("Price API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %w", models.ErrUpstreamUnavailable, &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(msg)),
		})
	}

	var pr priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", models.ErrUpstreamUnavailable, err)
	}
	if !pr.Success || pr.Data.Price <= 0 {
		msg := pr.Message
		if msg == "" {
			msg = "no price returned"
		}
		return nil, fmt.Errorf("%w: %s for %s", models.ErrUpstreamUnavailable, msg, symbol)
	}

	now := time.Now().UTC()
	quote := &models.Quote{
		Symbol:    symbol,
		Price:     pr.Data.Price,
		Currency:  pr.Data.Currency,
		Provider:  pr.Data.Provider,
		Timestamp: parseTimestamp(pr.Data.Timestamp, now),
		FetchedAt: now,
	}
	if quote.Currency == "" {
		quote.Currency = "USD"
	}

	return quote, nil
}

// parseTimestamp accepts RFC3339 and the offset-less ISO form the function emits.
func parseTimestamp(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return fallback
}
