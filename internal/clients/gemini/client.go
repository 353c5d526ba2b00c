// Package gemini provides a client for the Google Gemini API
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"google.golang.org/genai"
)

const (
	DefaultModel = "gemini-2.0-flash"
)

// Client implements interfaces.SuggestionGenerator on top of Gemini
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *common.Logger
}

var _ interfaces.SuggestionGenerator = (*Client)(nil)

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the model to use
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout bounds each generation call
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := &Client{
		client: genaiClient,
		model:  DefaultModel,
		logger: common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Close closes the client
func (c *Client) Close() error {
	// The genai client doesn't have a Close method
	return nil
}

// GenerateAllocations asks the model for a JSON allocation plan and parses it.
func (c *Client) GenerateAllocations(ctx context.Context, req models.GenerationRequest) ([]models.AllocationRecommendation, error) {
	c.logger.Debug().Str("model", c.model).Str("portfolio", req.PortfolioName).Msg("Generating allocations")
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(buildAllocationPrompt(req)), config)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate allocations: %v", models.ErrUpstreamUnavailable, err)
	}

	text, err := extractTextFromResponse(result)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}

	recs, err := parseAllocations(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}

	c.logger.Info().Int("count", len(recs)).Str("portfolio", req.PortfolioName).Msg("Allocations generated")
	return recs, nil
}

// GenerateAdvice returns a short narrative on how the holdings fit the goal.
func (c *Client) GenerateAdvice(ctx context.Context, req models.GenerationRequest) (string, error) {
	c.logger.Debug().Str("model", c.model).Str("portfolio", req.PortfolioName).Msg("Generating advice")
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(buildAdvicePrompt(req)), nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to generate advice: %v", models.ErrUpstreamUnavailable, err)
	}

	text, err := extractTextFromResponse(result)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// extractTextFromResponse extracts text from a generate content response
func extractTextFromResponse(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}

	return sb.String(), nil
}
