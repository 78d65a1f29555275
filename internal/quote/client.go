package quote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/trogers1052/paper-trader/internal/models"
)

// Config holds quote provider settings
type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxFailures uint32        // consecutive failures before the breaker opens
	OpenTimeout time.Duration // how long the breaker stays open
}

// Client fetches quotes from an IEX Cloud compatible HTTP API
type Client struct {
	http    *resty.Client
	apiKey  string
	breaker *gobreaker.CircuitBreaker
}

// iexQuote is the subset of the /stock/{symbol}/quote payload we use
type iexQuote struct {
	Symbol      string          `json:"symbol"`
	CompanyName string          `json:"companyName"`
	LatestPrice decimal.Decimal `json:"latestPrice"`
}

// NewClient creates a new quote client
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "paper-trader/1.0")

	maxFailures := cfg.MaxFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "quote-provider",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// Unknown symbols are a normal answer, not a provider failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
	})

	return &Client{
		http:    httpClient,
		apiKey:  cfg.APIKey,
		breaker: breaker,
	}
}

// Lookup returns the current quote for symbol, or ErrNotFound
func (c *Client) Lookup(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = Normalize(symbol)
	if symbol == "" {
		return nil, ErrNotFound
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, symbol)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Quote), nil
}

func (c *Client) fetch(ctx context.Context, symbol string) (*models.Quote, error) {
	var body iexQuote
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParam("token", c.apiKey).
		SetResult(&body).
		Get("/stock/{symbol}/quote")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote for %s: %w", symbol, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound, resp.StatusCode() == http.StatusBadRequest:
		return nil, ErrNotFound
	case resp.IsError():
		return nil, fmt.Errorf("quote provider returned %d for %s", resp.StatusCode(), symbol)
	}

	if !body.LatestPrice.IsPositive() {
		return nil, ErrNotFound
	}
	if body.Symbol == "" {
		body.Symbol = symbol
	}

	return &models.Quote{
		Symbol: Normalize(body.Symbol),
		Name:   body.CompanyName,
		Price:  body.LatestPrice,
	}, nil
}
