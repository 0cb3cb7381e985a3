// Package nse fetches equity quotes and market status from the NSE India
// public API. The API sits behind bot protection, so requests carry
// browser-like headers and are rate limited.
package nse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://www.nseindia.com"

// Quote is the subset of the quote-equity payload the API serves.
type Quote struct {
	Symbol        string  `json:"symbol"`
	CompanyName   string  `json:"companyName"`
	LastPrice     float64 `json:"lastPrice"`
	Change        float64 `json:"change"`
	PChange       float64 `json:"pChange"`
	PreviousClose float64 `json:"previousClose"`
	Open          float64 `json:"open"`
	DayHigh       float64 `json:"dayHigh"`
	DayLow        float64 `json:"dayLow"`
}

// MarketState is one market segment's status.
type MarketState struct {
	Market       string `json:"market"`
	MarketStatus string `json:"marketStatus"`
	TradeDate    string `json:"tradeDate"`
}

// Client talks to the NSE API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// NewClient creates an NSE client limited to two requests per second.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetQuote fetches the current quote for an equity symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	var payload struct {
		Info struct {
			Symbol      string `json:"symbol"`
			CompanyName string `json:"companyName"`
		} `json:"info"`
		PriceInfo struct {
			LastPrice     float64 `json:"lastPrice"`
			Change        float64 `json:"change"`
			PChange       float64 `json:"pChange"`
			PreviousClose float64 `json:"previousClose"`
			Open          float64 `json:"open"`
			IntraDayHighLow struct {
				Max float64 `json:"max"`
				Min float64 `json:"min"`
			} `json:"intraDayHighLow"`
		} `json:"priceInfo"`
	}

	endpoint := "/api/quote-equity?symbol=" + url.QueryEscape(symbol)
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("fetching quote for %s: %w", symbol, err)
	}

	return &Quote{
		Symbol:        payload.Info.Symbol,
		CompanyName:   payload.Info.CompanyName,
		LastPrice:     payload.PriceInfo.LastPrice,
		Change:        payload.PriceInfo.Change,
		PChange:       payload.PriceInfo.PChange,
		PreviousClose: payload.PriceInfo.PreviousClose,
		Open:          payload.PriceInfo.Open,
		DayHigh:       payload.PriceInfo.IntraDayHighLow.Max,
		DayLow:        payload.PriceInfo.IntraDayHighLow.Min,
	}, nil
}

// GetMarketStatus fetches the status of all market segments.
func (c *Client) GetMarketStatus(ctx context.Context) ([]MarketState, error) {
	var payload struct {
		MarketState []MarketState `json:"marketState"`
	}

	if err := c.getJSON(ctx, "/api/marketStatus", &payload); err != nil {
		return nil, fmt.Errorf("fetching market status: %w", err)
	}

	return payload.MarketState, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	// NSE rejects requests that do not look like a browser.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", c.baseURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
