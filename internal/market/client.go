// Package market implements the read-only market data client for the CoinGecko v3 API.
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"crypto-explorer-bot/internal/model"
)

const (
	// DefaultBaseURL is the public CoinGecko v3 endpoint.
	DefaultBaseURL = "https://api.coingecko.com/api/v3"

	// DefaultPerPage is the listing size requested from the markets endpoint.
	DefaultPerPage = 250

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 10 * time.Second

	userAgent = "crypto-explorer-bot/1.0"
)

// ErrRequestFailed is returned for every failed request: transport errors,
// non-2xx statuses and undecodable bodies are not distinguished.
var ErrRequestFailed = errors.New("market data request failed")

// Client fetches the coin listing and per-coin detail documents.
type Client struct {
	baseURL    string
	vsCurrency string
	perPage    int
	apiKey     string
	httpClient *http.Client
}

// Config holds configuration for the market client.
type Config struct {
	BaseURL    string
	VsCurrency string
	PerPage    int
	Timeout    time.Duration
	APIKey     string
}

// NewClient creates a new Client with the given configuration.
func NewClient(cfg *Config) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		vsCurrency: "usd",
		perPage:    DefaultPerPage,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}

	if cfg != nil {
		if cfg.BaseURL != "" {
			c.baseURL = cfg.BaseURL
		}
		if cfg.VsCurrency != "" {
			c.vsCurrency = cfg.VsCurrency
		}
		if cfg.PerPage > 0 {
			c.perPage = cfg.PerPage
		}
		if cfg.Timeout > 0 {
			c.httpClient.Timeout = cfg.Timeout
		}
		c.apiKey = cfg.APIKey
	}

	return c
}

// ListMarkets returns the first page of the market listing ordered by market cap descending.
func (c *Client) ListMarkets(ctx context.Context) ([]model.CoinSummary, error) {
	q := url.Values{}
	q.Set("vs_currency", c.vsCurrency)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(c.perPage))
	q.Set("page", "1")
	q.Set("sparkline", "false")

	var coins []model.CoinSummary
	if err := c.get(ctx, "/coins/markets", q, &coins); err != nil {
		return nil, err
	}

	log.Debug().Int("count", len(coins)).Msg("Fetched market listing")
	return coins, nil
}

// GetDetail returns the detail document for a coin id.
// A null document yields (nil, nil).
func (c *Client) GetDetail(ctx context.Context, id string) (*model.CoinDetail, error) {
	var detail *model.CoinDetail
	if err := c.get(ctx, "/coins/"+url.PathEscape(id), nil, &detail); err != nil {
		return nil, err
	}
	return detail, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRequestFailed, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: read body: %v", ErrRequestFailed, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn().
			Str("path", path).
			Int("status", resp.StatusCode).
			Msg("Market API returned non-2xx status")
		return fmt.Errorf("%w: %s: %s", ErrRequestFailed, path, resp.Status)
	}

	if err := json.Unmarshal(bytes.TrimSpace(body), out); err != nil {
		return fmt.Errorf("%w: %s: decode: %v", ErrRequestFailed, path, err)
	}

	return nil
}
