// Package subgraph is the HTTP client for the market-data read surface:
// list-coins, get-coin, list-trades, fetch-metadata. It caches nothing —
// every call hits the endpoint fresh.
package subgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// defaultTimeout is the per-call deadline applied when the caller's context
// carries no earlier deadline.
const defaultTimeout = 10 * time.Second

// Client is an HTTP client for the subgraph read surface.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// New builds a Client against baseURL.
func New(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		log:     log.With().Str("component", "subgraph").Logger(),
	}
}

// Coin is a single listed token as the subgraph reports it.
type Coin struct {
	Pair      string `json:"pair"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	MarketCap string `json:"marketCap"`
	CreatedAt int64  `json:"createdAt"`
}

// Trade is a single recorded fill on a pair, as the subgraph reports it.
type Trade struct {
	Pair      string `json:"pair"`
	Side      string `json:"side"`
	EthAmount string `json:"ethAmount"`
	Timestamp int64  `json:"timestamp"`
}

// Sort selects list-coins ordering.
type Sort string

const (
	SortNewest    Sort = "newest"
	SortMarketCap Sort = "marketCap"
)

// ListCoins returns a ranked list of coins.
func (c *Client) ListCoins(ctx context.Context, sort Sort, limit, offset int) ([]Coin, error) {
	q := url.Values{}
	q.Set("sort", string(sort))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var coins []Coin
	if err := c.getJSON(ctx, "/coins?"+q.Encode(), &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// GetCoin resolves a single pair's coin record.
func (c *Client) GetCoin(ctx context.Context, pair string) (*Coin, error) {
	var coin Coin
	if err := c.getJSON(ctx, "/coins/"+pair, &coin); err != nil {
		return nil, err
	}
	return &coin, nil
}

// ListTrades returns the most recent trades on a pair, newest first.
func (c *Client) ListTrades(ctx context.Context, pair string, limit int) ([]Trade, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	var trades []Trade
	if err := c.getJSON(ctx, "/trades/"+pair+"?"+q.Encode(), &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

// Metadata is off-chain token metadata resolved from a URI (typically an
// IPFS-hosted JSON document referenced by the token contract).
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// FetchMetadata resolves a metadata URI.
func (c *Client) FetchMetadata(ctx context.Context, uri string) (*Metadata, error) {
	var meta Metadata
	if err := c.getJSON(ctx, "/metadata?uri="+url.QueryEscape(uri), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

type ethUsdResponse struct {
	Price string `json:"price"`
}

// EthUsd resolves a live ETH/USD price, satisfying
// internal/strategyrt.EthUsdSource so the capability surface's
// getMarketCap can be quoted from the same read path as every other
// market-data call.
func (c *Client) EthUsd(ctx context.Context) (*big.Rat, error) {
	var resp ethUsdResponse
	if err := c.getJSON(ctx, "/ethusd", &resp); err != nil {
		return nil, err
	}
	price, ok := new(big.Rat).SetString(resp.Price)
	if !ok {
		return nil, fmt.Errorf("subgraph returned a malformed ETH/USD price: %q", resp.Price)
	}
	return price, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("subgraph returned status %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
