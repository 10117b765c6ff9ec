package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// BuiltinConfig carries the credentials consumed by the built-in tools. A
// missing key switches the corresponding tool to deterministic stub payloads
// (marked source: "stub") so offline runs and tests stay green.
type BuiltinConfig struct {
	// SerperAPIKey authorizes live web searches via the Serper API.
	SerperAPIKey string

	// StockAPIKey authorizes live stock quotes.
	StockAPIKey string

	// HTTPClient overrides the HTTP client used for live calls. Defaults
	// to a client with a 10s timeout.
	HTTPClient *http.Client
}

const serperEndpoint = "https://google.serper.dev/search"

// NewDefaultRegistry builds a registry with the built-in tools registered:
// web_search and get_stock_price.
func NewDefaultRegistry(cfg BuiltinConfig) (*Registry, error) {
	r := NewRegistry()
	if err := r.Register("web_search", WebSearch(cfg),
		WithDescription("Search the web and return the top results."),
		WithArgumentSchema(map[string]any{
			"type":                 "object",
			"properties":           map[string]any{"query": map[string]any{"type": "string"}},
			"required":             []any{"query"},
			"additionalProperties": false,
		})); err != nil {
		return nil, err
	}
	if err := r.Register("get_stock_price", GetStockPrice(cfg),
		WithDescription("Look up the latest price for a stock ticker symbol."),
		WithArgumentSchema(map[string]any{
			"type":                 "object",
			"properties":           map[string]any{"ticker_symbol": map[string]any{"type": "string"}},
			"required":             []any{"ticker_symbol"},
			"additionalProperties": false,
		})); err != nil {
		return nil, err
	}
	return r, nil
}

// WebSearch returns the web_search handler. Without a Serper API key the
// handler returns a deterministic stub result set so the tool contract holds
// offline.
func WebSearch(cfg BuiltinConfig) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		query, err := stringArg(args, "query")
		if err != nil {
			return nil, err
		}
		if cfg.SerperAPIKey == "" {
			return stubSearchResults(query), nil
		}
		return liveSearch(ctx, cfg, query)
	}
}

func stubSearchResults(query string) map[string]any {
	return map[string]any{
		"source": "stub",
		"query":  query,
		"results": []any{
			map[string]any{
				"title":   "Stub result for " + query,
				"url":     "https://example.com/search?q=" + strings.ReplaceAll(query, " ", "+"),
				"snippet": "Deterministic offline payload returned because no search API key is configured.",
			},
		},
	}
}

func liveSearch(ctx context.Context, cfg BuiltinConfig, query string) (any, error) {
	body, err := json.Marshal(map[string]any{"q": query})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serperEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("X-API-KEY", cfg.SerperAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := cfg.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request: unexpected status %d", resp.StatusCode)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	var parsed struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	results := make([]any, 0, len(parsed.Organic))
	for _, r := range parsed.Organic {
		results = append(results, map[string]any{
			"title":   r.Title,
			"url":     r.Link,
			"snippet": r.Snippet,
		})
	}
	return map[string]any{"source": "serper", "query": query, "results": results}, nil
}

// GetStockPrice returns the get_stock_price handler. Without an API key the
// handler reports a nil price with a stub marker, preserving the response
// shape for downstream consumers.
func GetStockPrice(cfg BuiltinConfig) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		ticker, err := stringArg(args, "ticker_symbol")
		if err != nil {
			return nil, err
		}
		ticker = strings.ToUpper(ticker)
		if cfg.StockAPIKey == "" {
			return map[string]any{"source": "stub", "ticker": ticker, "price": nil}, nil
		}
		// No live quote provider is wired yet; keep the stub shape until
		// one lands so the contract stays stable.
		return map[string]any{"source": "stub", "ticker": ticker, "price": nil}, nil
	}
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return s, nil
}

func (c BuiltinConfig) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}
