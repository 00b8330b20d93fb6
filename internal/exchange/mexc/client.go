package mexc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"spot-trader/internal/logger"
	"spot-trader/internal/types"
)

// Interval aliases accepted on top of the exchange's canonical set.
var (
	validIntervals = map[string]bool{
		"1m": true, "5m": true, "15m": true, "30m": true,
		"60m": true, "4h": true, "1d": true, "1W": true, "1M": true,
	}
	intervalAliases = map[string]string{
		"1h": "60m", "4hr": "4h", "1w": "1W", "1mo": "1M",
	}
)

// NormalizeInterval resolves aliases and validates against the exchange's
// accepted set.
func NormalizeInterval(iv string) (string, error) {
	iv = strings.TrimSpace(iv)
	if alias, ok := intervalAliases[iv]; ok {
		iv = alias
	}
	if !validIntervals[iv] {
		known := make([]string, 0, len(validIntervals))
		for k := range validIntervals {
			known = append(known, k)
		}
		sort.Strings(known)
		return "", fmt.Errorf("%w: '%s' not in %v", ErrInvalidInterval, iv, known)
	}
	return iv, nil
}

// Params configures the exchange client. Key/Secret may be empty for a
// public-data-only client; signed calls then fail with ErrMissingCredentials.
type Params struct {
	BaseURL string
	Key     string
	Secret  string
	Timeout time.Duration
}

// Client talks to the MEXC spot REST API.
type Client struct {
	baseURL    string
	key        string
	secret     string
	httpClient *http.Client
	recvWindow int64
	now        func() time.Time
}

func New(p Params) *Client {
	if p.BaseURL == "" {
		p.BaseURL = "https://api.mexc.com"
	}
	if p.Timeout == 0 {
		p.Timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(p.BaseURL, "/"),
		key:        p.Key,
		secret:     p.Secret,
		httpClient: &http.Client{Timeout: p.Timeout},
		recvWindow: 5000,
		now:        time.Now,
	}
}

// get performs an unauthenticated GET and returns the raw body.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ExchangeError{Status: resp.StatusCode, Body: truncate(string(body), 300)}
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ExchangeInfo fetches per-symbol trading metadata. With no symbols it
// returns the whole venue.
func (c *Client) ExchangeInfo(ctx context.Context, symbols []string) ([]types.SymbolMeta, error) {
	params := url.Values{}
	switch len(symbols) {
	case 0:
	case 1:
		params.Set("symbol", symbols[0])
	default:
		params.Set("symbols", strings.Join(symbols, ","))
	}

	body, err := c.get(ctx, "/api/v3/exchangeInfo", params)
	if err != nil {
		return nil, err
	}
	var info exchangeInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parse exchangeInfo: %w", err)
	}

	out := make([]types.SymbolMeta, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		out = append(out, s.toMeta())
	}
	logger.Debug(ctx, "Exchange metadata fetched", "symbols", len(out))
	return out, nil
}

// Candles fetches up to limit closed klines, ascending by open time.
func (c *Client) Candles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	iv, err := NormalizeInterval(interval)
	if err != nil {
		return nil, err
	}
	if limit > 1000 {
		limit = 1000
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", iv)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/api/v3/klines", params)
	if err != nil {
		return nil, err
	}
	candles, err := parseKlines(body)
	if err != nil {
		return nil, fmt.Errorf("parse klines for %s: %w", symbol, err)
	}
	if len(candles) == 0 {
		return nil, ErrEmptyKlines
	}
	return candles, nil
}
