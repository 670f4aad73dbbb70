// Package fxapi is the HTTP client for the upstream forex market-data
// provider: session login (password + TOTP), historical candles, and spot
// quotes.
//
// The provider enforces a hard rate limit; 429 responses surface as
// ErrRateLimited so callers can back off specifically instead of treating
// them as generic failures.
package fxapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"fxsignals/internal/model"

	"github.com/pquerna/otp/totp"
)

// ErrRateLimited is returned when the provider rejects a call with HTTP 429.
var ErrRateLimited = errors.New("fxapi: rate limited")

const (
	defaultBaseURL = "https://api.fxdata.example.com"
	defaultTimeout = 10 * time.Second
)

// Config configures the provider client.
type Config struct {
	APIKey     string
	ClientID   string
	Password   string
	TOTPSecret string

	BaseURL string        // default: provider production endpoint
	Timeout time.Duration // default: 10s
}

// Client talks to the provider. Satisfies model.CandleSource and
// model.QuoteSource.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
}

// New creates a Client. No network traffic happens until the first call.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// envelope is the provider's standard response wrapper.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Login opens a session: a fresh TOTP code is generated per attempt and the
// returned token is attached to subsequent requests.
func (c *Client) Login(ctx context.Context) error {
	code, err := totp.GenerateCode(c.cfg.TOTPSecret, time.Now())
	if err != nil {
		return fmt.Errorf("totp generation: %w", err)
	}

	body, err := json.Marshal(map[string]string{
		"client_id": c.cfg.ClientID,
		"password":  c.cfg.Password,
		"totp":      code,
	})
	if err != nil {
		return fmt.Errorf("marshal login: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/v1/session", strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Token == "" {
		return fmt.Errorf("login: unexpected session payload")
	}

	c.mu.Lock()
	c.accessToken = data.Token
	c.mu.Unlock()
	log.Printf("[fxapi] session opened for %s", c.cfg.ClientID)
	return nil
}

// candlePayload is one provider candle row.
type candlePayload struct {
	Time   int64   `json:"time"` // unix seconds, bucket open
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// FetchCandles returns up to count candles for symbol, oldest first.
func (c *Client) FetchCandles(ctx context.Context, symbol string, interval model.Interval, count int) ([]model.Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", string(interval))
	q.Set("count", strconv.Itoa(count))

	data, err := c.get(ctx, "/v1/candles", q)
	if err != nil {
		return nil, fmt.Errorf("fetch candles %s %s: %w", symbol, interval, err)
	}

	var rows []candlePayload
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("fetch candles %s: malformed payload: %w", symbol, err)
	}

	candles := make([]model.Candle, len(rows))
	for i, r := range rows {
		candles[i] = model.Candle{
			OpenTime: time.Unix(r.Time, 0).UTC(),
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			Volume:   r.Volume,
		}
	}
	// The provider usually delivers oldest-first already; sort defensively
	// since every downstream consumer assumes chronological order.
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime.Before(candles[j].OpenTime)
	})
	return candles, nil
}

// quotePayload is one provider quote row.
type quotePayload struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
}

// FetchQuotes returns the current mid rates for the given pairs.
func (c *Client) FetchQuotes(ctx context.Context, symbols []string) ([]model.Quote, error) {
	q := url.Values{}
	q.Set("symbols", strings.Join(symbols, ","))

	data, err := c.get(ctx, "/v1/quotes", q)
	if err != nil {
		return nil, fmt.Errorf("fetch quotes: %w", err)
	}

	var rows []quotePayload
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("fetch quotes: malformed payload: %w", err)
	}

	quotes := make([]model.Quote, len(rows))
	for i, r := range rows {
		quotes[i] = model.Quote{
			Symbol:  r.Symbol,
			MidRate: (r.Bid + r.Ask) / 2,
		}
	}
	return quotes, nil
}

// get performs an authenticated GET, logging in lazily and retrying once on
// an expired session.
func (c *Client) get(ctx context.Context, path string, q url.Values) (json.RawMessage, error) {
	if c.token() == "" {
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
	}

	data, status, err := c.doGet(ctx, path, q)
	if status == http.StatusUnauthorized {
		// Session expired: one fresh login, one retry.
		log.Printf("[fxapi] session expired, re-authenticating")
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
		data, _, err = c.doGet(ctx, path, q)
		return data, err
	}
	return data, err
}

func (c *Client) doGet(ctx context.Context, path string, q url.Values) (json.RawMessage, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.cfg.APIKey)
	req.Header.Set("Authorization", "Bearer "+c.token())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, ErrRateLimited
	}
	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, fmt.Errorf("unauthorized")
	}

	env, err := decodeEnvelope(resp)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return env.Data, resp.StatusCode, nil
}

func decodeEnvelope(resp *http.Response) (*envelope, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(raw))
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("couldn't parse JSON response: %w", err)
	}
	if !env.Status {
		return nil, fmt.Errorf("provider error: %s", env.Message)
	}
	return &env, nil
}

func (c *Client) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

func truncate(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
