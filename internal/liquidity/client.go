// Package liquidity talks to the external pool protocol that graduated
// tokens migrate into.
package liquidity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/irfndi/AetherDEX/apps/launchpad/internal/apperrors"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/metrics"
	"github.com/shopspring/decimal"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 5 * time.Second
)

// errNotFound marks a 404 from an existence check
var errNotFound = errors.New("not found")

// Resource is an on-chain object the protocol created for a token
type Resource struct {
	Address   string `json:"address"`
	Signature string `json:"signature,omitempty"`
}

// Pool is a token's liquidity pool
type Pool struct {
	Address   string `json:"address"`
	LPMint    string `json:"lp_mint"`
	Funded    bool   `json:"funded"`
	LPLocked  bool   `json:"lp_locked"`
	Signature string `json:"signature,omitempty"`
}

// PoolFeeMetrics reports fees accrued by a graduated token's pool
type PoolFeeMetrics struct {
	PoolAddress    string          `json:"pool_address"`
	TotalFeesSol   decimal.Decimal `json:"total_fees_sol"`
	TotalFeesToken decimal.Decimal `json:"total_fees_token"`
	Volume24hSol   decimal.Decimal `json:"volume_24h_sol"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// MetadataRequest creates token metadata
type MetadataRequest struct {
	Mint   string `json:"mint"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// LockerRequest creates the creator's fee locker
type LockerRequest struct {
	Mint    string `json:"mint"`
	Creator string `json:"creator"`
}

// MigrateRequest moves curve liquidity into a pool
type MigrateRequest struct {
	Mint        string          `json:"mint"`
	SolAmount   decimal.Decimal `json:"sol_amount"`
	TokenAmount decimal.Decimal `json:"token_amount"`
}

// Protocol is the pool protocol surface graduation drives.
// Get* methods return nil, nil when the object does not exist yet.
type Protocol interface {
	GetMetadata(ctx context.Context, mint string) (*Resource, error)
	CreateMetadata(ctx context.Context, req MetadataRequest) (*Resource, error)
	GetLocker(ctx context.Context, mint string) (*Resource, error)
	CreateLocker(ctx context.Context, req LockerRequest) (*Resource, error)
	GetPool(ctx context.Context, mint string) (*Pool, error)
	CreatePool(ctx context.Context, mint string) (*Pool, error)
	Migrate(ctx context.Context, pool string, req MigrateRequest) (*Resource, error)
	LockLP(ctx context.Context, pool string) (*Resource, error)
	GetPoolFeeMetrics(ctx context.Context, pool string) (*PoolFeeMetrics, error)
}

// Client is the HTTP implementation of Protocol.
// Reads retry with backoff; creates are attempted once since the caller
// re-checks existence before retrying a step.
type Client struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
}

// ClientOption configures Client
type ClientOption func(*Client)

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// NewClient creates a protocol client for baseURL
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: defaultTimeout},
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) GetMetadata(ctx context.Context, mint string) (*Resource, error) {
	var out Resource
	return found(&out, c.get(ctx, "get_metadata", "/v1/metadata/"+url.PathEscape(mint), &out))
}

func (c *Client) CreateMetadata(ctx context.Context, req MetadataRequest) (*Resource, error) {
	var out Resource
	if err := c.post(ctx, "create_metadata", "/v1/metadata", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetLocker(ctx context.Context, mint string) (*Resource, error) {
	var out Resource
	return found(&out, c.get(ctx, "get_locker", "/v1/lockers/"+url.PathEscape(mint), &out))
}

func (c *Client) CreateLocker(ctx context.Context, req LockerRequest) (*Resource, error) {
	var out Resource
	if err := c.post(ctx, "create_locker", "/v1/lockers", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPool(ctx context.Context, mint string) (*Pool, error) {
	var out Pool
	return found(&out, c.get(ctx, "get_pool", "/v1/pools?mint="+url.QueryEscape(mint), &out))
}

func (c *Client) CreatePool(ctx context.Context, mint string) (*Pool, error) {
	var out Pool
	if err := c.post(ctx, "create_pool", "/v1/pools", map[string]string{"mint": mint}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Migrate(ctx context.Context, pool string, req MigrateRequest) (*Resource, error) {
	var out Resource
	if err := c.post(ctx, "migrate", "/v1/pools/"+url.PathEscape(pool)+"/migrate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LockLP(ctx context.Context, pool string) (*Resource, error) {
	var out Resource
	if err := c.post(ctx, "lock_lp", "/v1/pools/"+url.PathEscape(pool)+"/lock-lp", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPoolFeeMetrics(ctx context.Context, pool string) (*PoolFeeMetrics, error) {
	var out PoolFeeMetrics
	if err := c.get(ctx, "get_pool_fee_metrics", "/v1/pools/"+url.PathEscape(pool)+"/fees", &out); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, apperrors.ErrProtocol.WithReason("pool %s not found", pool)
		}
		return nil, err
	}
	return &out, nil
}

// found maps a 404 to a nil result
func found[T any](out *T, err error) (*T, error) {
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, op, path string, out interface{}) error {
	return c.do(ctx, op, http.MethodGet, path, nil, out, c.maxRetries)
}

func (c *Client) post(ctx context.Context, op, path string, in, out interface{}) error {
	return c.do(ctx, op, http.MethodPost, path, in, out, 0)
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out interface{}, retries int) error {
	start := time.Now()
	defer func() {
		metrics.RPCDuration.WithLabelValues("protocol", op).Observe(time.Since(start).Seconds())
	}()

	err := c.attempt(ctx, method, path, in, out, retries)
	if err == nil || errors.Is(err, errNotFound) {
		return err
	}
	metrics.RPCErrors.WithLabelValues("protocol", op).Inc()
	return apperrors.ErrProtocol.Wrap(fmt.Errorf("%s: %w", op, err))
}

func (c *Client) attempt(ctx context.Context, method, path string, in, out interface{}, retries int) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("X-API-Key", c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound && method == http.MethodGet:
			return errNotFound
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
			continue
		case resp.StatusCode >= 300:
			// Client errors will not change on retry
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		if out != nil && len(raw) > 0 {
			if err := json.Unmarshal(raw, out); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
