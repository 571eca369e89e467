package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/studyarena/pkarena/internal/domains/dtos"
	"github.com/studyarena/pkarena/pkg/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Config struct {
	BaseUrl      string
	Timeout      time.Duration
	CacheTTL     time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
}

// Client is the single chokepoint for all REST calls: bearer auth,
// transient retry, GET dedup and caching, and single-flight token
// refresh all live here.
type Client struct {
	cfg     Config
	baseUrl *url.URL
	http    *http.Client
	session *SessionStore
	cache   *responseCache

	flight  singleflight.Group
	refresh singleflight.Group

	mu            sync.RWMutex
	onAuthExpired func()
}

func NewClient(cfg Config, session *SessionStore) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = time.Second
	}
	baseUrl, err := url.Parse(cfg.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}
	return &Client{
		cfg:     cfg,
		baseUrl: baseUrl,
		http:    &http.Client{Timeout: cfg.Timeout},
		session: session,
		cache:   newResponseCache(cfg.CacheTTL),
	}, nil
}

func (c *Client) Session() *SessionStore {
	return c.session
}

// OnAuthExpired registers the handler invoked after a terminal auth
// failure, once the session and cache have been cleared.
func (c *Client) OnAuthExpired(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAuthExpired = fn
}

type requestOptions struct {
	noCache bool
}

type RequestOption func(*requestOptions)

// WithoutCache bypasses the GET cache for data that must be fresh.
func WithoutCache() RequestOption {
	return func(o *requestOptions) {
		o.noCache = true
	}
}

// Get deduplicates concurrent identical requests and serves recent
// responses from the TTL cache.
func (c *Client) Get(ctx context.Context, path string, params url.Values, opts ...RequestOption) (json.RawMessage, error) {
	var options requestOptions
	for _, opt := range opts {
		opt(&options)
	}

	endpoint := c.endpoint(path, params)
	key := http.MethodGet + " " + endpoint
	if !options.noCache {
		if data, ok := c.cache.get(key); ok {
			return data, nil
		}
	}

	value, err, _ := c.flight.Do(key, func() (interface{}, error) {
		data, err := c.execute(ctx, http.MethodGet, endpoint, nil, true)
		if err != nil {
			return nil, err
		}
		if !options.noCache {
			c.cache.put(key, data)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(json.RawMessage), nil
}

func (c *Client) Post(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	return c.send(ctx, http.MethodPost, path, body)
}

func (c *Client) Put(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	return c.send(ctx, http.MethodPut, path, body)
}

func (c *Client) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.send(ctx, http.MethodDelete, path, nil)
}

// Logout drops the session and fully invalidates the GET cache.
func (c *Client) Logout() error {
	c.cache.clear()
	return c.session.Clear()
}

func (c *Client) send(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode body: %w", err)
		}
	}
	return c.execute(ctx, method, c.endpoint(path, nil), payload, true)
}

// execute runs the request with transient retry, then performs at most
// one refresh-and-retry round on a 401. A second 401 after a fresh
// token surfaces as-is.
func (c *Client) execute(ctx context.Context, method, endpoint string, body []byte, allowAuthRetry bool) (json.RawMessage, error) {
	data, err := c.executeWithRetry(ctx, method, endpoint, body)
	if err == nil || !isUnauthorized(err) {
		return data, err
	}

	access, refreshToken := c.session.Tokens()
	if !allowAuthRetry || access == "" || refreshToken == "" {
		return nil, err
	}

	if refreshErr := c.refreshTokens(ctx); refreshErr != nil {
		logging.Warn("token refresh failed", zap.Error(refreshErr))
		c.expireSession()
		return nil, ErrAuthExpired
	}
	return c.executeWithRetry(ctx, method, endpoint, body)
}

func (c *Client) executeWithRetry(ctx context.Context, method, endpoint string, body []byte) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.RetryBackoff * (1 << (attempt - 1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			logging.Debug("retrying request",
				zap.String("method", method),
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt),
			)
		}
		data, err := c.doOnce(ctx, method, endpoint, body)
		if err == nil {
			return data, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, body []byte) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if access, _ := c.session.Tokens(); access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Message: "request failed", cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Status: resp.StatusCode, Message: "failed to read body", cause: err}
	}

	// Best effort on error statuses; bodies there are not always enveloped.
	var envelope dtos.Response
	decodeErr := json.Unmarshal(raw, &envelope)

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &Error{Kind: KindAuth, Status: resp.StatusCode, Code: envelope.Code, Message: envelope.Message}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: KindTransport, Status: resp.StatusCode, Code: envelope.Code, Message: envelope.Message}
	}
	if decodeErr != nil {
		return nil, &Error{Kind: KindDecode, Status: resp.StatusCode, Message: "malformed response envelope", cause: decodeErr}
	}
	// Application errors carry code != 200 inside a 2xx response.
	if envelope.Code != 0 && envelope.Code != 200 {
		if envelope.Code == 401 {
			return nil, &Error{Kind: KindAuth, Status: resp.StatusCode, Code: envelope.Code, Message: envelope.Message}
		}
		return nil, &Error{Kind: KindApplication, Status: resp.StatusCode, Code: envelope.Code, Message: envelope.Message}
	}
	return envelope.Data, nil
}

// refreshTokens performs the single-flight refresh: concurrent 401s
// share one refresh call and all resume with the new token.
func (c *Client) refreshTokens(ctx context.Context) error {
	_, err, _ := c.refresh.Do("refresh", func() (interface{}, error) {
		_, refreshToken := c.session.Tokens()
		if refreshToken == "" {
			return nil, ErrNoSession
		}
		payload, err := json.Marshal(dtos.RefreshRequest{RefreshToken: refreshToken})
		if err != nil {
			return nil, fmt.Errorf("failed to encode refresh request: %w", err)
		}
		data, err := c.executeWithRetry(ctx, http.MethodPost, c.endpoint("/auth/refresh", nil), payload)
		if err != nil {
			return nil, err
		}
		var refreshed dtos.RefreshResponse
		if err := json.Unmarshal(data, &refreshed); err != nil {
			return nil, &Error{Kind: KindDecode, Message: "malformed refresh payload", cause: err}
		}
		if err := c.session.SetTokens(refreshed.Token, refreshed.RefreshToken); err != nil {
			return nil, err
		}
		logging.Info("access token refreshed")
		return nil, nil
	})
	return err
}

func (c *Client) expireSession() {
	c.cache.clear()
	if err := c.session.Clear(); err != nil {
		logging.Error("failed to clear session", zap.Error(err))
	}
	c.mu.RLock()
	handler := c.onAuthExpired
	c.mu.RUnlock()
	if handler != nil {
		handler()
	}
}

func (c *Client) endpoint(path string, params url.Values) string {
	u := c.baseUrl.JoinPath(path)
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

func decodePayload(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &Error{Kind: KindDecode, Message: "malformed response payload", cause: err}
	}
	return nil
}
