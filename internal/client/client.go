// Package client implements the one-shot esub request/reply surface:
// node resolution, sub, and rep over plain HTTP. Persistent sessions live
// in package session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/esub/esub-go/internal/config"
	"github.com/esub/esub-go/internal/observability"
	"github.com/esub/esub-go/internal/protocol"
	"github.com/esub/esub-go/internal/version"
)

const (
	infoRequestTimeout = 2 * time.Second

	poolMaxIdleConns    = 10
	poolMaxConnsPerHost = 100
	poolIdleConnTimeout = 90 * time.Second
)

var ErrStatus = errors.New("client: unexpected status")

// CallOptions override session defaults for one call. Zero values fall
// back to the Client's configured defaults.
type CallOptions struct {
	Token   string
	Node    string
	Timeout time.Duration
	Psub    bool
}

// Client is the one-shot request/reply client. It owns the last-resolved
// node address and its pooled HTTP transport; the pool is torn down and
// rebuilt only when the target address changes. Safe for concurrent use.
type Client struct {
	opts    config.Options
	backoff BackoffConfig
	logger  zerolog.Logger

	mu       sync.Mutex
	addr     string
	httpc    *http.Client
	cachedIP string
	cachedAt time.Time
	rng      *rand.Rand
}

func New(opts config.Options) *Client {
	return &Client{
		opts:    opts,
		backoff: DefaultBackoffConfig(),
		logger:  log.With().Str("component", "client").Logger(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// session returns the pooled HTTP client for node, rebuilding the pool if
// the address changed since the last call.
func (c *Client) session(node string) (string, *http.Client) {
	addr := c.opts.Addr()
	if node != "" {
		addr = fmt.Sprintf("%s://%s:%d", c.opts.Protocol, node, c.opts.Port)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.addr != addr || c.httpc == nil {
		if c.httpc != nil {
			c.httpc.CloseIdleConnections()
		}
		c.httpc = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:    poolMaxIdleConns,
				MaxConnsPerHost: poolMaxConnsPerHost,
				IdleConnTimeout: poolIdleConnTimeout,
			},
		}
		c.addr = addr
	}
	return addr, c.httpc
}

// NodeIP resolves the currently reachable node IP via /info, caching the
// answer for the configured interval.
func (c *Client) NodeIP(ctx context.Context) (string, error) {
	c.mu.Lock()
	ttl := c.opts.NodeCacheTTL
	if c.cachedIP != "" && ttl > 0 && time.Since(c.cachedAt) < ttl {
		ip := c.cachedIP
		c.mu.Unlock()
		return ip, nil
	}
	c.mu.Unlock()

	addr, httpc := c.session("")
	ctx, cancel := context.WithTimeout(ctx, infoRequestTimeout)
	defer cancel()

	body, status, err := c.do(ctx, httpc, http.MethodGet, protocol.InfoURL(addr), nil)
	observability.RecordOneShot("info", status)
	if err != nil {
		return "", err
	}

	var info struct {
		IP string `json:"ip"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return "", fmt.Errorf("client: decode /info: %w", err)
	}

	c.mu.Lock()
	c.cachedIP = info.IP
	c.cachedAt = time.Now()
	c.mu.Unlock()
	return info.IP, nil
}

// Sub waits for a value at key and returns it.
func (c *Client) Sub(ctx context.Context, key string, opts CallOptions) ([]byte, error) {
	token := opts.Token
	if token == "" {
		token = c.opts.Token
	}
	addr, httpc := c.session(opts.Node)

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	body, status, err := c.do(ctx, httpc, http.MethodGet, protocol.SubURL(addr, key, token), nil)
	observability.RecordOneShot("sub", status)
	return body, err
}

// Rep supplies data to one waiting sub at key.
func (c *Client) Rep(ctx context.Context, key string, data []byte, opts CallOptions) error {
	token := opts.Token
	if token == "" {
		token = c.opts.Token
	}
	addr, httpc := c.session(opts.Node)

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	_, status, err := c.do(ctx, httpc, http.MethodPost, protocol.RepURL(addr, key, token, opts.Psub), data)
	observability.RecordOneShot("rep", status)
	return err
}

// do issues one request with the configured retry budget. Attempts are
// spaced by exponential backoff; a non-2xx status consumes an attempt.
func (c *Client) do(ctx context.Context, httpc *http.Client, method, url string, payload []byte) ([]byte, int, error) {
	attempts := c.opts.Retries + 1
	var lastErr error
	lastStatus := 0

	for attempt := 1; attempt <= attempts; attempt++ {
		body, status, err := c.doOnce(ctx, httpc, method, url, payload)
		if err == nil {
			return body, status, nil
		}
		lastErr = err
		lastStatus = status
		if ctx.Err() != nil {
			break
		}
		if attempt == attempts {
			break
		}
		c.logger.Warn().Str("url", url).Int("attempt", attempt).Err(err).Msg("request retry")
		c.mu.Lock()
		delay := NextBackoffDelay(c.backoff, attempt, c.rng)
		c.mu.Unlock()
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, lastStatus, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastStatus, lastErr
}

func (c *Client) doOnce(ctx context.Context, httpc *http.Client, method, url string, payload []byte) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := httpc.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("client: %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("client: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, fmt.Errorf("%w: %s %s: %d", ErrStatus, method, url, resp.StatusCode)
	}
	return body, resp.StatusCode, nil
}
