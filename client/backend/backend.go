// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package backend is a client of the wallet's REST backend, which keeps the
// swap history and serves swap and staking data.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tonwallet/walletcore/wallet"
	"github.com/tonwallet/walletcore/wallet/walletnet"
	"golang.org/x/time/rate"
)

const (
	// DefaultSwapVersion is sent when the backend config doesn't name one.
	DefaultSwapVersion = 3
	// DefaultRequestsPerSecond is the default client-side rate limit.
	DefaultRequestsPerSecond = 10

	authTokenHeader = "X-Auth-Token"
	configCacheTTL  = time.Minute
)

// ServerError is a failed backend call. StatusCode is 0 if the backend wasn't
// reached.
type ServerError struct {
	StatusCode int
	Message    string
	err        error
}

// Error satisfies the error interface.
func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend error %d: %v", e.StatusCode, e.err)
}

// Unwrap returns the underlying error.
func (e *ServerError) Unwrap() error {
	return e.err
}

// IsNotFound checks whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var se *ServerError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Config is the backend client configuration.
type Config struct {
	URL string
	// RequestsPerSecond limits the request rate. 0 means the default.
	RequestsPerSecond float64
	// ClientVersion is sent with every request when set.
	ClientVersion string
}

// Client is the backend client. It is safe for concurrent use.
type Client struct {
	url           string
	clientVersion string
	limiter       *rate.Limiter
	log           wallet.Logger

	cfgMtx     sync.Mutex
	cfg        *Settings
	cfgExpires time.Time
}

// New creates a Client.
func New(cfg *Config, logger wallet.Logger) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", cfg.URL)
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	return &Client{
		url:           strings.TrimRight(cfg.URL, "/"),
		clientVersion: cfg.ClientVersion,
		limiter:       rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		log:           logger,
	}, nil
}

type callOptions struct {
	authToken string
	// allowBadRequest makes 400 responses decode into the error result
	// instead of failing.
	allowBadRequest bool
}

// badRequest is the body of a 400 response.
type badRequest struct {
	Error string `json:"error"`
}

func (c *Client) endpoint(path string, query url.Values) string {
	uri := c.url + path
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}
	return uri
}

// call performs a request. When opts.allowBadRequest is set, the error message
// of a 400 response is returned as the string return and err is nil.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, thing any, opts *callOptions) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	if opts == nil {
		opts = new(callOptions)
	}
	var reqOpts []*walletnet.RequestOption
	if opts.authToken != "" {
		reqOpts = append(reqOpts, walletnet.WithRequestHeader(authTokenHeader, opts.authToken))
	}
	if c.clientVersion != "" {
		reqOpts = append(reqOpts, walletnet.WithRequestHeader("X-App-Version", c.clientVersion))
	}
	var br badRequest
	reqOpts = append(reqOpts, walletnet.WithErrorParsing(&br))

	uri := c.endpoint(path, query)
	var err error
	switch method {
	case http.MethodGet:
		err = walletnet.Get(ctx, uri, thing, reqOpts...)
	case http.MethodPost:
		err = walletnet.Post(ctx, uri, thing, body, reqOpts...)
	case http.MethodPatch:
		err = walletnet.Patch(ctx, uri, thing, body, reqOpts...)
	default:
		return "", fmt.Errorf("unsupported method %s", method)
	}
	if err == nil {
		return "", nil
	}
	var httpErr *walletnet.HTTPError
	if !errors.As(err, &httpErr) {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &ServerError{err: err}
	}
	if httpErr.StatusCode == http.StatusBadRequest && opts.allowBadRequest && br.Error != "" {
		return br.Error, nil
	}
	c.log.Debugf("%s %s failed: %v", method, path, err)
	return "", &ServerError{StatusCode: httpErr.StatusCode, Message: br.Error, err: err}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, thing any) error {
	_, err := c.call(ctx, http.MethodGet, path, query, nil, thing, nil)
	return err
}

func (c *Client) post(ctx context.Context, path string, body, thing any, opts *callOptions) (string, error) {
	return c.call(ctx, http.MethodPost, path, nil, body, thing, opts)
}

// Settings is the backend-provided client configuration.
type Settings struct {
	SwapVersion int `json:"swapVersion"`
	// CexSwapSlugs overrides the tokens that can be swapped cross-chain.
	CexSwapSlugs []string `json:"cexSwapSlugs,omitempty"`
}

// Settings fetches the backend config, cached for a minute. A stale cached
// config is returned if the refresh fails.
func (c *Client) Settings(ctx context.Context) (*Settings, error) {
	c.cfgMtx.Lock()
	defer c.cfgMtx.Unlock()
	if c.cfg != nil && time.Now().Before(c.cfgExpires) {
		return c.cfg, nil
	}
	cfg := new(Settings)
	if err := c.get(ctx, "/backend/config", nil, cfg); err != nil {
		if c.cfg != nil {
			c.log.Warnf("using stale backend config: %v", err)
			return c.cfg, nil
		}
		return nil, err
	}
	c.cfg, c.cfgExpires = cfg, time.Now().Add(configCacheTTL)
	return cfg, nil
}

// swapVersion is the swap API version to send. The default is used if the
// backend config can't be fetched.
func (c *Client) swapVersion(ctx context.Context) int {
	cfg, err := c.Settings(ctx)
	if err != nil || cfg.SwapVersion == 0 {
		return DefaultSwapVersion
	}
	return cfg.SwapVersion
}

// withFields re-encodes a request with extra fields.
func withFields(req any, fields map[string]any) (map[string]any, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	m := make(map[string]any)
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for k, v := range fields {
		m[k] = v
	}
	return m, nil
}
