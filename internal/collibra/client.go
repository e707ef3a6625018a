// Package collibra is the client for the governance catalog's REST API:
// asset search and bulk writes, attributes, relations, responsibilities,
// users and database metadata synchronization.
package collibra

import (
	"context"
	"net/http"
	"time"

	"github.com/juju/clock"

	"github.com/agentstation/dqsync/internal/transport"
	"github.com/agentstation/dqsync/pkg/constants"
	"github.com/agentstation/dqsync/pkg/logging"
)

// ServiceName identifies this client in errors, logs and metrics.
const ServiceName = "collibra"

// Config holds connection settings.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
	// RateLimitDelay is the wait before the single retry after a 429.
	RateLimitDelay time.Duration
	// SearchPageSize is the page limit for asset searches.
	SearchPageSize int
}

// Option configures a Client.
type Option func(*options)

type options struct {
	clock      clock.Clock
	observer   transport.CallObserver
	httpClient *http.Client
}

// WithClock sets the clock used for rate-limit waits.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithObserver reports every HTTP exchange to obs.
func WithObserver(obs transport.CallObserver) Option {
	return func(o *options) { o.observer = obs }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// Client talks to the catalog with session-level basic auth.
type Client struct {
	transport *transport.Client
	clock     clock.Clock
	pageSize  int
}

// New creates a client.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	o := &options{clock: clock.WallClock}
	for _, opt := range opts {
		opt(o)
	}
	if cfg.RateLimitDelay <= 0 {
		cfg.RateLimitDelay = constants.CatalogRateLimitDelay
	}
	if cfg.SearchPageSize <= 0 {
		cfg.SearchPageSize = constants.CatalogSearchLimit
	}

	auth := &transport.BasicAuth{Username: cfg.Username, Password: cfg.Password}
	if auth.LooksUnexpanded() {
		logging.FromContext(ctx).Warn().
			Msg("Catalog password looks like an unexpanded ${...} placeholder, check environment variable loading")
	}

	tc, err := transport.New(transport.Config{
		Service:         ServiceName,
		BaseURL:         cfg.BaseURL,
		Auth:            auth,
		Timeout:         cfg.Timeout,
		RateLimitDelays: []time.Duration{cfg.RateLimitDelay},
		Clock:           o.clock,
		Observer:        o.observer,
		HTTPClient:      o.httpClient,
	})
	if err != nil {
		return nil, err
	}
	return &Client{transport: tc, clock: o.clock, pageSize: cfg.SearchPageSize}, nil
}

// ApplicationInfo returns the catalog version and serves as the connection test.
func (c *Client) ApplicationInfo(ctx context.Context) (*ApplicationInfo, error) {
	resp, err := c.transport.Do(ctx, transport.Request{Method: http.MethodGet, Path: "rest/2.0/application/info"})
	if err != nil {
		return nil, err
	}
	var info ApplicationInfo
	if err := resp.Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) do(ctx context.Context, r transport.Request, target any) (*transport.Response, error) {
	resp, err := c.transport.Do(ctx, r)
	if err != nil {
		return resp, err
	}
	if target == nil {
		return resp, nil
	}
	return resp, resp.Decode(target)
}
