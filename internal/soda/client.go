// Package soda is the client for the quality monitoring platform's REST API:
// paginated dataset and check listing, user search and dataset owner updates.
package soda

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/juju/clock"
	"golang.org/x/time/rate"

	"github.com/agentstation/dqsync/internal/transport"
	"github.com/agentstation/dqsync/pkg/constants"
	"github.com/agentstation/dqsync/pkg/errors"
	"github.com/agentstation/dqsync/pkg/logging"
	"github.com/agentstation/dqsync/pkg/quality"
)

// ServiceName identifies this client in errors, logs and metrics.
const ServiceName = "soda"

// Config holds connection and pacing settings.
type Config struct {
	BaseURL      string
	APIKeyID     string
	APIKeySecret string
	Timeout      time.Duration

	// PageSize is requested on every list call.
	PageSize int
	// PauseEvery inserts PageDelay before every PauseEvery-th page.
	PauseEvery int
	PageDelay  time.Duration
	// RateLimitDelays are the successive waits after a 429.
	RateLimitDelays []time.Duration
	// RequestsPerSecond paces requests when positive.
	RequestsPerSecond float64
}

// DefaultConfig returns the pacing defaults with no credentials.
func DefaultConfig() Config {
	return Config{
		Timeout:         constants.DefaultHTTPTimeout,
		PageSize:        constants.SourcePageSize,
		PauseEvery:      constants.SourcePauseEvery,
		PageDelay:       constants.SourcePageDelay,
		RateLimitDelays: constants.SourceRateLimitDelays,
	}
}

// Option configures a Client.
type Option func(*options)

type options struct {
	clock      clock.Clock
	observer   transport.CallObserver
	httpClient *http.Client
}

// WithClock sets the clock used for page pauses and rate-limit waits.
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

// Client reads datasets and checks and writes dataset ownership.
type Client struct {
	transport *transport.Client
	cfg       Config
	clock     clock.Clock
}

// New creates a client.
func New(cfg Config, opts ...Option) (*Client, error) {
	o := &options{clock: clock.WallClock}
	for _, opt := range opts {
		opt(o)
	}

	defaults := DefaultConfig()
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaults.PageSize
	}
	if cfg.PauseEvery <= 0 {
		cfg.PauseEvery = defaults.PauseEvery
	}
	if cfg.RateLimitDelays == nil {
		cfg.RateLimitDelays = defaults.RateLimitDelays
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	tc, err := transport.New(transport.Config{
		Service:         ServiceName,
		BaseURL:         cfg.BaseURL,
		Auth:            &transport.BasicAuth{Username: cfg.APIKeyID, Password: cfg.APIKeySecret},
		Timeout:         cfg.Timeout,
		RateLimitDelays: cfg.RateLimitDelays,
		Limiter:         limiter,
		Clock:           o.clock,
		Observer:        o.observer,
		HTTPClient:      o.httpClient,
	})
	if err != nil {
		return nil, err
	}
	return &Client{transport: tc, cfg: cfg, clock: o.clock}, nil
}

// TestConnection verifies credentials and returns the organisation.
func (c *Client) TestConnection(ctx context.Context) (*Organisation, error) {
	resp, err := c.transport.Do(ctx, transport.Request{Method: http.MethodGet, Path: "test-login"})
	if err != nil {
		return nil, err
	}
	var org Organisation
	if err := resp.Decode(&org); err != nil {
		return nil, err
	}
	return &org, nil
}

// ListDatasets returns every dataset across all pages.
func (c *Client) ListDatasets(ctx context.Context) ([]quality.Dataset, error) {
	wire, err := paginate[wireDataset](ctx, c, "datasets", nil)
	if err != nil {
		return nil, errors.WrapResource("list", "datasets", "", err)
	}
	out := make([]quality.Dataset, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.toDataset())
	}
	return out, nil
}

// ListChecks returns every check and monitor of a dataset across all pages.
func (c *Client) ListChecks(ctx context.Context, datasetID string) ([]quality.Check, error) {
	wire, err := paginate[wireCheck](ctx, c, "checks", url.Values{"datasetId": {datasetID}})
	if err != nil {
		return nil, errors.WrapResource("list", "checks", datasetID, err)
	}
	out := make([]quality.Check, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.toCheck())
	}
	return out, nil
}

// FindUsers searches users by name or email. Only the first page is read.
func (c *Client) FindUsers(ctx context.Context, term string, size int) ([]quality.User, error) {
	if size <= 0 {
		size = constants.SourceUserSearchSize
	}
	resp, err := c.transport.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "users",
		Query:  url.Values{"search": {term}, "size": {strconv.Itoa(size)}},
	})
	if err != nil {
		return nil, err
	}
	var p page[wireUser]
	if err := resp.Decode(&p); err != nil {
		if errors.IsNoData(err) {
			return nil, nil
		}
		return nil, err
	}
	users := make([]quality.User, 0, len(p.Content))
	for _, u := range p.Content {
		users = append(users, u.toUser())
	}
	return users, nil
}

// UpdateDatasetOwners replaces the owner set of a dataset with the given users.
func (c *Client) UpdateDatasetOwners(ctx context.Context, datasetID string, userIDs []string) (*quality.Dataset, error) {
	body := datasetUpdate{Owners: make([]ownerUpdate, 0, len(userIDs))}
	for _, id := range userIDs {
		body.Owners = append(body.Owners, ownerUpdate{Type: "user", UserID: id})
	}
	resp, err := c.transport.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "datasets/" + url.PathEscape(datasetID),
		Body:   body,
	})
	if err != nil {
		return nil, errors.WrapResource("update", "dataset", datasetID, err)
	}
	var w wireDataset
	if err := resp.Decode(&w); err != nil {
		if errors.IsNoData(err) {
			return nil, nil
		}
		return nil, err
	}
	ds := w.toDataset()
	return &ds, nil
}

// paginate walks a list endpoint until totalPages is exhausted. The same
// page is requested again after a 429 by the transport layer.
func paginate[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	logger := logging.FromContext(ctx)
	var all []T

	for pageNum := 0; ; pageNum++ {
		if pageNum > 0 && pageNum%c.cfg.PauseEvery == 0 && c.cfg.PageDelay > 0 {
			logger.Debug().Int("page", pageNum).Dur("delay", c.cfg.PageDelay).Msg("Pausing between pages")
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", errors.ErrCanceled, ctx.Err())
			case <-c.clock.After(c.cfg.PageDelay):
			}
		}

		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(pageNum))
		q.Set("size", strconv.Itoa(c.cfg.PageSize))

		resp, err := c.transport.Do(ctx, transport.Request{Method: http.MethodGet, Path: path, Query: q})
		if err != nil {
			return nil, err
		}

		var p page[T]
		if err := resp.Decode(&p); err != nil {
			if errors.IsNoData(err) {
				break
			}
			return nil, err
		}
		all = append(all, p.Content...)
		logger.Debug().
			Str("endpoint", path).
			Int("page", pageNum+1).
			Int("total_pages", p.TotalPages).
			Int("items", len(all)).
			Msg("Fetched page")

		if pageNum+1 >= p.TotalPages {
			break
		}
	}
	return all, nil
}
