// Package transport is the HTTP layer shared by the quality platform and
// catalog clients: authentication, redirect inspection, rate-limit backoff,
// request pacing and call accounting.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/juju/clock"
	"golang.org/x/time/rate"

	"github.com/agentstation/dqsync/pkg/constants"
	"github.com/agentstation/dqsync/pkg/errors"
	"github.com/agentstation/dqsync/pkg/logging"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = constants.DefaultHTTPTimeout

// signInMarker identifies a redirect to an interactive login page.
const signInMarker = "/signin"

// CallObserver receives the outcome of every HTTP exchange.
type CallObserver interface {
	RecordAPICall(service string, ok bool)
}

// Config configures a Client.
type Config struct {
	// Service names the remote system in errors, logs and metrics.
	Service string
	// BaseURL is joined with each request path.
	BaseURL string
	// Auth is applied to every request.
	Auth Authenticator
	// Timeout bounds each HTTP exchange.
	Timeout time.Duration
	// RateLimitDelays are the successive waits after a 429. Once they are
	// exhausted the 429 is returned as a rate-limited APIError.
	RateLimitDelays []time.Duration
	// Limiter paces outgoing requests when set.
	Limiter *rate.Limiter
	// Clock is used for rate-limit waits. Defaults to the wall clock.
	Clock clock.Clock
	// Observer is notified of each exchange when set.
	Observer CallObserver
	// HTTPClient overrides the underlying client (tests).
	HTTPClient *http.Client
}

// Client provides HTTP client functionality with authentication.
type Client struct {
	http     *http.Client
	cfg      Config
	baseURL  *url.URL
	clock    clock.Clock
	observer CallObserver
}

// Request describes one call relative to the client's base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Endpoint   string
}

// Empty reports whether the response carries no data (204 or blank body).
func (r *Response) Empty() bool {
	return r.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(r.Body)) == 0
}

// Decode unmarshals the JSON body into target. Empty responses yield
// errors.ErrNoData; malformed bodies yield a ParseError.
func (r *Response) Decode(target any) error {
	if r.Empty() {
		return errors.ErrNoData
	}
	if err := json.Unmarshal(r.Body, target); err != nil {
		return errors.WrapParse("json", r.Endpoint, err)
	}
	return nil
}

// ErrorBody is the structured error payload returned by the catalog.
type ErrorBody struct {
	StatusCode   int               `json:"statusCode"`
	TitleMessage string            `json:"titleMessage"`
	UserMessage  string            `json:"userMessage"`
	Message      string            `json:"message"`
	ErrorCode    string            `json:"errorCode"`
	Properties   map[string]string `json:"properties"`
}

// ParseErrorBody extracts the structured error payload, if any.
func ParseErrorBody(body []byte) (ErrorBody, bool) {
	var eb ErrorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ErrorBody{}, false
	}
	return eb, eb.ErrorCode != "" || eb.UserMessage != "" || eb.Message != ""
}

// New creates a new transport client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.NewConfigError(cfg.Service, fmt.Sprintf("invalid base URL %q", cfg.BaseURL), err)
	}
	if cfg.Auth == nil {
		cfg.Auth = &NoAuth{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHTTPTimeout
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.WallClock
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	} else {
		copied := *hc
		hc = &copied
	}
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Client{
		http:     hc,
		cfg:      cfg,
		baseURL:  base,
		clock:    clk,
		observer: cfg.Observer,
	}, nil
}

// Service returns the configured service name.
func (c *Client) Service() string {
	return c.cfg.Service
}

// BaseURL returns the base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return strings.TrimRight(c.baseURL.String(), "/")
}

// Do performs the request. Any HTTP response that was received is returned,
// even alongside an error, so callers can inspect structured error bodies.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	ctx = logging.WithService(ctx, c.cfg.Service)
	target, err := c.resolve(r)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if r.Body != nil {
		if payload, err = json.Marshal(r.Body); err != nil {
			return nil, errors.WrapParse("json", r.Path, err)
		}
	}

	logger := logging.FromContext(ctx)
	for attempt := 0; ; attempt++ {
		resp, err := c.exchange(ctx, r.Method, target, r.Path, payload, true)
		if err != nil {
			return resp, err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if attempt < len(c.cfg.RateLimitDelays) {
				delay := c.cfg.RateLimitDelays[attempt]
				logger.Warn().
					Str("endpoint", r.Path).
					Dur("delay", delay).
					Int("retry", attempt+1).
					Msg("Rate limit hit, waiting before retry")
				if err := c.sleep(ctx, delay); err != nil {
					return resp, err
				}
				continue
			}
			return resp, c.statusError(resp)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return resp, errors.NewAuthenticationError(c.cfg.Service, "basic",
				"credentials rejected, verify the configured credentials are still valid", c.statusError(resp))
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return resp, c.statusError(resp)
		}
		return resp, nil
	}
}

func (c *Client) resolve(r Request) (*url.URL, error) {
	rel, err := url.Parse(strings.TrimLeft(r.Path, "/"))
	if err != nil {
		return nil, errors.NewValidationError("path", r.Path, err.Error())
	}
	target := c.baseURL.ResolveReference(rel)
	if len(r.Query) > 0 {
		target.RawQuery = r.Query.Encode()
	}
	return target, nil
}

// exchange sends one request. Redirects to a sign-in page are authentication
// failures; any other redirect is followed once when follow is set.
func (c *Client) exchange(ctx context.Context, method string, target *url.URL, endpoint string, payload []byte, follow bool) (*Response, error) {
	if c.cfg.Limiter != nil {
		if err := c.cfg.Limiter.Wait(ctx); err != nil {
			return nil, c.transportError(ctx, endpoint, err)
		}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, errors.WrapResource("create", "request", method+" "+endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.cfg.Auth.Apply(req)

	logger := logging.FromContext(ctx)
	logger.Debug().Str("method", method).Str("url", target.String()).Msg(">")

	httpResp, err := c.http.Do(req)
	if err != nil {
		c.record(false)
		return nil, c.transportError(ctx, endpoint, err)
	}
	defer func() {
		if cerr := httpResp.Body.Close(); cerr != nil {
			logger.Debug().Err(cerr).Msg("Failed to close response body")
		}
	}()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.record(false)
		return nil, c.transportError(ctx, endpoint, err)
	}
	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
		Endpoint:   endpoint,
	}
	c.record(resp.StatusCode >= 200 && resp.StatusCode <= 299)
	logger.Debug().Int("status", resp.StatusCode).Msg("<")

	if resp.StatusCode >= 300 && resp.StatusCode <= 399 {
		location := httpResp.Header.Get("Location")
		if strings.Contains(location, signInMarker) {
			return resp, errors.NewAuthenticationError(c.cfg.Service, "redirect",
				"redirected to the sign-in page, verify username and password", nil)
		}
		if !follow || location == "" {
			return resp, errors.NewAPIError(c.cfg.Service, endpoint, resp.StatusCode, "unexpected redirect to "+location)
		}
		next, err := target.Parse(location)
		if err != nil {
			return resp, errors.NewAPIError(c.cfg.Service, endpoint, resp.StatusCode, "invalid redirect location "+location)
		}
		logger.Debug().Str("location", next.String()).Msg("Following redirect")
		return c.exchange(ctx, method, next, endpoint, payload, false)
	}
	return resp, nil
}

func (c *Client) statusError(resp *Response) error {
	apiErr := errors.NewAPIError(c.cfg.Service, resp.Endpoint, resp.StatusCode, http.StatusText(resp.StatusCode))
	if eb, ok := ParseErrorBody(resp.Body); ok {
		apiErr.Code = eb.ErrorCode
		switch {
		case eb.UserMessage != "":
			apiErr.Message = eb.UserMessage
		case eb.Message != "":
			apiErr.Message = eb.Message
		}
	} else if text := strings.TrimSpace(string(resp.Body)); text != "" {
		apiErr.Message = truncate(text, 200)
	}
	return apiErr
}

func (c *Client) transportError(ctx context.Context, endpoint string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if ctxErr == context.DeadlineExceeded {
			return errors.NewTimeoutError(c.cfg.Service+" "+endpoint, c.cfg.Timeout.String(), ctxErr.Error())
		}
		return fmt.Errorf("%w: %w", errors.ErrCanceled, ctxErr)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.NewTimeoutError(c.cfg.Service+" "+endpoint, c.cfg.Timeout.String(), err.Error())
	}
	return errors.NewConnectionError(c.cfg.Service, endpoint, err)
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", errors.ErrCanceled, ctx.Err())
	case <-c.clock.After(d):
		return nil
	}
}

func (c *Client) record(ok bool) {
	if c.observer != nil {
		c.observer.RecordAPICall(c.cfg.Service, ok)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
