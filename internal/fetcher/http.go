package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/resilience"
)

// HTTPOptions configures an HTTPClient.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// Headers are sent with every request (auth tokens, API keys).
	Headers map[string]string
	// RequestsPerSecond throttles calls to the source; 0 disables throttling.
	RequestsPerSecond float64
}

// HTTPClient implements Fetcher against one source base URL using net/http
// with retry and rate limiting.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	opts    HTTPOptions
	limiter *rate.Limiter
	policy  resilience.RetryPolicy
}

// NewHTTPClient creates an HTTPClient for the given base URL.
func NewHTTPClient(baseURL string, opts HTTPOptions) *HTTPClient {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "lsats-hub/1.0"
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		limiter: limiter,
		policy:  resilience.DefaultPolicy(opts.MaxRetries),
	}
}

// GetJSON performs a GET and decodes the JSON response into out. Transient
// upstream failures (429, 5xx, network timeouts) are retried with backoff;
// anything else fails immediately.
func (c *HTTPClient) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	body, err := resilience.Retry(ctx, c.policy, "GET "+path, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, u)
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "fetcher: decode response from %s", path)
	}
	return nil
}

func (c *HTTPClient) get(ctx context.Context, u string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: build request for %s", u)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range c.opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("fetcher: GET %s: status %d", u, resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read body from %s", u)
	}
	return body, nil
}
