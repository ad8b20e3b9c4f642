// Package httpclient is the outbound HTTP stack used for payment gateways
// and SMS delivery: retries, a circuit breaker and provider error parsing.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Doer executes an HTTP request. *Client and *Breaker both satisfy it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Config tunes a Client.
type Config struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryWait    time.Duration
	MaxRetryWait time.Duration
}

// DefaultConfig retries idempotent failures three times.
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		MaxRetries:   3,
		RetryWait:    time.Second,
		MaxRetryWait: 5 * time.Second,
	}
}

// Client retries network errors and 5xx answers with capped exponential
// backoff, and forwards the trace context to the upstream.
type Client struct {
	http *http.Client
	cfg  Config
}

// New builds a Client with its own connection pool.
func New(cfg Config) *Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext
	tr.MaxIdleConnsPerHost = 20
	return &Client{http: &http.Client{Transport: tr, Timeout: cfg.Timeout}, cfg: cfg}
}

// Do sends req. A request body is replayed via req.GetBody on retry; when it
// cannot be replayed the first failure is returned.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	for attempt := 0; ; attempt++ {
		resp, err := c.http.Do(req)
		if !retryable(resp, err) || attempt >= c.cfg.MaxRetries {
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Host, err)
			}
			return resp, nil
		}
		if resp != nil {
			_ = resp.Body.Close()
		}
		if req.Body != nil && req.Body != http.NoBody {
			if req.GetBody == nil {
				return nil, fmt.Errorf("%s %s: body not replayable after attempt %d", req.Method, req.URL.Host, attempt+1)
			}
			if req.Body, err = req.GetBody(); err != nil {
				return nil, fmt.Errorf("rewind request body: %w", err)
			}
		}

		t := time.NewTimer(c.backoff(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	d := min(c.cfg.RetryWait<<attempt, c.cfg.MaxRetryWait)
	if d <= 0 {
		return 0
	}
	return d + time.Duration(float64(d)*0.25*(2*rand.Float64()-1)) // #nosec G404 -- jitter only
}

func retryable(resp *http.Response, err error) bool {
	if err != nil {
		var netErr net.Error
		return !errors.Is(err, context.Canceled) && errors.As(err, &netErr)
	}
	return resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented
}

// NewFormRequest builds a replayable x-www-form-urlencoded POST.
func NewFormRequest(ctx context.Context, target string, form url.Values, headers http.Header) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build form request: %w", err)
	}
	for k, vs := range headers {
		req.Header[http.CanonicalHeaderKey(k)] = append(req.Header[http.CanonicalHeaderKey(k)], vs...)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}
