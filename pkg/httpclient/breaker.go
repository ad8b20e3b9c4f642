package httpclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without calling the upstream while the breaker
// is open.
var ErrCircuitOpen = gobreaker.ErrOpenState

var breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "circuit_breaker_state",
	Help: "Breaker state per upstream: 0 closed, 1 half-open, 2 open.",
}, []string{"name"})

// errUpstream marks a 5xx answer so the breaker counts it as a failure while
// the caller still receives the response to parse.
var errUpstream = errors.New("upstream server error")

// BreakerConfig controls when a Breaker trips.
type BreakerConfig struct {
	Name string
	// OpenFor is how long the breaker rejects calls before probing again.
	OpenFor time.Duration
	// Window resets the failure counts while closed.
	Window       time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// DefaultBreakerConfig trips after half of at least five calls fail in a
// minute, and probes again after 30s.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:         name,
		OpenFor:      30 * time.Second,
		Window:       time.Minute,
		MinRequests:  5,
		FailureRatio: 0.5,
	}
}

// Breaker guards a Doer with a circuit breaker.
type Breaker struct {
	next Doer
	cb   *gobreaker.CircuitBreaker[*http.Response]
}

// NewBreaker wraps next.
func NewBreaker(next Doer, cfg BreakerConfig, logger *slog.Logger) *Breaker {
	gauge := breakerState.WithLabelValues(cfg.Name)
	gauge.Set(0)
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    cfg.Window,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= cfg.MinRequests &&
				float64(c.TotalFailures)/float64(c.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("upstream", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			gauge.Set(float64(to))
		},
	})
	return &Breaker{next: next, cb: cb}
}

// Do forwards req unless the breaker is open. A 5xx response counts as a
// failure but is still returned to the caller with a nil error.
func (b *Breaker) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := b.cb.Execute(func() (*http.Response, error) {
		resp, err := b.next.Do(ctx, req)
		if err == nil && resp.StatusCode >= 500 {
			return resp, errUpstream
		}
		return resp, err
	})
	switch {
	case errors.Is(err, errUpstream):
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%s: %w", b.cb.Name(), ErrCircuitOpen)
	case err != nil:
		return nil, err
	}
	return resp, nil
}

// State reports the breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
