package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// startupRetry governs connecting and migrating at boot: three attempts,
// waiting roughly 1s then 2s with 25% jitter.
var startupRetry = retryPolicy{attempts: 3, base: time.Second, jitter: 0.25}

type retryPolicy struct {
	attempts int
	base     time.Duration
	jitter   float64
}

func (p retryPolicy) backoff(attempt int) time.Duration {
	d := p.base << max(attempt, 0)
	spread := float64(d) * p.jitter * (2*rand.Float64() - 1) // #nosec G404 -- jitter only
	return d + time.Duration(spread)
}

// run calls fn until it succeeds, returns an error retryable rejects, or the
// attempts are used up.
func (p retryPolicy) run(ctx context.Context, logger *slog.Logger, what string, retryable func(error) bool, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < p.attempts; attempt++ {
		if err = fn(ctx); err == nil || !retryable(err) || attempt == p.attempts-1 {
			return err
		}
		wait := p.backoff(attempt)
		if logger != nil {
			logger.WarnContext(ctx, what+" failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", wait),
				slog.String("error", err.Error()),
			)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
	return err
}

func always(error) bool { return true }

// isConnectionError separates a lost or refused connection from an error
// the server returned for the statement itself.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return false
	}
	var connErr *pgconn.ConnectError
	var netErr net.Error
	return errors.As(err, &connErr) ||
		errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		pgconn.SafeToRetry(err)
}
