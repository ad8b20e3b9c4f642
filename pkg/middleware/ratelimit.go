package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig configures the Redis token bucket.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	Prefix         string
}

// DefaultRateLimitConfig allows a short burst of five calls per client and
// route, refilled one token per minute.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:        true,
		Capacity:       5,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		Prefix:         "rl",
	}
}

// tokenBucketScript refills and takes one token atomically. It returns
// {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
	tokens = capacity
	last_refill = now_ms
end

if interval_ms > 0 and refill_tokens > 0 then
	local elapsed = math.max(0, now_ms - last_refill)
	local intervals = math.floor(elapsed / interval_ms)
	if intervals > 0 then
		tokens = math.min(capacity, tokens + (intervals * refill_tokens))
		last_refill = last_refill + (intervals * interval_ms)
	end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`)

// Limiter decides whether one more request for key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int64, retryAfter time.Duration, err error)
}

// RedisLimiter is a token bucket stored in Redis so every instance shares it.
type RedisLimiter struct {
	client redis.Scripter
	cfg    RateLimitConfig
}

// NewRedisLimiter creates a limiter backed by client.
func NewRedisLimiter(client redis.Scripter, cfg RateLimitConfig) *RedisLimiter {
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
		cfg.TTL = minTTL
	}
	return &RedisLimiter{client: client, cfg: cfg}
}

// Allow consumes one token for key.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, int64, time.Duration, error) {
	res, err := tokenBucketScript.Run(ctx, l.client, []string{key},
		time.Now().UnixMilli(),
		l.cfg.Capacity,
		l.cfg.RefillTokens,
		l.cfg.RefillInterval.Milliseconds(),
		int64(l.cfg.TTL/time.Second),
	).Int64Slice()
	if err != nil {
		return false, 0, 0, fmt.Errorf("run token bucket: %w", err)
	}
	if len(res) != 3 {
		return false, 0, 0, fmt.Errorf("unexpected token bucket result: %v", res)
	}
	return res[0] == 1, res[1], time.Duration(res[2]) * time.Millisecond, nil
}

// KeyFunc derives the bucket key of a request, without the prefix. An empty
// key skips limiting for that request.
type KeyFunc func(r *http.Request) string

// ByClientIPAndRoute keys a bucket on the client address and the matched
// route pattern.
func ByClientIPAndRoute(r *http.Request) string {
	route := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			route = pattern
		}
	}
	return strings.Join([]string{"ip", ClientIP(r), "route", r.Method + " " + route}, ":")
}

// RateLimit rejects requests over the per client-IP and route budget with
// 429 and a Retry-After header. Limiter errors fail open: the request is
// served and the error logged.
func RateLimit(limiter Limiter, cfg RateLimitConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return RateLimitBy(limiter, cfg, logger, ByClientIPAndRoute)
}

// RateLimitBy is RateLimit with a caller supplied bucket key.
func RateLimitBy(limiter Limiter, cfg RateLimitConfig, logger *slog.Logger, keyFn KeyFunc) func(http.Handler) http.Handler {
	if !cfg.Enabled || limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			suffix := keyFn(r)
			if suffix == "" {
				next.ServeHTTP(w, r)
				return
			}
			key := cfg.Prefix + ":" + suffix

			allowed, remaining, retryAfter, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable, allowing request",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if !allowed {
				secs := int(math.Ceil(retryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeError(w, r, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
