package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/mobilebackend/internal/domain"
	"github.com/utafrali/mobilebackend/internal/repository"
	apperrors "github.com/utafrali/mobilebackend/pkg/errors"
)

// maxIssueAttempts bounds the search for a code the user does not already
// hold. With 900000 values it is only reached by a broken generator.
const maxIssueAttempts = 64

// CodeGenerator returns a six digit numeric code.
type CodeGenerator func() (string, error)

// RandomCode draws a code uniformly from 100000-999999.
func RandomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// MissLimiter budgets wrong codes per user. It has the shape of the HTTP
// rate limiters, so either of them can back it.
type MissLimiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int64, retryAfter time.Duration, err error)
}

// OTPEngine issues and redeems one-time confirmation codes.
type OTPEngine struct {
	codes    repository.ConfirmationRepository
	generate CodeGenerator
	ttl      time.Duration
	now      func() time.Time
	misses   MissLimiter
	logger   *slog.Logger
}

// NewOTPEngine creates an engine whose codes expire after ttl. A zero ttl
// issues codes that never expire.
func NewOTPEngine(codes repository.ConfirmationRepository, ttl time.Duration) *OTPEngine {
	return &OTPEngine{
		codes:    codes,
		generate: RandomCode,
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   slog.Default(),
	}
}

// LimitMisses revokes every outstanding code of a user once the user's
// wrong codes exceed the budget of l. Without it misses are not counted.
func (e *OTPEngine) LimitMisses(l MissLimiter, logger *slog.Logger) {
	e.misses = l
	if logger != nil {
		e.logger = logger
	}
}

// Issue stores a new code for userID that differs from every code the user
// can still redeem. The caller delivers it.
func (e *OTPEngine) Issue(ctx context.Context, userID, sourceIP string) (*domain.ConfirmationCode, error) {
	now := e.now()

	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		code, err := e.generate()
		if err != nil {
			return nil, err
		}

		taken, err := e.codes.ExistsUnused(ctx, userID, code, now)
		if err != nil {
			return nil, fmt.Errorf("check code collision: %w", err)
		}
		if taken {
			continue
		}

		c := &domain.ConfirmationCode{
			ID:        uuid.New().String(),
			UserID:    userID,
			Code:      code,
			IPAddress: sourceIP,
			CreatedAt: now,
		}
		if e.ttl > 0 {
			expiresAt := now.Add(e.ttl)
			c.ExpiresAt = &expiresAt
		}

		if err := e.codes.Create(ctx, c); err != nil {
			return nil, fmt.Errorf("store confirmation code: %w", err)
		}
		otpIssuedTotal.Inc()
		return c, nil
	}

	return nil, apperrors.Internal(fmt.Errorf("no free confirmation code after %d attempts", maxIssueAttempts))
}

// Validate reports whether code is currently redeemable for userID without
// consuming it.
func (e *OTPEngine) Validate(ctx context.Context, userID, code string) (bool, error) {
	ok, err := e.codes.ExistsUnused(ctx, userID, code, e.now())
	if err != nil {
		return false, fmt.Errorf("validate confirmation code: %w", err)
	}
	if !ok {
		if err := e.recordMiss(ctx, userID); err != nil {
			return false, err
		}
	}
	return ok, nil
}

// Consume redeems code for userID. An absent, used or expired code fails with
// ErrNotFound. Of concurrent calls for the same code at most one succeeds.
func (e *OTPEngine) Consume(ctx context.Context, userID, code string) (*domain.ConfirmationCode, error) {
	c, err := e.codes.Consume(ctx, userID, code, e.now())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			otpConsumedTotal.WithLabelValues("invalid").Inc()
			if err := e.recordMiss(ctx, userID); err != nil {
				return nil, err
			}
			return nil, apperrors.ErrNotFound
		}
		otpConsumedTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("consume confirmation code: %w", err)
	}
	otpConsumedTotal.WithLabelValues("consumed").Inc()
	return c, nil
}

// recordMiss spends one miss of userID's budget. When the budget is gone the
// user's outstanding codes are revoked, so that guessing has to start over
// against a freshly issued code. A failing limiter counts nothing.
func (e *OTPEngine) recordMiss(ctx context.Context, userID string) error {
	if e.misses == nil {
		return nil
	}
	allowed, _, _, err := e.misses.Allow(ctx, "otp:miss:"+userID)
	if err != nil {
		e.logger.WarnContext(ctx, "otp miss limiter unavailable",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if allowed {
		return nil
	}

	n, err := e.codes.RevokeUnused(ctx, userID, e.now())
	if err != nil {
		return fmt.Errorf("revoke confirmation codes: %w", err)
	}
	otpRevokedTotal.Add(float64(n))
	e.logger.WarnContext(ctx, "too many wrong confirmation codes, outstanding codes revoked",
		slog.String("user_id", userID),
		slog.Int64("revoked", n),
	)
	return nil
}
