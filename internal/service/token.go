package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/mobilebackend/internal/auth"
	"github.com/utafrali/mobilebackend/internal/repository"
	apperrors "github.com/utafrali/mobilebackend/pkg/errors"
	"github.com/utafrali/mobilebackend/pkg/middleware"
)

// TokenIssuer manages the single live session token of each user.
type TokenIssuer struct {
	sessions repository.SessionTokenRepository
	users    repository.UserRepository
	jwt      *auth.JWTManager
	now      func() time.Time
}

// NewTokenIssuer creates a new token issuer.
func NewTokenIssuer(sessions repository.SessionTokenRepository, users repository.UserRepository, jwt *auth.JWTManager) *TokenIssuer {
	return &TokenIssuer{
		sessions: sessions,
		users:    users,
		jwt:      jwt,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Regenerate mints a fresh session for userID. The stored session id is
// replaced in one upsert, so any token issued earlier stops validating as
// soon as this returns. Concurrent calls leave the last writer's token live.
func (t *TokenIssuer) Regenerate(ctx context.Context, userID string) (string, error) {
	tokenID := uuid.New().String()
	if err := t.sessions.Replace(ctx, userID, tokenID, t.now()); err != nil {
		return "", fmt.Errorf("replace session: %w", err)
	}

	raw, err := t.jwt.Generate(userID, tokenID)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return raw, nil
}

// Validate checks a bearer token. It must be correctly signed, unexpired,
// name the user's current session and belong to an active user.
func (t *TokenIssuer) Validate(ctx context.Context, raw string) (*middleware.Claims, error) {
	claims, err := t.jwt.Validate(raw)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired token")
	}

	session, err := t.sessions.Get(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("session has ended")
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.TokenID != claims.TokenID() {
		return nil, apperrors.Unauthorized("session has been replaced")
	}

	user, err := t.users.GetByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("account no longer exists")
		}
		return nil, fmt.Errorf("get session user: %w", err)
	}
	if !user.IsActive {
		return nil, apperrors.Unauthorized("account is disabled")
	}

	return &middleware.Claims{UserID: claims.UserID(), TokenID: claims.TokenID()}, nil
}

// Revoke ends the user's session.
func (t *TokenIssuer) Revoke(ctx context.Context, userID string) error {
	if err := t.sessions.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
