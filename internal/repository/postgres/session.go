package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/mobilebackend/internal/domain"
	"github.com/utafrali/mobilebackend/pkg/database"
	apperrors "github.com/utafrali/mobilebackend/pkg/errors"
)

// SessionTokenRepository implements repository.SessionTokenRepository using
// PostgreSQL.
type SessionTokenRepository struct {
	db database.DBTX
}

// NewSessionTokenRepository creates a new PostgreSQL-backed session store.
func NewSessionTokenRepository(db database.DBTX) *SessionTokenRepository {
	return &SessionTokenRepository{db: db}
}

// Replace upserts the session row keyed by user. Concurrent logins resolve to
// whichever statement commits last.
func (r *SessionTokenRepository) Replace(ctx context.Context, userID, tokenID string, now time.Time) (err error) {
	query := `
		INSERT INTO session_tokens (user_id, token_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET token_id = EXCLUDED.token_id, created_at = EXCLUDED.created_at`

	ctx, end := database.TraceQuery(ctx, "ReplaceSessionToken", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, userID, tokenID, now); err != nil {
		return fmt.Errorf("upsert session token: %w", err)
	}
	return nil
}

// Get returns the user's current session.
func (r *SessionTokenRepository) Get(ctx context.Context, userID string) (_ *domain.SessionToken, err error) {
	query := `SELECT user_id, token_id, created_at FROM session_tokens WHERE user_id = $1`

	ctx, end := database.TraceQuery(ctx, "GetSessionToken", query)
	defer func() { end(err) }()

	var t domain.SessionToken
	err = r.db.QueryRow(ctx, query, userID).Scan(&t.UserID, &t.TokenID, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get session token: %w", err)
	}
	return &t, nil
}

// Delete removes the user's session.
func (r *SessionTokenRepository) Delete(ctx context.Context, userID string) (err error) {
	query := `DELETE FROM session_tokens WHERE user_id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteSessionToken", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("delete session token: %w", err)
	}
	return nil
}
