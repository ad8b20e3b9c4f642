package postgres

import (
	"context"
	"fmt"

	"github.com/utafrali/mobilebackend/internal/domain"
	"github.com/utafrali/mobilebackend/pkg/database"
	apperrors "github.com/utafrali/mobilebackend/pkg/errors"
)

// LoginAttemptRepository implements repository.LoginAttemptRepository using
// PostgreSQL.
type LoginAttemptRepository struct {
	db database.DBTX
}

// NewLoginAttemptRepository creates a new PostgreSQL-backed login history.
func NewLoginAttemptRepository(db database.DBTX) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// Create records an attempt.
func (r *LoginAttemptRepository) Create(ctx context.Context, a *domain.LoginAttempt) (err error) {
	query := `
		INSERT INTO login_history (id, user_id, ip_address, user_agent, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	ctx, end := database.TraceQuery(ctx, "CreateLoginAttempt", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query, a.ID, a.UserID, a.IPAddress, a.UserAgent, a.Success, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert login attempt: %w", err)
	}
	return nil
}

// MarkSucceeded flags the attempt successful. Already successful attempts are
// left alone so the row changes at most once.
func (r *LoginAttemptRepository) MarkSucceeded(ctx context.Context, id string) (err error) {
	query := `UPDATE login_history SET success = true WHERE id = $1 AND success = false`

	ctx, end := database.TraceQuery(ctx, "MarkLoginAttemptSucceeded", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark login attempt succeeded: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("login attempt", id)
	}
	return nil
}

// ListByUser returns the user's attempts, newest first.
func (r *LoginAttemptRepository) ListByUser(ctx context.Context, userID string, offset, limit int) (_ []domain.LoginAttempt, _ int, err error) {
	query := `
		SELECT id, user_id, ip_address, user_agent, success, created_at,
		       count(*) OVER() AS total_count
		FROM login_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	ctx, end := database.TraceQuery(ctx, "ListLoginAttempts", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list login attempts: %w", err)
	}
	defer rows.Close()

	var (
		attempts   = []domain.LoginAttempt{}
		totalCount int
	)
	for rows.Next() {
		var a domain.LoginAttempt
		if err = rows.Scan(&a.ID, &a.UserID, &a.IPAddress, &a.UserAgent, &a.Success, &a.CreatedAt, &totalCount); err != nil {
			return nil, 0, fmt.Errorf("scan login attempt row: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate login attempt rows: %w", err)
	}

	return attempts, totalCount, nil
}
