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

// ConfirmationRepository implements repository.ConfirmationRepository using
// PostgreSQL.
type ConfirmationRepository struct {
	db database.DBTX
}

// NewConfirmationRepository creates a new PostgreSQL-backed confirmation code
// repository.
func NewConfirmationRepository(db database.DBTX) *ConfirmationRepository {
	return &ConfirmationRepository{db: db}
}

// Create stores a newly issued code.
func (r *ConfirmationRepository) Create(ctx context.Context, c *domain.ConfirmationCode) (err error) {
	query := `
		INSERT INTO confirmation_codes (id, user_id, code, ip_address, is_used, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	ctx, end := database.TraceQuery(ctx, "CreateConfirmationCode", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query, c.ID, c.UserID, c.Code, c.IPAddress, c.IsUsed, c.CreatedAt, c.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert confirmation code: %w", err)
	}
	return nil
}

// ExistsUnused reports whether a redeemable code with this value exists.
func (r *ConfirmationRepository) ExistsUnused(ctx context.Context, userID, code string, now time.Time) (_ bool, err error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM confirmation_codes
			WHERE user_id = $1 AND code = $2 AND is_used = false
			  AND (expires_at IS NULL OR expires_at > $3)
		)`

	ctx, end := database.TraceQuery(ctx, "ConfirmationCodeExists", query)
	defer func() { end(err) }()

	var exists bool
	if err = r.db.QueryRow(ctx, query, userID, code, now).Scan(&exists); err != nil {
		return false, fmt.Errorf("check confirmation code: %w", err)
	}
	return exists, nil
}

// Consume marks one matching code used. The conditional UPDATE is the
// linearization point: of two concurrent calls for the same code only one
// sees a row. Of several live codes with the same value the oldest is taken.
func (r *ConfirmationRepository) Consume(ctx context.Context, userID, code string, now time.Time) (_ *domain.ConfirmationCode, err error) {
	query := `
		UPDATE confirmation_codes SET is_used = true, used_at = $3
		WHERE id = (
			SELECT id FROM confirmation_codes
			WHERE user_id = $1 AND code = $2 AND is_used = false
			  AND (expires_at IS NULL OR expires_at > $3)
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, user_id, code, ip_address, is_used, created_at, expires_at, used_at`

	ctx, end := database.TraceQuery(ctx, "ConsumeConfirmationCode", query)
	defer func() { end(err) }()

	var c domain.ConfirmationCode
	err = r.db.QueryRow(ctx, query, userID, code, now).Scan(
		&c.ID,
		&c.UserID,
		&c.Code,
		&c.IPAddress,
		&c.IsUsed,
		&c.CreatedAt,
		&c.ExpiresAt,
		&c.UsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("consume confirmation code: %w", err)
	}
	return &c, nil
}

// RevokeUnused burns the user's outstanding codes. Expired codes are
// included; they are unredeemable either way.
func (r *ConfirmationRepository) RevokeUnused(ctx context.Context, userID string, now time.Time) (_ int64, err error) {
	query := `UPDATE confirmation_codes SET is_used = true, used_at = $2 WHERE user_id = $1 AND is_used = false`

	ctx, end := database.TraceQuery(ctx, "RevokeConfirmationCodes", query)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, query, userID, now)
	if err != nil {
		return 0, fmt.Errorf("revoke confirmation codes: %w", err)
	}
	return tag.RowsAffected(), nil
}
