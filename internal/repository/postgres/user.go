package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/utafrali/mobilebackend/internal/domain"
	"github.com/utafrali/mobilebackend/pkg/database"
	apperrors "github.com/utafrali/mobilebackend/pkg/errors"
)

// Users without an email store NULL so the unique email index only covers
// real addresses.
const userColumns = `id, first_name, last_name, COALESCE(email, ''), mobile, password_hash, image, gender,
		country_id, wallet::text, is_verified, is_approved, is_active, is_client, created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	query := `
		INSERT INTO users (id, first_name, last_name, email, mobile, password_hash, image, gender,
			country_id, wallet, is_verified, is_approved, is_active, is_client, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::numeric, $11, $12, $13, $14, $15, $16)`

	ctx, end := database.TraceQuery(ctx, "CreateUser", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		u.ID,
		u.FirstName,
		u.LastName,
		nullIfEmpty(u.Email),
		u.Mobile,
		u.PasswordHash,
		u.Image,
		int16(u.Gender),
		u.CountryID,
		u.Wallet.String(),
		u.IsVerified,
		u.IsApproved,
		u.IsActive,
		u.IsClient,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := uniqueViolationOn(err); ok {
			if strings.Contains(constraint, "mobile") {
				return apperrors.AlreadyExists("user", "mobile", u.Mobile)
			}
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(ctx, "GetUserByID", query, id)
}

// GetByIdentifier retrieves a user by mobile number or email address. Email
// comparison is case-insensitive.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE mobile = $1 OR lower(email) = lower($1) LIMIT 1`
	return r.scanUser(ctx, "GetUserByIdentifier", query, identifier)
}

// UpdateProfile applies the non-nil fields of update.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.User, error) {
	var gender *int16
	if update.Gender != nil {
		g := int16(*update.Gender)
		gender = &g
	}

	query := `
		UPDATE users SET
			first_name = COALESCE($2, first_name),
			last_name  = COALESCE($3, last_name),
			gender     = COALESCE($4, gender),
			image      = COALESCE($5, image),
			country_id = COALESCE($6, country_id),
			updated_at = $7
		WHERE id = $1
		RETURNING ` + userColumns

	return r.scanUser(ctx, "UpdateUserProfile", query,
		id,
		update.FirstName,
		update.LastName,
		gender,
		update.Image,
		update.CountryID,
		time.Now().UTC(),
	)
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.execOne(ctx, "UpdateUserPassword",
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, passwordHash, time.Now().UTC())
}

// SetVerified marks the account verified.
func (r *UserRepository) SetVerified(ctx context.Context, id string) error {
	return r.execOne(ctx, "SetUserVerified",
		`UPDATE users SET is_verified = true, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC())
}

// Delete removes a user. Owned rows go with it through ON DELETE CASCADE.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, "DeleteUser", `DELETE FROM users WHERE id = $1`, id)
}

func (r *UserRepository) execOne(ctx context.Context, operation, query string, args ...any) (err error) {
	ctx, end := database.TraceQuery(ctx, operation, query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec %s: %w", operation, err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", fmt.Sprint(args[0]))
	}
	return nil
}

func (r *UserRepository) scanUser(ctx context.Context, operation, query string, args ...any) (_ *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, operation, query)
	defer func() { end(err) }()

	var (
		u      domain.User
		gender int16
		wallet string
	)
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.Mobile,
		&u.PasswordHash,
		&u.Image,
		&gender,
		&u.CountryID,
		&wallet,
		&u.IsVerified,
		&u.IsApproved,
		&u.IsActive,
		&u.IsClient,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	u.Gender = domain.Gender(gender)
	if u.Wallet, err = decimal.NewFromString(wallet); err != nil {
		return nil, fmt.Errorf("parse wallet: %w", err)
	}
	return &u, nil
}
