package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/mobilebackend/pkg/errors"
)

func newSessionFixture(t *testing.T) (*SessionTokenRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return NewSessionTokenRepository(mock), mock
}

func TestSessionTokenRepository_Replace_Upserts(t *testing.T) {
	repo, mock := newSessionFixture(t)
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectExec(`INSERT INTO session_tokens .+ ON CONFLICT \(user_id\) DO UPDATE`).
		WithArgs("u-1", "tok-2", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Replace(context.Background(), "u-1", "tok-2", now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionTokenRepository_Get(t *testing.T) {
	repo, mock := newSessionFixture(t)
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT user_id, token_id, created_at FROM session_tokens").
		WithArgs("u-1").
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "token_id", "created_at"}).AddRow("u-1", "tok-2", now))

	got, err := repo.Get(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", got.TokenID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionTokenRepository_Get_NotFound(t *testing.T) {
	repo, mock := newSessionFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT user_id, token_id, created_at FROM session_tokens").
		WithArgs("u-1").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), "u-1")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionTokenRepository_Delete_MissingIsNotError(t *testing.T) {
	repo, mock := newSessionFixture(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM session_tokens").
		WithArgs("u-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.NoError(t, repo.Delete(context.Background(), "u-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
