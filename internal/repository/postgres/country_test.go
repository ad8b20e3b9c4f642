package postgres

import (
	"context"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountryRepository_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewCountryRepository(mock)

	mock.ExpectQuery("SELECT id, name, iso_code, phone_code, count").
		WithArgs(20, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "iso_code", "phone_code", "total_count"}).
			AddRow(1, "Malaysia", "MY", "+60", 2).
			AddRow(2, "Singapore", "SG", "+65", 2))

	got, total, err := repo.List(context.Background(), 0, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, got, 2)
	assert.Equal(t, "MY", got[0].ISOCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountryRepository_Exists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewCountryRepository(mock)

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM countries`).
		WithArgs(999).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := repo.Exists(context.Background(), 999)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
