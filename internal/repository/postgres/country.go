package postgres

import (
	"context"
	"fmt"

	"github.com/utafrali/mobilebackend/internal/domain"
	"github.com/utafrali/mobilebackend/pkg/database"
)

// CountryRepository implements repository.CountryRepository using PostgreSQL.
type CountryRepository struct {
	db database.DBTX
}

// NewCountryRepository creates a new PostgreSQL-backed country repository.
func NewCountryRepository(db database.DBTX) *CountryRepository {
	return &CountryRepository{db: db}
}

// List returns countries ordered by name.
func (r *CountryRepository) List(ctx context.Context, offset, limit int) (_ []domain.Country, _ int, err error) {
	query := `
		SELECT id, name, iso_code, phone_code, count(*) OVER() AS total_count
		FROM countries
		ORDER BY name
		LIMIT $1 OFFSET $2`

	ctx, end := database.TraceQuery(ctx, "ListCountries", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list countries: %w", err)
	}
	defer rows.Close()

	var (
		countries  = []domain.Country{}
		totalCount int
	)
	for rows.Next() {
		var c domain.Country
		if err = rows.Scan(&c.ID, &c.Name, &c.ISOCode, &c.PhoneCode, &totalCount); err != nil {
			return nil, 0, fmt.Errorf("scan country row: %w", err)
		}
		countries = append(countries, c)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate country rows: %w", err)
	}

	return countries, totalCount, nil
}

// Exists reports whether a country with id exists.
func (r *CountryRepository) Exists(ctx context.Context, id int) (_ bool, err error) {
	query := `SELECT EXISTS(SELECT 1 FROM countries WHERE id = $1)`

	ctx, end := database.TraceQuery(ctx, "CountryExists", query)
	defer func() { end(err) }()

	var exists bool
	if err = r.db.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check country: %w", err)
	}
	return exists, nil
}
