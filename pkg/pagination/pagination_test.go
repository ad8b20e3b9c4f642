package pagination

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/login-history?page=3&per_page=50", nil)

	p := FromRequest(req)

	assert.Equal(t, Params{Page: 3, PerPage: 50}, p)
	assert.Equal(t, 100, p.Offset())
	assert.Zero(t, DefaultParams().Offset())
}

func TestFromQuery(t *testing.T) {
	tests := map[string]Params{
		"":                  {1, DefaultPerPage},
		"page=-1":           {1, DefaultPerPage},
		"page=0":            {1, DefaultPerPage},
		"page=abc":          {1, DefaultPerPage},
		"per_page=0":        {1, DefaultPerPage},
		"per_page=500":      {1, MaxPerPage},
		"per_page=100":      {1, 100},
		"page=2&per_page=5": {2, 5},
	}
	for query, want := range tests {
		t.Run(query, func(t *testing.T) {
			q, err := url.ParseQuery(query)
			require.NoError(t, err)
			assert.Equal(t, want, FromQuery(q))
		})
	}
}

func TestNewResult(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		params    Params
		wantPages int
		wantNext  bool
		wantPrev  bool
	}{
		{"empty", 0, Params{Page: 1, PerPage: 20}, 0, false, false},
		{"exact fit", 40, Params{Page: 1, PerPage: 20}, 2, true, false},
		{"partial last page", 41, Params{Page: 3, PerPage: 20}, 3, false, true},
		{"middle page", 100, Params{Page: 2, PerPage: 10}, 10, true, true},
		{"zero per page uses default", 45, Params{Page: 1}, 3, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResult([]int{1}, tt.total, tt.params)
			assert.Equal(t, tt.wantPages, r.TotalPages)
			assert.Equal(t, tt.wantNext, r.HasNext)
			assert.Equal(t, tt.wantPrev, r.HasPrev)
			assert.Equal(t, tt.total, r.TotalCount)
			assert.Positive(t, r.PerPage)
		})
	}
}

func TestNewResult_NilDataEncodesAsEmptyList(t *testing.T) {
	r := NewResult[string](nil, 0, DefaultParams())
	require.NotNil(t, r.Data)
	assert.Empty(t, r.Data)
}
