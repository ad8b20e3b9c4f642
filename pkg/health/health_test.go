package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func up(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func TestLiveness(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler().LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"status":"up"`)
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name        string
		critical    Checker
		nonCritical Checker
		wantCode    int
		wantStatus  Status
	}{
		{"all up", up, up, http.StatusOK, StatusUp},
		{"broker down degrades", up, down, http.StatusOK, StatusDegraded},
		{"database down fails", down, up, http.StatusServiceUnavailable, StatusDown},
		{"both down fails", down, down, http.StatusServiceUnavailable, StatusDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler()
			h.RegisterCritical("postgres", tt.critical)
			h.RegisterNonCritical("kafka", tt.nonCritical)

			rec := httptest.NewRecorder()
			h.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			var resp Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.True(t, resp.Checks["postgres"].Critical)
			assert.False(t, resp.Checks["kafka"].Critical)
		})
	}
}

func TestCheck_ReportsErrors(t *testing.T) {
	h := NewHandler()
	h.RegisterNonCritical("redis", down)

	resp := h.Check(context.Background())

	assert.Equal(t, StatusDown, resp.Checks["redis"].Status)
	assert.Equal(t, "connection refused", resp.Checks["redis"].Error)
}

func TestCheck_RunsConcurrentlyWithinTimeout(t *testing.T) {
	h := NewHandler()
	h.timeout = 200 * time.Millisecond
	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	h.RegisterCritical("a", slow)
	h.RegisterCritical("b", slow)

	start := time.Now()
	rec := httptest.NewRecorder()
	h.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), context.DeadlineExceeded.Error())
}
