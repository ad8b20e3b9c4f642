package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/utafrali/mobilebackend/pkg/logger"
)

func TestContentTypeJSON(t *testing.T) {
	tests := []struct {
		method      string
		contentType string
		wantPass    bool
	}{
		{http.MethodPost, "application/json", true},
		{http.MethodPost, "application/json; charset=utf-8", true},
		{http.MethodPost, "", true},
		{http.MethodPut, "application/x-www-form-urlencoded", false},
		{http.MethodPatch, "text/plain", false},
		{http.MethodPost, "application/", false},
		{http.MethodGet, "text/plain", true},
		{http.MethodDelete, "text/plain", true},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.contentType, func(t *testing.T) {
			passed := false
			h := ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				passed = true
			}))
			req := httptest.NewRequest(tt.method, "/api/v1/payments", strings.NewReader(`{}`))
			req = req.WithContext(logger.WithCorrelationID(req.Context(), "req-7"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rr := httptest.NewRecorder()

			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantPass, passed)
			if tt.wantPass {
				assert.Equal(t, http.StatusOK, rr.Code)
				return
			}
			assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
			env := decodeEnvelope(t, rr)
			assert.Equal(t, "UNSUPPORTED_MEDIA_TYPE", env.Error.Code)
			assert.Equal(t, "req-7", env.Error.RequestID)
		})
	}
}
