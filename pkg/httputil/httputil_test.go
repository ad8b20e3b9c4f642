package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/mobilebackend/pkg/errors"
	"github.com/utafrali/mobilebackend/pkg/logger"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, Response{Data: map[string]string{"uid": "p-1"}})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"uid":"p-1"}}`, rec.Body.String())
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"not found", apperrors.NotFound("payment", "p-1"), http.StatusNotFound, "NOT_FOUND", ""},
		{"wrapped sentinel", fmt.Errorf("lookup: %w", apperrors.ErrInvalidCode), http.StatusBadRequest, "INVALID_CODE", "invalid verification code"},
		{"invalid input keeps text", fmt.Errorf("%w: amount must be positive", apperrors.ErrInvalidInput), http.StatusBadRequest, "INVALID_INPUT", "invalid input: amount must be positive"},
		{"unknown", errors.New("db down"), http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()

			WriteError(rec, req, tt.err, slog.New(slog.DiscardHandler))

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeEnvelope(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, resp.Error.Message)
			}
			assert.Nil(t, resp.Data)
		})
	}
}

func TestWriteError_ValidationFields(t *testing.T) {
	verr := apperrors.Validation("mobile", "must contain only digits")
	verr.Add("password", "is required")
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(logger.WithCorrelationID(req.Context(), "req-42"))
	rec := httptest.NewRecorder()

	WriteError(rec, req, verr, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeEnvelope(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "req-42", resp.Error.RequestID)
	assert.Equal(t, map[string][]string{
		"mobile":   {"must contain only digits"},
		"password": {"is required"},
	}, resp.Error.Fields)
}

func TestWriteError_LogsServerErrors(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)

	WriteError(httptest.NewRecorder(), req, apperrors.NotFound("user", "u-1"), l)
	assert.Zero(t, buf.Len())

	WriteError(httptest.NewRecorder(), req, errors.New("connection reset"), l)
	assert.Contains(t, buf.String(), "connection reset")
	assert.Contains(t, buf.String(), "/api/v1/profile")
}

func TestWriteError_PrefersRequestLogger(t *testing.T) {
	var reqBuf, fallbackBuf bytes.Buffer
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logger.NewContext(req.Context(), slog.New(slog.NewJSONHandler(&reqBuf, nil))))

	WriteError(httptest.NewRecorder(), req, errors.New("boom"), slog.New(slog.NewJSONHandler(&fallbackBuf, nil)))

	assert.NotZero(t, reqBuf.Len())
	assert.Zero(t, fallbackBuf.Len())
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Mobile string `json:"mobile"`
	}
	tests := []struct {
		name   string
		input  string
		max    int64
		wantOK bool
	}{
		{"valid", `{"mobile":"60123456789"}`, 1024, true},
		{"malformed", `{"mobile":`, 1024, false},
		{"too large", `{"mobile":"` + strings.Repeat("9", 64) + `"}`, 16, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.input))
			rec := httptest.NewRecorder()
			var dst body

			ok := DecodeJSON(rec, req, &dst, tt.max)

			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, "60123456789", dst.Mobile)
				return
			}
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "INVALID_INPUT", decodeEnvelope(t, rec).Error.Code)
		})
	}
}

func TestParseUUID(t *testing.T) {
	id := uuid.New()
	rec := httptest.NewRecorder()
	got, ok := ParseUUID(rec, id.String())
	assert.True(t, ok)
	assert.Equal(t, id, got)

	rec = httptest.NewRecorder()
	got, ok = ParseUUID(rec, "not-a-uuid")
	assert.False(t, ok)
	assert.Equal(t, uuid.Nil, got)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", decodeEnvelope(t, rec).Error.Code)
}
