// Package httputil writes the JSON envelope every endpoint answers with.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/mobilebackend/pkg/errors"
	"github.com/utafrali/mobilebackend/pkg/logger"
)

// Response is the envelope: exactly one of Data or Error is set.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the error half of the envelope.
type ErrorResponse struct {
	Code      string              `json:"code"`
	Message   string              `json:"message"`
	Fields    map[string][]string `json:"fields,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
}

// WriteJSON writes v with status. Encoding errors are dropped since the
// header is already out.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError classifies err and writes the error envelope, including the
// request correlation id and, for validation failures, the per-field
// messages. 5xx errors are logged with the request-scoped logger, or
// fallback when none is in the context.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	kind := apperrors.Classify(err)
	body := &ErrorResponse{
		Code:      kind.Code,
		Message:   kind.Message,
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	}
	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}

	if kind.Status >= http.StatusInternalServerError {
		l := logger.FromContext(r.Context())
		if l == slog.Default() && fallback != nil {
			l = fallback
		}
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.Int("status", kind.Status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}
	WriteJSON(w, kind.Status, Response{Error: body})
}

// DecodeJSON reads at most maxBytes of JSON into dst. On failure it writes a
// 400 and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	if err := dec.Decode(dst); err != nil {
		WriteJSON(w, http.StatusBadRequest, Response{Error: &ErrorResponse{
			Code:      "INVALID_INPUT",
			Message:   "invalid request body: " + err.Error(),
			RequestID: logger.CorrelationIDFromContext(r.Context()),
		}})
		return false
	}
	return true
}

// ParseUUID parses a path parameter. On failure it writes a 400
// INVALID_PARAMETER and returns false.
func ParseUUID(w http.ResponseWriter, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, Response{Error: &ErrorResponse{
			Code:    "INVALID_PARAMETER",
			Message: "invalid UUID: " + param,
		}})
		return uuid.Nil, false
	}
	return id, true
}
