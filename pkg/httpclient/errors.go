package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/mobilebackend/pkg/errors"
)

// providerErrorBody covers the error shapes returned by the upstream
// providers this service talks to: PayPal ({name, message, details}),
// BillPlz ({error: {type, message}}) and Twilio ({code, message}).
type providerErrorBody struct {
	Name    string          `json:"name"`
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

type nestedError struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
}

// ParseResponseError reads the body of a non-2xx response from an upstream
// provider and returns a Gateway AppError describing it. The response body is
// fully consumed and closed.
func ParseResponseError(resp *http.Response, provider string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB limit
	if err != nil {
		return apperrors.Gateway(provider, fmt.Errorf("status %d (failed to read body: %w)", resp.StatusCode, err))
	}

	detail := extractMessage(bodyBytes)
	if detail == "" {
		detail = strings.TrimSpace(string(bodyBytes))
	}
	if len(detail) > 512 {
		detail = detail[:512]
	}
	return apperrors.Gateway(provider, fmt.Errorf("status %d: %s", resp.StatusCode, detail))
}

func extractMessage(body []byte) string {
	var parsed providerErrorBody
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}

	if len(parsed.Error) > 0 {
		var nested nestedError
		if json.Unmarshal(parsed.Error, &nested) == nil {
			if msg := rawMessage(nested.Message); msg != "" {
				return strings.TrimSpace(nested.Type + " " + msg)
			}
		}
		var flat string
		if json.Unmarshal(parsed.Error, &flat) == nil && flat != "" {
			return flat
		}
	}

	switch {
	case parsed.Name != "" && parsed.Message != "":
		return parsed.Name + ": " + parsed.Message
	default:
		return parsed.Message
	}
}

// rawMessage accepts either a string or a list of strings.
func rawMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return strings.Join(list, "; ")
	}
	return ""
}
