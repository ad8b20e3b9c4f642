package http

import (
	"mime"
	"net/http"

	"github.com/utafrali/mobilebackend/pkg/httputil"
	"github.com/utafrali/mobilebackend/pkg/logger"
)

// maxBodyBytes caps JSON and form request bodies.
const maxBodyBytes = 1 << 20

// ContentTypeJSON answers 415 to POST, PUT and PATCH bodies declared as
// anything but application/json. Mobile clients that send no Content-Type
// pass through.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hasBody(r.Method) && !acceptsJSON(r.Header.Get("Content-Type")) {
			httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{Error: &httputil.ErrorResponse{
				Code:      "UNSUPPORTED_MEDIA_TYPE",
				Message:   "Content-Type must be application/json",
				RequestID: logger.CorrelationIDFromContext(r.Context()),
			}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func hasBody(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

func acceptsJSON(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}
