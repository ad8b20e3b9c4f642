package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/utafrali/mobilebackend/pkg/middleware"
)

// identifierKey keys a bucket on the account identifier in the JSON body,
// so that spreading guesses across addresses does not buy more attempts.
// The body is read and put back for the handler. A body without an
// identifier is not limited here; the handler rejects it.
func identifierKey(scope string) middleware.KeyFunc {
	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}
		buf, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		r.Body = readCloser{io.MultiReader(bytes.NewReader(buf), r.Body), r.Body}
		if err != nil || len(buf) > maxBodyBytes {
			return ""
		}

		var body struct {
			Identifier string `json:"identifier"`
		}
		if err := json.Unmarshal(buf, &body); err != nil {
			return ""
		}
		id := strings.ToLower(strings.TrimSpace(body.Identifier))
		if id == "" {
			return ""
		}
		return scope + ":id:" + id
	}
}

// readCloser reads the replayed body but closes the original one.
type readCloser struct {
	io.Reader
	io.Closer
}
