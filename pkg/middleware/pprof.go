package middleware

import (
	"log/slog"
	"net/http"
	"net/http/pprof"

	"github.com/go-chi/chi/v5"
)

// RegisterPprof mounts /debug/pprof behind an allowlist of CIDR prefixes.
func RegisterPprof(r chi.Router, allowedCIDRs []string, logger *slog.Logger) {
	r.Group(func(r chi.Router) {
		r.Use(ipAllowlist(allowedCIDRs, logger))
		r.HandleFunc("/debug/pprof/*", pprof.Index)
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	})
}

// ipAllowlist only trusts the socket peer address; forwarded headers are
// ignored because they are client controlled.
func ipAllowlist(cidrs []string, logger *slog.Logger) func(http.Handler) http.Handler {
	prefixes := parsePrefixes(cidrs, "pprof", logger)

	allowed := func(remote string) bool {
		addr, ok := peerAddr(remote)
		return ok && prefixes.contains(addr)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allowed(r.RemoteAddr) {
				logger.Warn("pprof access denied", slog.String("remote_addr", r.RemoteAddr), slog.String("path", r.URL.Path))
				writeError(w, r, http.StatusForbidden, "FORBIDDEN", "access restricted")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
