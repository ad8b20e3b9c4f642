package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// prefixSet is a parsed list of CIDR prefixes.
type prefixSet []netip.Prefix

func parsePrefixes(cidrs []string, what string, logger *slog.Logger) prefixSet {
	prefixes := make(prefixSet, 0, len(cidrs))
	for _, c := range cidrs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		p, err := netip.ParsePrefix(c)
		if err != nil {
			logger.Warn("skipping invalid "+what+" CIDR", slog.String("cidr", c), slog.String("error", err.Error()))
			continue
		}
		prefixes = append(prefixes, p.Masked())
	}
	return prefixes
}

func (s prefixSet) contains(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range s {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// peerAddr parses the host part of a RemoteAddr.
func peerAddr(remote string) (netip.Addr, bool) {
	if ap, err := netip.ParseAddrPort(remote); err == nil {
		return ap.Addr().Unmap(), true
	}
	if addr, err := netip.ParseAddr(remote); err == nil {
		return addr.Unmap(), true
	}
	return netip.Addr{}, false
}

// RealIP rewrites r.RemoteAddr to the client address carried in
// X-Forwarded-For, but only when the socket peer is a trusted proxy. The
// header is walked right to left and the first hop outside the trusted set
// is taken as the client; anything left of it was written by the client.
// With no trusted proxies the request is passed through untouched.
func RealIP(trustedCIDRs []string, logger *slog.Logger) func(http.Handler) http.Handler {
	trusted := parsePrefixes(trustedCIDRs, "trusted proxy", logger)
	if len(trusted) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if peer, ok := peerAddr(r.RemoteAddr); ok && trusted.contains(peer) {
				if client, ok := forwardedClient(r.Header.Values("X-Forwarded-For"), trusted); ok {
					r.RemoteAddr = netip.AddrPortFrom(client, 0).String()
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forwardedClient(headers []string, trusted prefixSet) (netip.Addr, bool) {
	var hops []string
	for _, h := range headers {
		hops = append(hops, strings.Split(h, ",")...)
	}

	var last netip.Addr
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		addr = addr.Unmap()
		last = addr
		if !trusted.contains(addr) {
			return addr, true
		}
	}
	// Every parsed hop was a proxy; the leftmost of them is the best we have.
	return last, last.IsValid()
}

// ClientIP returns the socket peer address of the request. Behind a load
// balancer, RealIP must run first so that this is the forwarded client.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
