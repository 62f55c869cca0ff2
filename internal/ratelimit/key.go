package ratelimit

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// IdentityKey attributes quota usage: the stable user identifier when the
// caller is authenticated, otherwise the normalized network origin.
// trustProxy controls whether X-Forwarded-For is honored; leave it off
// unless a proxy under your control sets the header, or anonymous callers
// can mint fresh identities by rotating it.
func IdentityKey(userID string, r *http.Request, trustProxy bool) string {
	if userID != "" {
		return "user:" + userID
	}
	return "ip:" + clientIP(r, trustProxy)
}

// clientIP extracts the remote address and normalizes IPv4-mapped IPv6
// addresses to their embedded IPv4 form, so one origin is not counted under
// two representations.
func clientIP(r *http.Request, trustProxy bool) string {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		host = h
	}
	if trustProxy {
		if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
			if first, _, found := strings.Cut(forwarded, ","); found || first != "" {
				host = strings.TrimSpace(first)
			}
		}
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return host
	}
	return addr.Unmap().String()
}
