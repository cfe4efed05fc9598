package util

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the caller IP used to key the abuse rate limiter.
// Forwarded headers are taken at face value here: the service is expected
// to sit behind its own reverse proxy.
func ClientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		if ip := parseIP(strings.SplitN(fwd, ",", 2)[0]); ip != nil {
			return ip.String()
		}
	}
	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != nil {
		return ip.String()
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func parseIP(raw string) net.IP {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return net.ParseIP(raw)
}
