// Package clientip extracts the visitor's network address from an HTTP request.
// The address feeds the per-alias visitor log.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// FromRequest returns the client address, checking in order: the "X-Real-IP"
// header, the first entry of "X-Forwarded-For", and finally RemoteAddr.
// It always returns a non-empty string; an unparsable RemoteAddr is returned
// verbatim rather than dropping the visit record.
func FromRequest(request *http.Request) string {
	if ip := net.ParseIP(request.Header.Get("X-Real-IP")); ip != nil {
		return ip.String()
	}

	if xff := request.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return request.RemoteAddr
	}

	return host
}
