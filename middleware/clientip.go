package middleware

import (
	"net"
	"net/http"
	"strings"

	sias "github.com/MrEthical07/sias"
)

// ClientIP attaches the caller address to the request context for audit
// entries and reset throttling. Forwarding headers are honoured only when
// trustProxy is set.
func ClientIP(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := RemoteIP(r, trustProxy)
			next.ServeHTTP(w, r.WithContext(sias.WithClientIP(r.Context(), ip)))
		})
	}
}

// RemoteIP resolves the client address of r. It returns [sias.UnknownIP]
// when nothing usable is present.
func RemoteIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if xr := strings.TrimSpace(r.Header.Get("X-Real-IP")); xr != "" {
			return xr
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return sias.UnknownIP
	}
	return host
}
