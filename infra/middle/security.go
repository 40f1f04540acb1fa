package middle

import (
	"net"
	"net/http"
	"strings"

	"github.com/mstgnz/telepay/infra/logger"
	"github.com/mstgnz/telepay/infra/response"
)

// maxBodyBytes caps inbound request bodies
const maxBodyBytes = 1 << 20

// SecurityHeadersMiddleware adds security headers to responses
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("Cache-Control", "no-store")

			next.ServeHTTP(w, r)
		})
	}
}

// IPWhitelistMiddleware restricts access to the given addresses or CIDR ranges.
// An empty list allows everyone.
func IPWhitelistMiddleware(allowed []string) func(http.Handler) http.Handler {
	var nets []*net.IPNet
	var ips []net.IP
	for _, entry := range allowed {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			_, n, err := net.ParseCIDR(entry)
			if err != nil {
				logger.Warn("Ignoring invalid IP_WHITELIST entry", logger.LogContext{Fields: map[string]any{"entry": entry}})
				continue
			}
			nets = append(nets, n)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			logger.Warn("Ignoring invalid IP_WHITELIST entry", logger.LogContext{Fields: map[string]any{"entry": entry}})
			continue
		}
		ips = append(ips, ip)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(allowed) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			clientIP := net.ParseIP(GetClientIP(r))
			if clientIP != nil {
				for _, ip := range ips {
					if ip.Equal(clientIP) {
						next.ServeHTTP(w, r)
						return
					}
				}
				for _, n := range nets {
					if n.Contains(clientIP) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			response.Error(w, http.StatusForbidden, "IP not whitelisted", nil)
		})
	}
}

// RequestValidationMiddleware validates content type and body size
func RequestValidationMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBodyBytes {
				response.Error(w, http.StatusRequestEntityTooLarge, "Request body too large", nil)
				return
			}

			if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
				contentType := r.Header.Get("Content-Type")
				isWebhook := strings.HasPrefix(r.URL.Path, "/webhooks")

				switch {
				case contentType == "":
					// body-less calls such as POST /auth
					if r.ContentLength > 0 && !isWebhook {
						response.Error(w, http.StatusBadRequest, "Content-Type header is required", nil)
						return
					}
				case isWebhook:
					// the gateway may post JSON or form-urlencoded
					if !strings.Contains(contentType, "application/json") &&
						!strings.Contains(contentType, "application/x-www-form-urlencoded") {
						response.Error(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json or application/x-www-form-urlencoded", nil)
						return
					}
				case !strings.Contains(contentType, "application/json"):
					response.Error(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
					return
				}
			}

			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
			}

			next.ServeHTTP(w, r)
		})
	}
}
