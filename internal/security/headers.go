package security

import (
	"fmt"
	"net/http"
)

const defaultHSTSMaxAge = 365 * 24 * 60 * 60

// apiHeaders are sent on every JSON response. Pricing and sale data must not
// be cached by intermediaries.
var apiHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Cache-Control", "no-store"},
}

// Headers configures security headers for JSON API responses.
type Headers struct {
	Enable                bool
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
}

func (h Headers) hsts() string {
	if !h.EnableHSTS {
		return ""
	}
	maxAge := h.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	if h.HSTSIncludeSubdomains {
		return fmt.Sprintf("max-age=%d; includeSubDomains", maxAge)
	}
	return fmt.Sprintf("max-age=%d", maxAge)
}

// Middleware attaches the headers to each response. HSTS is only sent over TLS.
func (h Headers) Middleware(next http.Handler) http.Handler {
	if !h.Enable {
		return next
	}
	hsts := h.hsts()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dst := w.Header()
		for _, kv := range apiHeaders {
			dst.Set(kv[0], kv[1])
		}
		if hsts != "" && r.TLS != nil {
			dst.Set("Strict-Transport-Security", hsts)
		}
		next.ServeHTTP(w, r)
	})
}
