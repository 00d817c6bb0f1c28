package middleware

import (
	"net/http"

	"github.com/unrolled/secure"
)

// SecureHeaders sets the browser hardening headers; HSTS only in production.
func SecureHeaders(isProd bool) func(http.Handler) http.Handler {
	opts := secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		PermissionsPolicy:     "geolocation=(), microphone=(), camera=(), payment=()",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !isProd,
	}
	if isProd {
		opts.STSSeconds = 63072000
		opts.STSIncludeSubdomains = true
		opts.STSPreload = true
	}
	return secure.New(opts).Handler
}
