package shared

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
)

// DecodeJSON decodes the request body into dst, adding an issue on failure.
// Oversized bodies are reported separately so callers can answer 413.
func DecodeJSON(r *http.Request, dst any, v *Validator) (tooLarge bool) {
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return true
		}
		v.Add("body", "must be valid JSON")
	}
	return false
}

func ClientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
