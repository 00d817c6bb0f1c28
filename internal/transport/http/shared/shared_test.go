package shared

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"payledger/internal/domain/payroll"
)

func TestValidatorAddError(t *testing.T) {
	v := NewValidator()
	v.AddError("rates", &payroll.ValidationError{Fields: []payroll.FieldError{
		{Field: "vdaRate", Reason: "must be at least 0"},
		{Field: "bonusPercent", Reason: "must be at most 100"},
	}})
	v.Required("period", " ", "is required")
	issues := v.Issues()
	if len(issues) != 3 || issues[0].Field != "bonusPercent" || issues[1].Field != "period" {
		t.Fatalf("unexpected issues: %+v", issues)
	}

	rec := httptest.NewRecorder()
	if !v.Reject(rec, "req") || rec.Code != http.StatusBadRequest {
		t.Fatalf("expected rejection with 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "validation_error") {
		t.Fatalf("expected validation_error body, got %s", rec.Body.String())
	}
}

func TestPaginationWindow(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=2&offset=3", nil)
	p := ParsePagination(req, 0, 500)
	if start, end := p.Window(4); start != 3 || end != 4 {
		t.Fatalf("unexpected window %d..%d", start, end)
	}
	if start, end := p.Window(1); start != 1 || end != 1 {
		t.Fatalf("unexpected window past end %d..%d", start, end)
	}
	all := ParsePagination(httptest.NewRequest(http.MethodGet, "/", nil), 0, 500)
	if start, end := all.Window(7); start != 0 || end != 7 {
		t.Fatalf("expected unbounded window, got %d..%d", start, end)
	}
	capped := ParsePagination(httptest.NewRequest(http.MethodGet, "/?limit=9000", nil), 0, 500)
	if capped.Limit != 500 {
		t.Fatalf("expected limit capped at 500, got %d", capped.Limit)
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst map[string]any
	v := NewValidator()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{bad"))
	if DecodeJSON(req, &dst, v) || !v.HasIssues() {
		t.Fatal("expected body issue")
	}

	rec := httptest.NewRecorder()
	big := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":"`+strings.Repeat("x", 100)+`"}`))
	big.Body = http.MaxBytesReader(rec, big.Body, 10)
	if !DecodeJSON(big, &dst, NewValidator()) {
		t.Fatal("expected oversized body to be reported")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if ClientIP(req) != "192.0.2.1" {
		t.Fatalf("unexpected ip %q", ClientIP(req))
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	if ClientIP(req) != "203.0.113.5" {
		t.Fatalf("unexpected forwarded ip %q", ClientIP(req))
	}
}
