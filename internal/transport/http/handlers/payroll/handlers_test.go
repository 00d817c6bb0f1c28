package payrollhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"payledger/internal/domain/auth"
	"payledger/internal/domain/payroll"
	"payledger/internal/platform/jobs"
	"payledger/internal/transport/http/middleware"
)

type plainFiles struct{}

func (plainFiles) WriteFile(path string, data []byte) (string, error) {
	return path, os.WriteFile(path, data, 0o600)
}

type sentMail struct {
	to, subject, body string
}

type recordingMailer struct {
	sent chan sentMail
}

func (m recordingMailer) Send(_ context.Context, _, to, subject, body string) error {
	m.sent <- sentMail{to: to, subject: subject, body: body}
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type testServer struct {
	router  http.Handler
	jobs    *jobs.Service
	dir     string
	user    *auth.UserContext
	handler *Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	svc := payroll.NewService(payroll.NewMemoryStore(), payroll.DefaultRateConfig(),
		payroll.WithIdentitySource(rand.NewSource(1)))
	jobSvc := jobs.New(nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	jobSvc.Start(ctx)

	ts := &testServer{
		jobs: jobSvc,
		dir:  t.TempDir(),
		user: &auth.UserContext{UserID: "officer", TenantID: "t1", Role: auth.RolePayrollOfficer},
	}
	ts.handler = NewHandler(svc, auth.NewStaticPermissions(), nil, middleware.NewMemoryIdempotencyStore(time.Minute), jobSvc, plainFiles{}, ts.dir)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if ts.user != nil {
				req = req.WithContext(middleware.WithUser(req.Context(), *ts.user))
			}
			next.ServeHTTP(w, req)
		})
	})
	ts.handler.RegisterRoutes(r)
	ts.router = r
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return env
}

const janUpload = `{"period":"Jan 2025","groups":[{"name":"Acme","rows":[
  {"employee_id":"GO1","name":"Asha","monthly_salary":26000,"attendance_days":26},
  {"employee_id":"GO2","name":"Bala","monthly_salary":13000,"attendance_days":13},
  {"employee_id":"GO3","name":"Chitra","monthly_salary":39000,"attendance_days":26}
]}]}`

func TestUploadAndListRecords(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/payroll/uploads", janUpload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var result payroll.UploadResult
	decode(t, rec, &result)
	if result.Inserted != 3 || result.Period != "Jan 2025" {
		t.Fatalf("unexpected upload result: %+v", result)
	}

	rec = ts.do(t, http.MethodGet, "/payroll/periods/Jan%202025/records?sort=netSalary&dir=desc&limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var page recordsPage
	decode(t, rec, &page)
	if page.Total != 3 || len(page.Items) != 2 {
		t.Fatalf("expected 2 of 3 records, got %d of %d", len(page.Items), page.Total)
	}
	if page.Items[0].EmployeeID != "GO3" {
		t.Fatalf("expected highest net first, got %s", page.Items[0].EmployeeID)
	}

	rec = ts.do(t, http.MethodGet, "/payroll/periods", "")
	var periods []payroll.PeriodInfo
	decode(t, rec, &periods)
	if len(periods) != 1 || periods[0].RecordCount != 3 {
		t.Fatalf("unexpected periods: %+v", periods)
	}
}

func TestListPeriodsEmpty(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/payroll/periods", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Fatalf("expected empty list, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUploadValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/payroll/uploads", `{"period":"","groups":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	env := decode(t, rec, nil)
	if env.Error == nil || env.Error.Code != "validation_error" || !strings.Contains(string(env.Error.Details), "period") {
		t.Fatalf("expected period validation issue, got %s", rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/payroll/uploads", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestUploadIdempotencyKey(t *testing.T) {
	ts := newTestServer(t)

	first := ts.do(t, http.MethodPost, "/payroll/uploads", janUpload, "Idempotency-Key", "k1")
	second := ts.do(t, http.MethodPost, "/payroll/uploads", janUpload, "Idempotency-Key", "k1")
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("expected both uploads to succeed, got %d and %d", first.Code, second.Code)
	}
	var a, b payroll.UploadResult
	decode(t, first, &a)
	decode(t, second, &b)
	if a.BatchID != b.BatchID {
		t.Fatalf("expected replayed batch id, got %s and %s", a.BatchID, b.BatchID)
	}

	conflict := ts.do(t, http.MethodPost, "/payroll/uploads", `{"period":"Feb","groups":[]}`, "Idempotency-Key", "k1")
	if conflict.Code != http.StatusConflict {
		t.Fatalf("expected 409 for reused key, got %d", conflict.Code)
	}
}

func TestListRecordsRejectsBadFilters(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/payroll/periods/Jan/records?status=maybe&sort=shoeSize&dir=up", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	env := decode(t, rec, nil)
	for _, field := range []string{"status", "sort", "dir"} {
		if !strings.Contains(string(env.Error.Details), `"`+field+`"`) {
			t.Fatalf("expected issue for %s, got %s", field, env.Error.Details)
		}
	}
}

func TestMarkPaidFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/payroll/uploads", janUpload)

	rec := ts.do(t, http.MethodPost, "/payroll/periods/Jan%202025/records/GO1/pay", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp markPaidResponse
	decode(t, rec, &resp)
	if !resp.Changed || resp.Record.Status != payroll.StatusPaid || resp.Record.PaidAt == nil {
		t.Fatalf("unexpected mark paid response: %+v", resp)
	}

	rec = ts.do(t, http.MethodPost, "/payroll/periods/Jan%202025/records/GO1/pay", "")
	decode(t, rec, &resp)
	if rec.Code != http.StatusOK || resp.Changed {
		t.Fatalf("expected idempotent second mark, got %d changed=%v", rec.Code, resp.Changed)
	}

	rec = ts.do(t, http.MethodPost, "/payroll/periods/Jan%202025/records/GO999/pay", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/payroll/periods/Jan%202025/pay-all", "")
	var all map[string]any
	decode(t, rec, &all)
	if all["updated"] != 2.0 {
		t.Fatalf("expected 2 remaining records paid, got %v", all["updated"])
	}

	rec = ts.do(t, http.MethodGet, "/payroll/periods/Jan%202025/records?status=unpaid", "")
	var page recordsPage
	decode(t, rec, &page)
	if page.Total != 0 {
		t.Fatalf("expected no unpaid records, got %d", page.Total)
	}
}

func TestViewerCannotPay(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/payroll/uploads", janUpload)
	ts.user = &auth.UserContext{UserID: "v", TenantID: "t1", Role: auth.RoleViewer}

	if rec := ts.do(t, http.MethodPost, "/payroll/periods/Jan%202025/pay-all", ""); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/payroll/periods/Jan%202025/summary", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected viewer to read summary, got %d", rec.Code)
	}

	ts.user = nil
	if rec := ts.do(t, http.MethodGet, "/payroll/periods", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSummaryNotFound(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/payroll/periods/Mar/summary", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUpdateRates(t *testing.T) {
	ts := newTestServer(t)
	ts.user = &auth.UserContext{UserID: "admin", TenantID: "t1", Role: auth.RoleAdmin}

	cfg := payroll.DefaultRateConfig()
	cfg.BonusPercent = 150
	body, _ := json.Marshal(cfg)
	rec := ts.do(t, http.MethodPut, "/payroll/settings/rates", string(body))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "bonusPercent") {
		t.Fatalf("expected bonusPercent issue, got %s", rec.Body.String())
	}

	cfg.BonusPercent = 10
	body, _ = json.Marshal(cfg)
	rec = ts.do(t, http.MethodPut, "/payroll/settings/rates", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/payroll/settings/rates", "")
	var got payroll.RateConfig
	decode(t, rec, &got)
	if got.BonusPercent != 10 {
		t.Fatalf("expected updated bonus percent, got %v", got.BonusPercent)
	}

	ts.user = &auth.UserContext{UserID: "officer", TenantID: "t1", Role: auth.RolePayrollOfficer}
	if rec := ts.do(t, http.MethodPut, "/payroll/settings/rates", string(body)); rec.Code != http.StatusForbidden {
		t.Fatalf("expected officer to be forbidden from settings, got %d", rec.Code)
	}
}

func TestExportRegisterAndPayslip(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/payroll/uploads", janUpload)

	rec := ts.do(t, http.MethodGet, "/payroll/periods/Jan%202025/export/register", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "text/csv" {
		t.Fatalf("expected csv content type, got %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "salary-register-Jan_2025.csv") {
		t.Fatalf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 4 || !strings.HasPrefix(lines[0], "employee_id,") {
		t.Fatalf("unexpected register: %q", rec.Body.String())
	}

	if rec := ts.do(t, http.MethodGet, "/payroll/periods/Dec/export/register", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown period, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/payroll/periods/Jan%202025/records/GO2/payslip", "")
	if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected pdf payslip, got %d", rec.Code)
	}
}

func TestGeneratePayslipsJob(t *testing.T) {
	ts := newTestServer(t)
	mailer := recordingMailer{sent: make(chan sentMail, 1)}
	ts.handler.Notify = &Notifier{Mailer: mailer, From: "payledger@example.com", To: "hr@example.com"}
	ts.do(t, http.MethodPost, "/payroll/uploads", janUpload)

	rec := ts.do(t, http.MethodPost, "/payroll/periods/Jan%202025/payslips", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var run jobs.Run
	decode(t, rec, &run)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec = ts.do(t, http.MethodGet, "/payroll/jobs/"+run.ID, "")
		decode(t, rec, &run)
		if run.Status == jobs.StatusCompleted || run.Status == jobs.StatusFailed {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if run.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed job, got %s (%s)", run.Status, run.Error)
	}
	if _, err := os.Stat(filepath.Join(ts.dir, "t1", payroll.FileName("Jan 2025"), "GO1.pdf")); err != nil {
		t.Fatalf("expected payslip file: %v", err)
	}
	select {
	case mail := <-mailer.sent:
		if mail.to != "hr@example.com" || mail.subject != "Payslips ready: Jan 2025" || !strings.Contains(mail.body, "Generated 3 payslips") {
			t.Fatalf("unexpected notification %+v", mail)
		}
	case <-time.After(time.Second):
		t.Fatal("expected batch notification")
	}

	ts.user = &auth.UserContext{UserID: "other", TenantID: "t2", Role: auth.RoleAdmin}
	if rec := ts.do(t, http.MethodGet, "/payroll/jobs/"+run.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected job to be hidden from other tenant, got %d", rec.Code)
	}
}

func TestLedgerExportRestore(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/payroll/uploads", janUpload)

	rec := ts.do(t, http.MethodGet, "/payroll/ledger", "")
	env := decode(t, rec, nil)
	if !env.Success {
		t.Fatalf("expected ledger export, got %s", rec.Body.String())
	}

	ts.user = &auth.UserContext{UserID: "admin", TenantID: "t2", Role: auth.RoleAdmin}
	rec = ts.do(t, http.MethodPut, "/payroll/ledger", string(env.Data))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected restore to succeed, got %d: %s", rec.Code, rec.Body.String())
	}
	var restored map[string]int
	decode(t, rec, &restored)
	if restored["records"] != 3 {
		t.Fatalf("expected 3 restored records, got %v", restored)
	}

	bad := `{"records":[{"employeeId":"","period":"Jan","status":"Unpaid"}]}`
	if rec := ts.do(t, http.MethodPut, "/payroll/ledger", bad); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected invalid snapshot to be rejected, got %d", rec.Code)
	}
}
