package payrollhandler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"payledger/internal/domain/audit"
	"payledger/internal/domain/auth"
	"payledger/internal/domain/payroll"
	"payledger/internal/platform/jobs"
	"payledger/internal/transport/http/api"
	"payledger/internal/transport/http/middleware"
	"payledger/internal/transport/http/shared"
)

const (
	defaultPageSize = 0
	maxPageSize     = 1000
)

type Handler struct {
	Svc        *payroll.Service
	Perms      middleware.PermissionStore
	Audit      audit.Recorder
	Idem       middleware.IdempotencyStore
	Jobs       *jobs.Service
	Files      payroll.FileWriter
	PayslipDir string

	// Notify, when set, is mailed after a payslip batch finishes.
	Notify *Notifier
}

func NewHandler(svc *payroll.Service, perms middleware.PermissionStore, recorder audit.Recorder, idem middleware.IdempotencyStore, jobSvc *jobs.Service, files payroll.FileWriter, payslipDir string) *Handler {
	return &Handler{
		Svc:        svc,
		Perms:      perms,
		Audit:      recorder,
		Idem:       idem,
		Jobs:       jobSvc,
		Files:      files,
		PayslipDir: payslipDir,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payroll", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)).Post("/uploads", h.handleUpload)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/periods", h.handleListPeriods)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/periods/{period}/records", h.handleListRecords)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/periods/{period}/records/{employeeID}", h.handleGetRecord)
		r.With(middleware.RequirePermission(auth.PermPayrollPay, h.Perms)).Post("/periods/{period}/records/{employeeID}/pay", h.handleMarkPaid)
		r.With(middleware.RequirePermission(auth.PermPayrollPay, h.Perms)).Post("/periods/{period}/pay-all", h.handleMarkAllPaid)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/periods/{period}/summary", h.handleSummary)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/periods/{period}/export/register", h.handleExportRegister)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/periods/{period}/records/{employeeID}/payslip", h.handleDownloadPayslip)
		r.With(middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)).Post("/periods/{period}/payslips", h.handleGeneratePayslips)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/jobs/{jobID}", h.handleGetJob)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/settings/rates", h.handleGetRates)
		r.With(middleware.RequirePermission(auth.PermPayrollSettings, h.Perms)).Put("/settings/rates", h.handleUpdateRates)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/ledger", h.handleExportLedger)
		r.With(middleware.RequirePermission(auth.PermPayrollSettings, h.Perms)).Put("/ledger", h.handleRestoreLedger)
	})
}

type recordsPage struct {
	Items []payroll.PayrollRecord `json:"items"`
	Total int                     `json:"total"`
}

type markPaidResponse struct {
	Record  payroll.PayrollRecord `json:"record"`
	Changed bool                  `json:"changed"`
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	requestHash := middleware.RequestHash(body)
	if idempotencyKey != "" && h.Idem != nil {
		stored, found, err := h.Idem.Check(r.Context(), user.TenantID, user.UserID, audit.ActionUpload, idempotencyKey, requestHash)
		if errors.Is(err, middleware.ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key reused with a different payload", middleware.GetRequestID(r.Context()))
			return
		}
		if err != nil {
			slog.Warn("idempotency check failed", "err", err)
		}
		if found {
			api.Created(w, json.RawMessage(stored), middleware.GetRequestID(r.Context()))
			return
		}
	}

	var batch payroll.UploadBatch
	r.Body = io.NopCloser(bytes.NewReader(body))
	v := shared.NewValidator()
	shared.DecodeJSON(r, &batch, v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	result, err := h.Svc.Upload(r.Context(), user.TenantID, batch)
	if err != nil {
		writeError(w, r, err, "payroll_upload_failed", "failed to upload payroll batch")
		return
	}

	h.record(r, user, audit.ActionUpload, "payroll_period", result.Period, nil, result)
	if idempotencyKey != "" && h.Idem != nil {
		encoded, err := json.Marshal(result)
		if err != nil {
			slog.Warn("idempotency response marshal failed", "err", err)
		} else if err := h.Idem.Save(r.Context(), user.TenantID, user.UserID, audit.ActionUpload, idempotencyKey, requestHash, encoded); err != nil {
			slog.Warn("idempotency save failed", "err", err)
		}
	}
	api.Created(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	periods, err := h.Svc.Periods(r.Context(), user.TenantID)
	if err != nil {
		writeError(w, r, err, "payroll_periods_failed", "failed to list periods")
		return
	}
	if periods == nil {
		periods = []payroll.PeriodInfo{}
	}
	api.Success(w, periods, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	values := r.URL.Query()
	v := shared.NewValidator()
	status, err := payroll.ParseStatusFilter(values.Get("status"))
	v.AddError("status", err)
	sortField, err := payroll.ParseSortField(values.Get("sort"))
	v.AddError("sort", err)
	sortDir, err := payroll.ParseSortDirection(values.Get("dir"))
	v.AddError("dir", err)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	records, err := h.Svc.View(r.Context(), user.TenantID, payroll.Query{
		Period:    pathParam(r, "period"),
		Status:    status,
		Search:    values.Get("q"),
		SortField: sortField,
		SortDir:   sortDir,
	})
	if err != nil {
		writeError(w, r, err, "payroll_records_failed", "failed to list payroll records")
		return
	}
	start, end := shared.ParsePagination(r, defaultPageSize, maxPageSize).Window(len(records))
	api.Success(w, recordsPage{Items: records[start:end], Total: len(records)}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	record, err := h.Svc.Record(r.Context(), user.TenantID, pathParam(r, "period"), pathParam(r, "employeeID"))
	if err != nil {
		writeError(w, r, err, "payroll_record_failed", "failed to load payroll record")
		return
	}
	api.Success(w, record, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	period := pathParam(r, "period")
	employeeID := pathParam(r, "employeeID")
	record, changed, err := h.Svc.MarkPaid(r.Context(), user.TenantID, period, employeeID)
	if err != nil {
		writeError(w, r, err, "payroll_mark_paid_failed", "failed to mark record paid")
		return
	}
	if changed {
		h.record(r, user, audit.ActionMarkPaid, "payroll_record", period+"/"+employeeID,
			map[string]payroll.Status{"status": payroll.StatusUnpaid}, map[string]payroll.Status{"status": record.Status})
	}
	api.Success(w, markPaidResponse{Record: record, Changed: changed}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMarkAllPaid(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	period := pathParam(r, "period")
	count, err := h.Svc.MarkAllPaid(r.Context(), user.TenantID, period)
	if err != nil {
		writeError(w, r, err, "payroll_mark_all_paid_failed", "failed to mark period paid")
		return
	}
	if count > 0 {
		h.record(r, user, audit.ActionMarkAllPaid, "payroll_period", period, nil, map[string]int{"updated": count})
	}
	api.Success(w, map[string]any{"period": period, "updated": count}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	summary, err := h.Svc.Summary(r.Context(), user.TenantID, pathParam(r, "period"))
	if err != nil {
		writeError(w, r, err, "payroll_summary_failed", "failed to summarize period")
		return
	}
	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetRates(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	rates, err := h.Svc.Rates(r.Context(), user.TenantID)
	if err != nil {
		writeError(w, r, err, "payroll_rates_failed", "failed to load rate settings")
		return
	}
	api.Success(w, rates, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateRates(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload payroll.RateConfig
	v := shared.NewValidator()
	if shared.DecodeJSON(r, &payload, v) {
		api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", middleware.GetRequestID(r.Context()))
		return
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	before, err := h.Svc.Rates(r.Context(), user.TenantID)
	if err != nil {
		writeError(w, r, err, "payroll_rates_failed", "failed to load rate settings")
		return
	}
	updated, err := h.Svc.UpdateRates(r.Context(), user.TenantID, payload)
	if err != nil {
		writeError(w, r, err, "payroll_rates_update_failed", "failed to update rate settings")
		return
	}
	h.record(r, user, audit.ActionRatesUpdate, "rate_config", user.TenantID, before, updated)
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleExportLedger(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	ledger, err := h.Svc.Snapshot(r.Context(), user.TenantID)
	if err != nil {
		writeError(w, r, err, "payroll_ledger_failed", "failed to export ledger")
		return
	}
	if ledger.Records == nil {
		ledger.Records = []payroll.PayrollRecord{}
	}
	api.Success(w, ledger, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRestoreLedger(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload payroll.Ledger
	v := shared.NewValidator()
	if shared.DecodeJSON(r, &payload, v) {
		api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", middleware.GetRequestID(r.Context()))
		return
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	count, err := h.Svc.Restore(r.Context(), user.TenantID, payload)
	if err != nil {
		writeError(w, r, err, "payroll_ledger_restore_failed", "failed to restore ledger")
		return
	}
	h.record(r, user, audit.ActionRestore, "payroll_ledger", user.TenantID, nil, map[string]int{"records": count})
	api.Success(w, map[string]int{"records": count}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) record(r *http.Request, user auth.UserContext, action, entityType, entityID string, before, after any) {
	if h.Audit == nil {
		return
	}
	err := h.Audit.Record(r.Context(), audit.Entry{
		TenantID:   user.TenantID,
		ActorID:    user.UserID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         shared.ClientIP(r),
		Before:     before,
		After:      after,
	})
	if err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}

// writeError maps domain errors onto the response envelope. Anything
// unrecognised is logged and reported with the caller's code.
func writeError(w http.ResponseWriter, r *http.Request, err error, code, message string) {
	requestID := middleware.GetRequestID(r.Context())
	var verr *payroll.ValidationError
	switch {
	case errors.As(err, &verr):
		v := shared.NewValidator()
		v.AddError("", verr)
		shared.FailValidation(w, requestID, v.Issues())
	case errors.Is(err, payroll.ErrValidation):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), requestID)
	case errors.Is(err, payroll.ErrNotFound), errors.Is(err, jobs.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
	case errors.Is(err, payroll.ErrInvalidTransition):
		api.Fail(w, http.StatusConflict, "invalid_state", err.Error(), requestID)
	case errors.Is(err, payroll.ErrTenantRequired):
		api.Fail(w, http.StatusBadRequest, "tenant_required", err.Error(), requestID)
	default:
		slog.Error(message, "err", err, "requestId", requestID)
		api.Fail(w, http.StatusInternalServerError, code, message, requestID)
	}
}

// pathParam returns the decoded URL parameter; periods such as "01/2025"
// arrive percent-encoded.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}
