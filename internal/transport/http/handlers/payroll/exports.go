package payrollhandler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"payledger/internal/domain/audit"
	"payledger/internal/domain/payroll"
	"payledger/internal/platform/jobs"
	"payledger/internal/transport/http/api"
	"payledger/internal/transport/http/middleware"
)

func (h *Handler) handleExportRegister(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	period := pathParam(r, "period")
	records, err := h.Svc.View(r.Context(), user.TenantID, payroll.Query{Period: period})
	if err != nil {
		writeError(w, r, err, "payroll_export_failed", "failed to export register")
		return
	}
	if len(records) == 0 {
		api.Fail(w, http.StatusNotFound, "not_found", "payroll period not found", middleware.GetRequestID(r.Context()))
		return
	}

	var buf bytes.Buffer
	if err := payroll.WriteRegister(&buf, records); err != nil {
		writeError(w, r, err, "payroll_export_failed", "failed to export register")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "salary-register-"+payroll.SafeName(period)+".csv"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleDownloadPayslip(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	record, err := h.Svc.Record(r.Context(), user.TenantID, pathParam(r, "period"), pathParam(r, "employeeID"))
	if err != nil {
		writeError(w, r, err, "payslip_failed", "failed to load payroll record")
		return
	}
	var buf bytes.Buffer
	if err := payroll.WritePayslip(&buf, record); err != nil {
		writeError(w, r, err, "payslip_failed", "failed to render payslip")
		return
	}
	name := "payslip-" + payroll.SafeName(record.Period) + "-" + payroll.SafeName(record.EmployeeID) + ".pdf"
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleGeneratePayslips queues a job writing one PDF per record of the
// period under PayslipDir/<tenant>/<period>/.
func (h *Handler) handleGeneratePayslips(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	if h.Jobs == nil || h.Files == nil {
		api.Fail(w, http.StatusServiceUnavailable, "jobs_unavailable", "payslip generation is not configured", middleware.GetRequestID(r.Context()))
		return
	}

	period := pathParam(r, "period")
	records, err := h.Svc.View(r.Context(), user.TenantID, payroll.Query{Period: period})
	if err != nil {
		writeError(w, r, err, "payslip_job_failed", "failed to queue payslips")
		return
	}
	if len(records) == 0 {
		api.Fail(w, http.StatusNotFound, "not_found", "payroll period not found", middleware.GetRequestID(r.Context()))
		return
	}

	dir := filepath.Join(h.PayslipDir, payroll.FileName(user.TenantID))
	files, notify, tenantID := h.Files, h.Notify, user.TenantID
	run, err := h.Jobs.Enqueue(jobs.JobPayslips, tenantID, func(ctx context.Context) (any, error) {
		batch, err := payroll.WritePayslips(ctx, dir, period, records, files)
		notify.batchDone(ctx, tenantID, batch, err)
		return batch, err
	})
	if errors.Is(err, jobs.ErrQueueFull) {
		api.Fail(w, http.StatusServiceUnavailable, "queue_full", "job queue is full, retry later", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		writeError(w, r, err, "payslip_job_failed", "failed to queue payslips")
		return
	}
	h.record(r, user, audit.ActionPayslips, "payroll_period", period, nil, map[string]any{"jobId": run.ID, "records": len(records)})
	api.Accepted(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	if h.Jobs == nil {
		api.Fail(w, http.StatusNotFound, "not_found", "job not found", middleware.GetRequestID(r.Context()))
		return
	}
	run, err := h.Jobs.Get(user.TenantID, pathParam(r, "jobID"))
	if err != nil {
		writeError(w, r, err, "job_lookup_failed", "failed to load job")
		return
	}
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}
