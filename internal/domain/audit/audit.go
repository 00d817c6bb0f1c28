package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	ActionUpload      = "payroll.upload"
	ActionMarkPaid    = "payroll.mark_paid"
	ActionMarkAllPaid = "payroll.mark_all_paid"
	ActionRatesUpdate = "payroll.rates_update"
	ActionRestore     = "payroll.ledger_restore"
	ActionPayslips    = "payroll.payslips"
)

// Entry describes one audited mutation. Before and After are marshalled to JSON.
type Entry struct {
	TenantID   string
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	RequestID  string
	IP         string
	Before     any
	After      any
}

type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Trail records events and reads them back.
type Trail interface {
	Recorder
	Reader
}

// PGRecorder appends entries to the audit_events table.
type PGRecorder struct {
	DB *pgxpool.Pool
}

func NewPGRecorder(db *pgxpool.Pool) *PGRecorder {
	return &PGRecorder{DB: db}
}

func (s *PGRecorder) Record(ctx context.Context, e Entry) error {
	beforeJSON, err := marshalOptional(e.Before)
	if err != nil {
		return err
	}
	afterJSON, err := marshalOptional(e.After)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
    INSERT INTO audit_events (tenant_id, actor_user_id, action, entity_type, entity_id, before_json, after_json, request_id, ip)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
  `, e.TenantID, e.ActorID, e.Action, e.EntityType, e.EntityID, beforeJSON, afterJSON, e.RequestID, e.IP)
	return err
}

// LogRecorder writes entries to a structured logger when no database is configured.
type LogRecorder struct {
	Logger *slog.Logger
}

func (l LogRecorder) Record(ctx context.Context, e Entry) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "audit",
		"tenantId", e.TenantID,
		"actorId", e.ActorID,
		"action", e.Action,
		"entityType", e.EntityType,
		"entityId", e.EntityID,
		"requestId", e.RequestID,
		"ip", e.IP,
		"after", e.After,
	)
	return nil
}

func marshalOptional(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
