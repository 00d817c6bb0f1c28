package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGStore struct {
	DB *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{DB: db}
}

func (s *PGStore) LoadLedger(ctx context.Context, tenantID string) (Ledger, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT record_json
    FROM payroll_records
    WHERE tenant_id = $1
    ORDER BY position
  `, tenantID)
	if err != nil {
		return Ledger{}, err
	}
	defer rows.Close()

	var ledger Ledger
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return Ledger{}, err
		}
		var record PayrollRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return Ledger{}, fmt.Errorf("decode payroll record: %w", err)
		}
		ledger.Records = append(ledger.Records, record)
	}
	return ledger, rows.Err()
}

func (s *PGStore) SaveLedger(ctx context.Context, tenantID string, ledger Ledger) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "DELETE FROM payroll_records WHERE tenant_id = $1", tenantID); err != nil {
		return err
	}

	rows := make([][]any, 0, len(ledger.Records))
	for i, record := range ledger.Records {
		payload, err := json.Marshal(record)
		if err != nil {
			return err
		}
		rows = append(rows, []any{tenantID, i, record.Period, record.EmployeeID, string(record.Status), payload})
	}
	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"payroll_records"},
			[]string{"tenant_id", "position", "period", "employee_id", "status", "record_json"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PGStore) LoadRates(ctx context.Context, tenantID string) (RateConfig, bool, error) {
	var raw []byte
	err := s.DB.QueryRow(ctx, "SELECT config_json FROM rate_configs WHERE tenant_id = $1", tenantID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return RateConfig{}, false, nil
	}
	if err != nil {
		return RateConfig{}, false, err
	}
	var cfg RateConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return RateConfig{}, false, fmt.Errorf("decode rate config: %w", err)
	}
	return cfg, true, nil
}

func (s *PGStore) SaveRates(ctx context.Context, tenantID string, cfg RateConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
    INSERT INTO rate_configs (tenant_id, config_json, updated_at)
    VALUES ($1, $2, now())
    ON CONFLICT (tenant_id)
    DO UPDATE SET config_json = EXCLUDED.config_json, updated_at = now()
  `, tenantID, payload)
	return err
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.DB.Ping(ctx)
}
