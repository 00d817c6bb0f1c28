package payroll

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// SQLStore keeps ledgers in a database/sql backend. Used with the embedded
// SQLite driver for single-node deployments.
type SQLStore struct {
	DB *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{DB: db}
}

func (s *SQLStore) LoadLedger(ctx context.Context, tenantID string) (Ledger, error) {
	rows, err := s.DB.QueryContext(ctx, `
    SELECT record_json
    FROM payroll_records
    WHERE tenant_id = ?
    ORDER BY position
  `, tenantID)
	if err != nil {
		return Ledger{}, err
	}
	defer rows.Close()

	var ledger Ledger
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return Ledger{}, err
		}
		var record PayrollRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return Ledger{}, fmt.Errorf("decode payroll record: %w", err)
		}
		ledger.Records = append(ledger.Records, record)
	}
	return ledger, rows.Err()
}

func (s *SQLStore) SaveLedger(ctx context.Context, tenantID string, ledger Ledger) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM payroll_records WHERE tenant_id = ?", tenantID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
    INSERT INTO payroll_records (tenant_id, position, period, employee_id, status, record_json)
    VALUES (?, ?, ?, ?, ?, ?)
  `)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, record := range ledger.Records {
		payload, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, tenantID, i, record.Period, record.EmployeeID, string(record.Status), string(payload)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) LoadRates(ctx context.Context, tenantID string) (RateConfig, bool, error) {
	var raw string
	err := s.DB.QueryRowContext(ctx, "SELECT config_json FROM rate_configs WHERE tenant_id = ?", tenantID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return RateConfig{}, false, nil
	}
	if err != nil {
		return RateConfig{}, false, err
	}
	var cfg RateConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return RateConfig{}, false, fmt.Errorf("decode rate config: %w", err)
	}
	return cfg, true, nil
}

func (s *SQLStore) SaveRates(ctx context.Context, tenantID string, cfg RateConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
    INSERT INTO rate_configs (tenant_id, config_json, updated_at)
    VALUES (?, ?, CURRENT_TIMESTAMP)
    ON CONFLICT (tenant_id)
    DO UPDATE SET config_json = excluded.config_json, updated_at = CURRENT_TIMESTAMP
  `, tenantID, string(payload))
	return err
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}
