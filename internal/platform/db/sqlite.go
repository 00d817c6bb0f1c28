package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS payroll_records (
  tenant_id   TEXT    NOT NULL,
  position    INTEGER NOT NULL,
  period      TEXT    NOT NULL,
  employee_id TEXT    NOT NULL,
  status      TEXT    NOT NULL,
  record_json TEXT    NOT NULL,
  PRIMARY KEY (tenant_id, period, employee_id)
);
CREATE INDEX IF NOT EXISTS payroll_records_position_idx ON payroll_records (tenant_id, position);
CREATE TABLE IF NOT EXISTS rate_configs (
  tenant_id   TEXT PRIMARY KEY,
  config_json TEXT NOT NULL,
  updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// OpenSQLite opens the database file and creates the schema when missing.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single writer avoids SQLITE_BUSY on concurrent ledger saves
	conn.SetMaxOpenConns(1)
	if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	if _, err := conn.ExecContext(ctx, sqliteSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return conn, nil
}
