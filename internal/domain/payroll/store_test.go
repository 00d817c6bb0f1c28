package payroll_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payledger/internal/domain/payroll"
	"payledger/internal/platform/db"
)

func storeLedger() payroll.Ledger {
	paidAt := time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)
	return payroll.Ledger{Records: []payroll.PayrollRecord{
		{EmployeeID: "GO2", Name: "B", Period: "Jan", NetSalary: 900, Status: payroll.StatusPaid, PaidAt: &paidAt},
		{EmployeeID: "GO1", Name: "A", Period: "Jan", NetSalary: 1000.5, Status: payroll.StatusUnpaid},
		{EmployeeID: "GO1", Name: "A", Period: "Feb", NetSalary: 1100, Status: payroll.StatusUnpaid},
	}}
}

func exerciseStore(t *testing.T, store payroll.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Ping(ctx))

	empty, err := store.LoadLedger(ctx, "t-empty")
	require.NoError(t, err)
	assert.Empty(t, empty.Records)

	ledger := storeLedger()
	require.NoError(t, store.SaveLedger(ctx, "t1", ledger))
	loaded, err := store.LoadLedger(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, loaded.Records, 3)
	assert.Equal(t, "GO2", loaded.Records[0].EmployeeID)
	assert.Equal(t, "Feb", loaded.Records[2].Period)
	require.NotNil(t, loaded.Records[0].PaidAt)
	assert.True(t, loaded.Records[0].PaidAt.Equal(*ledger.Records[0].PaidAt))
	assert.Equal(t, 1000.5, loaded.Records[1].NetSalary)

	ledger.Records = ledger.Records[:1]
	require.NoError(t, store.SaveLedger(ctx, "t1", ledger))
	loaded, err = store.LoadLedger(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, loaded.Records, 1)

	_, found, err := store.LoadRates(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, found)

	cfg := payroll.DefaultRateConfig()
	cfg.VDARate = 150
	require.NoError(t, store.SaveRates(ctx, "t1", cfg))
	cfg.BonusPercent = 9
	require.NoError(t, store.SaveRates(ctx, "t1", cfg))
	got, found, err := store.LoadRates(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, cfg, got)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, payroll.NewMemoryStore())
}

func TestSQLStore(t *testing.T) {
	conn, err := db.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer conn.Close()
	exerciseStore(t, payroll.NewSQLStore(conn))
}

func TestPGStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Connect(ctx, url)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, db.Migrate(ctx, pool, filepath.Join("..", "..", "..", "migrations", "postgres")))

	_, err = pool.Exec(ctx, "DELETE FROM payroll_records WHERE tenant_id IN ('t1', 't-empty')")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, "DELETE FROM rate_configs WHERE tenant_id = 't1'")
	require.NoError(t, err)
	exerciseStore(t, payroll.NewPGStore(pool))
}
