package payroll

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"
)

type fakeCache struct {
	mu          sync.Mutex
	entries     map[string]any
	invalidated int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]any{}}
}

func (c *fakeCache) Get(_ context.Context, tenantID, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[tenantID+key]
	if !ok {
		return false, nil
	}
	*(dest.(*[]PayrollRecord)) = v.([]PayrollRecord)
	return true, nil
}

func (c *fakeCache) Set(_ context.Context, tenantID, key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[tenantID+key] = value
	return nil
}

func (c *fakeCache) Invalidate(context.Context, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]any{}
	c.invalidated++
	return nil
}

type countingObserver struct {
	mu       sync.Mutex
	inserted int
	paid     map[string]int
}

func (o *countingObserver) RecordsDerived(inserted, _ int, _ map[string]int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inserted += inserted
}

func (o *countingObserver) PaymentsMarked(mode string, count int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.paid == nil {
		o.paid = map[string]int{}
	}
	o.paid[mode] += count
}

var fixedNow = time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

func newTestService(opts ...Option) (*Service, *MemoryStore) {
	store := NewMemoryStore()
	opts = append([]Option{
		WithIdentitySource(rand.NewSource(7)),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	return NewService(store, DefaultRateConfig(), opts...), store
}

func batch(period string, ids ...string) UploadBatch {
	rows := make([]RawRecord, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, RawRecord{"employee_id": id, "name": "Emp " + id, "monthly_salary": 10000})
	}
	return UploadBatch{Period: period, Groups: []SourceGroup{{Name: "Acme", Rows: rows}}}
}

func TestServiceUploadReplacesPeriod(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	first, err := svc.Upload(ctx, "t1", batch("Jan", "GO1", "GO2"))
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	if first.Inserted != 2 || first.Replaced != 0 || first.BatchID == "" {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if _, _, err := svc.MarkPaid(ctx, "t1", "Jan", "GO1"); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	second, err := svc.Upload(ctx, "t1", batch("Jan", "GO1", "GO3", "GO3"))
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if second.Inserted != 2 || second.Replaced != 2 || second.Dupes != 1 {
		t.Fatalf("unexpected second result: %+v", second)
	}

	records, err := svc.View(ctx, "t1", Query{Period: "Jan"})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	equalIDs(t, records, "GO1", "GO3")
	if records[0].Status != StatusUnpaid {
		t.Fatalf("expected replaced record to be unpaid, got %s", records[0].Status)
	}

	persisted, _ := store.LoadLedger(ctx, "t1")
	if len(persisted.Records) != 2 {
		t.Fatalf("expected persisted ledger with 2 records, got %d", len(persisted.Records))
	}
}

func TestServiceUploadValidation(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Upload(context.Background(), "t1", batch("   ", "GO1"))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := svc.Upload(context.Background(), "", batch("Jan", "GO1")); !errors.Is(err, ErrTenantRequired) {
		t.Fatalf("expected ErrTenantRequired, got %v", err)
	}
}

func TestServiceMarkPaid(t *testing.T) {
	obs := &countingObserver{}
	svc, _ := newTestService(WithObserver(obs))
	ctx := context.Background()
	if _, err := svc.Upload(ctx, "t1", batch("Jan", "GO1", "GO2")); err != nil {
		t.Fatalf("upload: %v", err)
	}

	record, changed, err := svc.MarkPaid(ctx, "t1", "Jan", "GO1")
	if err != nil || !changed {
		t.Fatalf("expected change, got changed=%v err=%v", changed, err)
	}
	if record.Status != StatusPaid || record.PaidAt == nil || !record.PaidAt.Equal(fixedNow) {
		t.Fatalf("unexpected record: %+v", record)
	}

	_, changed, err = svc.MarkPaid(ctx, "t1", "Jan", "GO1")
	if err != nil || changed {
		t.Fatalf("expected idempotent no-op, got changed=%v err=%v", changed, err)
	}

	if _, _, err := svc.MarkPaid(ctx, "t1", "Jan", "GO9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	count, err := svc.MarkAllPaid(ctx, "t1", "Jan")
	if err != nil || count != 1 {
		t.Fatalf("expected one bulk payment, got %d err=%v", count, err)
	}
	if obs.inserted != 2 || obs.paid["single"] != 1 || obs.paid["bulk"] != 1 {
		t.Fatalf("unexpected observer counts: %+v", obs)
	}
}

func TestServiceViewCacheInvalidatedOnMutation(t *testing.T) {
	cache := newFakeCache()
	svc, _ := newTestService(WithViewCache(cache))
	ctx := context.Background()
	if _, err := svc.Upload(ctx, "t1", batch("Jan", "GO1")); err != nil {
		t.Fatalf("upload: %v", err)
	}
	q := Query{Period: "Jan", Status: StatusFilterUnpaid}
	first, _ := svc.View(ctx, "t1", q)
	if len(first) != 1 {
		t.Fatalf("expected one unpaid record, got %d", len(first))
	}
	if _, _, err := svc.MarkPaid(ctx, "t1", "Jan", "GO1"); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	second, _ := svc.View(ctx, "t1", q)
	if len(second) != 0 {
		t.Fatalf("expected stale view to be invalidated, got %d records", len(second))
	}
	if cache.invalidated != 2 {
		t.Fatalf("expected two invalidations, got %d", cache.invalidated)
	}
}

func TestServiceViewCacheKeepsSearchWhitespace(t *testing.T) {
	svc, _ := newTestService(WithViewCache(newFakeCache()))
	ctx := context.Background()
	if _, err := svc.Upload(ctx, "t1", batch("Jan", "GO1")); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if got, _ := svc.View(ctx, "t1", Query{Period: "Jan", Search: "go"}); len(got) != 1 {
		t.Fatalf("expected one match, got %d", len(got))
	}
	if got, _ := svc.View(ctx, "t1", Query{Period: "Jan", Search: "go "}); len(got) != 0 {
		t.Fatalf("expected padded search to miss, got %d", len(got))
	}
}

func TestServiceUpdateRatesKeepsPreviousOnError(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	bad := DefaultRateConfig()
	bad.BonusPercent = 150
	if _, err := svc.UpdateRates(ctx, "t1", bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	current, _ := svc.Rates(ctx, "t1")
	if current != DefaultRateConfig() {
		t.Fatalf("expected defaults to remain, got %+v", current)
	}

	good := DefaultRateConfig()
	good.VDARate = 150
	if _, err := svc.UpdateRates(ctx, "t1", good); err != nil {
		t.Fatalf("update rates: %v", err)
	}
	saved, found, _ := store.LoadRates(ctx, "t1")
	if !found || saved.VDARate != 150 {
		t.Fatalf("expected persisted rates, got %+v found=%v", saved, found)
	}
}

func TestServiceRatesApplyToLaterUploadsOnly(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	row := RawRecord{"employee_id": "GO1", "name": "A", "daily_salary": 500, "attendance_days": 26}
	if _, err := svc.Upload(ctx, "t1", UploadBatch{Period: "Jan", Groups: []SourceGroup{{Name: "Acme", Rows: []RawRecord{row}}}}); err != nil {
		t.Fatalf("upload: %v", err)
	}
	before, _ := svc.Record(ctx, "t1", "Jan", "GO1")

	cfg := DefaultRateConfig()
	cfg.VDARate = 200
	if _, err := svc.UpdateRates(ctx, "t1", cfg); err != nil {
		t.Fatalf("update rates: %v", err)
	}
	after, _ := svc.Record(ctx, "t1", "Jan", "GO1")
	if before.VDA != after.VDA {
		t.Fatalf("existing record changed after rate update: %v -> %v", before.VDA, after.VDA)
	}

	if _, err := svc.Upload(ctx, "t1", UploadBatch{Period: "Feb", Groups: []SourceGroup{{Name: "Acme", Rows: []RawRecord{row}}}}); err != nil {
		t.Fatalf("upload feb: %v", err)
	}
	feb, _ := svc.Record(ctx, "t1", "Feb", "GO1")
	approx(t, "feb vda", feb.VDA, 200*26)
}

func TestServiceRestore(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	dup := Ledger{Records: []PayrollRecord{
		{EmployeeID: "GO1", Period: "Jan", Status: StatusUnpaid},
		{EmployeeID: "GO1", Period: "Jan", Status: StatusPaid},
	}}
	if _, err := svc.Restore(ctx, "t1", dup); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	good := Ledger{Records: []PayrollRecord{
		{EmployeeID: "GO1", Period: "Jan", Status: StatusPaid},
		{EmployeeID: "GO2", Period: "Feb", Status: StatusUnpaid},
	}}
	count, err := svc.Restore(ctx, "t1", good)
	if err != nil || count != 2 {
		t.Fatalf("restore: count=%d err=%v", count, err)
	}
	periods, _ := svc.Periods(ctx, "t1")
	if len(periods) != 2 || periods[0].Period != "Jan" || periods[0].PaidCount != 1 {
		t.Fatalf("unexpected periods: %+v", periods)
	}
	snap, _ := svc.Snapshot(ctx, "t1")
	snap.Records[0].Status = StatusUnpaid
	again, _ := svc.Record(ctx, "t1", "Jan", "GO1")
	if again.Status != StatusPaid {
		t.Fatalf("snapshot aliased service ledger")
	}
}

func TestServiceTenantsIsolated(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.Upload(ctx, "t1", batch("Jan", "GO1")); err != nil {
		t.Fatalf("upload: %v", err)
	}
	records, err := svc.View(ctx, "t2", Query{Period: "Jan"})
	if err != nil || len(records) != 0 {
		t.Fatalf("expected empty view for other tenant, got %d err=%v", len(records), err)
	}
	if _, err := svc.Summary(ctx, "t2", "Jan"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
