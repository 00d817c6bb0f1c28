package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Service owns one ledger and rate config per tenant. Mutations of a tenant are
// serialized and persisted before they become visible; reads share a snapshot.
type Service struct {
	store    Store
	cache    ViewCache
	observer Observer
	ids      *IdentityNormalizer
	defaults RateConfig
	now      func() time.Time

	mu      sync.Mutex
	tenants map[string]*tenantState
	loads   singleflight.Group
}

type tenantState struct {
	mu     sync.RWMutex
	ledger Ledger
	rates  RateConfig
}

type Option func(*Service)

func WithViewCache(cache ViewCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithObserver(observer Observer) Option {
	return func(s *Service) {
		if observer != nil {
			s.observer = observer
		}
	}
}

func WithIdentitySource(src rand.Source) Option {
	return func(s *Service) {
		s.ids = NewIdentityNormalizer(src)
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(store Store, defaults RateConfig, opts ...Option) *Service {
	s := &Service{
		store:    store,
		observer: noopObserver{},
		ids:      NewIdentityNormalizer(nil),
		defaults: defaults,
		now:      time.Now,
		tenants:  map[string]*tenantState{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) tenant(ctx context.Context, tenantID string) (*tenantState, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrTenantRequired
	}
	s.mu.Lock()
	state, ok := s.tenants[tenantID]
	s.mu.Unlock()
	if ok {
		return state, nil
	}

	loaded, err, _ := s.loads.Do(tenantID, func() (any, error) {
		s.mu.Lock()
		if existing, ok := s.tenants[tenantID]; ok {
			s.mu.Unlock()
			return existing, nil
		}
		s.mu.Unlock()

		ledger, err := s.store.LoadLedger(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("load ledger: %w", err)
		}
		rates, found, err := s.store.LoadRates(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("load rates: %w", err)
		}
		if !found {
			rates = s.defaults
		}
		state := &tenantState{ledger: ledger, rates: rates}

		s.mu.Lock()
		s.tenants[tenantID] = state
		s.mu.Unlock()
		slog.Debug("tenant ledger loaded", "tenantId", tenantID, "records", len(ledger.Records))
		return state, nil
	})
	if err != nil {
		return nil, err
	}
	return loaded.(*tenantState), nil
}

// Upload derives the batch with a snapshot of the tenant rates and replaces
// the batch period in the ledger.
func (s *Service) Upload(ctx context.Context, tenantID string, batch UploadBatch) (UploadResult, error) {
	batch.Period = strings.TrimSpace(batch.Period)
	if err := validateStruct(batch); err != nil {
		return UploadResult{}, err
	}
	state, err := s.tenant(ctx, tenantID)
	if err != nil {
		return UploadResult{}, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	derived := DeriveBatch(batch, state.rates, s.ids)
	next, reconciled := Reconcile(state.ledger, batch.Period, derived.Records)
	if err := s.store.SaveLedger(ctx, tenantID, next); err != nil {
		return UploadResult{}, fmt.Errorf("save ledger: %w", err)
	}
	state.ledger = next
	s.invalidate(ctx, tenantID)
	s.observer.RecordsDerived(reconciled.Inserted, reconciled.Duplicates, derived.Dropped)

	result := UploadResult{
		BatchID:  uuid.NewString(),
		Period:   batch.Period,
		Inserted: reconciled.Inserted,
		Replaced: reconciled.Replaced,
		Dupes:    reconciled.Duplicates,
		Dropped:  derived.Dropped,
	}
	slog.Info("payroll period uploaded",
		"tenantId", tenantID,
		"batchId", result.BatchID,
		"period", batch.Period,
		"inserted", reconciled.Inserted,
		"replaced", reconciled.Replaced,
		"duplicates", reconciled.Duplicates,
	)
	return result, nil
}

func (s *Service) Rates(ctx context.Context, tenantID string) (RateConfig, error) {
	state, err := s.tenant(ctx, tenantID)
	if err != nil {
		return RateConfig{}, err
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	return state.rates, nil
}

// UpdateRates replaces the whole rate config. Invalid configs leave the current one in effect.
func (s *Service) UpdateRates(ctx context.Context, tenantID string, cfg RateConfig) (RateConfig, error) {
	if err := cfg.Validate(); err != nil {
		return RateConfig{}, err
	}
	state, err := s.tenant(ctx, tenantID)
	if err != nil {
		return RateConfig{}, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	if err := s.store.SaveRates(ctx, tenantID, cfg); err != nil {
		return RateConfig{}, fmt.Errorf("save rates: %w", err)
	}
	state.rates = cfg
	return cfg, nil
}

func (s *Service) MarkPaid(ctx context.Context, tenantID, period, employeeID string) (PayrollRecord, bool, error) {
	state, err := s.tenant(ctx, tenantID)
	if err != nil {
		return PayrollRecord{}, false, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	next, changed, err := MarkPaid(state.ledger, employeeID, period, s.now())
	if err != nil {
		return PayrollRecord{}, false, err
	}
	if changed {
		if err := s.store.SaveLedger(ctx, tenantID, next); err != nil {
			return PayrollRecord{}, false, fmt.Errorf("save ledger: %w", err)
		}
		state.ledger = next
		s.invalidate(ctx, tenantID)
		s.observer.PaymentsMarked("single", 1)
	}
	record, _ := state.ledger.Find(employeeID, period)
	return record, changed, nil
}

func (s *Service) MarkAllPaid(ctx context.Context, tenantID, period string) (int, error) {
	state, err := s.tenant(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	next, count := MarkAllPaid(state.ledger, period, s.now())
	if count == 0 {
		return 0, nil
	}
	if err := s.store.SaveLedger(ctx, tenantID, next); err != nil {
		return 0, fmt.Errorf("save ledger: %w", err)
	}
	state.ledger = next
	s.invalidate(ctx, tenantID)
	s.observer.PaymentsMarked("bulk", count)
	slog.Info("payroll period marked paid", "tenantId", tenantID, "period", period, "count", count)
	return count, nil
}

func (s *Service) View(ctx context.Context, tenantID string, q Query) ([]PayrollRecord, error) {
	state, err := s.tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	state.mu.RLock()
	defer state.mu.RUnlock()

	key := viewKey(q)
	if s.cache != nil {
		var cached []PayrollRecord
		hit, err := s.cache.Get(ctx, tenantID, key, &cached)
		if err != nil {
			slog.Warn("view cache read failed", "tenantId", tenantID, "err", err)
		} else if hit {
			return cached, nil
		}
	}

	out := View(state.ledger, q)
	if s.cache != nil {
		if err := s.cache.Set(ctx, tenantID, key, out); err != nil {
			slog.Warn("view cache write failed", "tenantId", tenantID, "err", err)
		}
	}
	return out, nil
}

func (s *Service) Record(ctx context.Context, tenantID, period, employeeID string) (PayrollRecord, error) {
	state, err := s.tenant(ctx, tenantID)
	if err != nil {
		return PayrollRecord{}, err
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	record, ok := state.ledger.Find(employeeID, period)
	if !ok {
		return PayrollRecord{}, fmt.Errorf("%w: %s in %s", ErrNotFound, employeeID, period)
	}
	return record, nil
}

func (s *Service) Summary(ctx context.Context, tenantID, period string) (PeriodSummary, error) {
	state, err := s.tenant(ctx, tenantID)
	if err != nil {
		return PeriodSummary{}, err
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	return Summarize(state.ledger, period)
}

func (s *Service) Periods(ctx context.Context, tenantID string) ([]PeriodInfo, error) {
	state, err := s.tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	return state.ledger.Periods(), nil
}

// Snapshot returns a copy of the tenant ledger suitable for serialization.
func (s *Service) Snapshot(ctx context.Context, tenantID string) (Ledger, error) {
	state, err := s.tenant(ctx, tenantID)
	if err != nil {
		return Ledger{}, err
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	return state.ledger.Clone(), nil
}

// Restore replaces the tenant ledger with a previously exported snapshot.
func (s *Service) Restore(ctx context.Context, tenantID string, ledger Ledger) (int, error) {
	if err := ledger.Validate(); err != nil {
		return 0, err
	}
	state, err := s.tenant(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	next := ledger.Clone()
	if err := s.store.SaveLedger(ctx, tenantID, next); err != nil {
		return 0, fmt.Errorf("save ledger: %w", err)
	}
	state.ledger = next
	s.invalidate(ctx, tenantID)
	return len(next.Records), nil
}

func (s *Service) invalidate(ctx context.Context, tenantID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tenantID); err != nil {
		slog.Warn("view cache invalidate failed", "tenantId", tenantID, "err", err)
	}
}

func viewKey(q Query) string {
	return strings.Join([]string{
		"view", q.Period, string(q.Status), strings.ToLower(q.Search), q.SortField, string(q.SortDir),
	}, "|")
}
