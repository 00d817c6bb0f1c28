package payroll

import (
	"context"
	"sync"
)

// Store persists tenant ledgers and rate configs. Implementations must save a
// ledger atomically: readers see either the previous or the new ledger.
type Store interface {
	LoadLedger(ctx context.Context, tenantID string) (Ledger, error)
	SaveLedger(ctx context.Context, tenantID string, ledger Ledger) error
	LoadRates(ctx context.Context, tenantID string) (RateConfig, bool, error)
	SaveRates(ctx context.Context, tenantID string, cfg RateConfig) error
	Ping(ctx context.Context) error
}

// ViewCache caches query projections per tenant. Invalidate drops every entry of the tenant.
type ViewCache interface {
	Get(ctx context.Context, tenantID, key string, dest any) (bool, error)
	Set(ctx context.Context, tenantID, key string, value any) error
	Invalidate(ctx context.Context, tenantID string) error
}

type Observer interface {
	RecordsDerived(inserted, duplicates int, dropped map[string]int)
	PaymentsMarked(mode string, count int)
}

type MemoryStore struct {
	mu      sync.RWMutex
	ledgers map[string]Ledger
	rates   map[string]RateConfig
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ledgers: map[string]Ledger{}, rates: map[string]RateConfig{}}
}

func (s *MemoryStore) LoadLedger(_ context.Context, tenantID string) (Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledgers[tenantID].Clone(), nil
}

func (s *MemoryStore) SaveLedger(_ context.Context, tenantID string, ledger Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgers[tenantID] = ledger.Clone()
	return nil
}

func (s *MemoryStore) LoadRates(_ context.Context, tenantID string) (RateConfig, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.rates[tenantID]
	return cfg, ok, nil
}

func (s *MemoryStore) SaveRates(_ context.Context, tenantID string, cfg RateConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[tenantID] = cfg
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

type noopObserver struct{}

func (noopObserver) RecordsDerived(int, int, map[string]int) {}

func (noopObserver) PaymentsMarked(string, int) {}
