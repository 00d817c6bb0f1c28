package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

type Event struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actorId"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	RequestID  string          `json:"requestId"`
	IP         string          `json:"ip"`
	CreatedAt  time.Time       `json:"createdAt"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

type Filter struct {
	Action     string
	EntityType string
	ActorUser  string
}

func (f Filter) matches(e Event) bool {
	return (f.Action == "" || e.Action == f.Action) &&
		(f.EntityType == "" || e.EntityType == f.EntityType) &&
		(f.ActorUser == "" || e.ActorID == f.ActorUser)
}

// Reader lists recorded events newest first. A limit of 0 returns all matches.
type Reader interface {
	Count(ctx context.Context, tenantID string, filter Filter) (int, error)
	List(ctx context.Context, tenantID string, filter Filter, includeDetails bool, limit, offset int) ([]Event, error)
}

func (s *PGRecorder) Count(ctx context.Context, tenantID string, filter Filter) (int, error) {
	query, args := buildBaseQuery("SELECT COUNT(1)", tenantID, filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *PGRecorder) List(ctx context.Context, tenantID string, filter Filter, includeDetails bool, limit, offset int) ([]Event, error) {
	selectCols := "id::text, actor_user_id, action, entity_type, entity_id, COALESCE(request_id, ''), COALESCE(ip, ''), created_at"
	if includeDetails {
		selectCols += ", before_json, after_json"
	}
	query, args := buildBaseQuery("SELECT "+selectCols, tenantID, filter)
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}
	query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
	args = append(args, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var evt Event
		dest := []any{&evt.ID, &evt.ActorID, &evt.Action, &evt.EntityType, &evt.EntityID, &evt.RequestID, &evt.IP, &evt.CreatedAt}
		if includeDetails {
			dest = append(dest, &evt.Before, &evt.After)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func buildBaseQuery(prefix, tenantID string, filter Filter) (string, []any) {
	query := prefix + " FROM audit_events WHERE tenant_id = $1"
	args := []any{tenantID}
	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", len(args)+1)
		args = append(args, filter.Action)
	}
	if filter.EntityType != "" {
		query += fmt.Sprintf(" AND entity_type = $%d", len(args)+1)
		args = append(args, filter.EntityType)
	}
	if filter.ActorUser != "" {
		query += fmt.Sprintf(" AND actor_user_id = $%d", len(args)+1)
		args = append(args, filter.ActorUser)
	}
	return query, args
}

// MemoryRecorder keeps the most recent events per tenant in process and
// mirrors every entry to the log.
type MemoryRecorder struct {
	Log   LogRecorder
	limit int

	mu     sync.RWMutex
	seq    int64
	events map[string][]Event
}

func NewMemoryRecorder(logger *slog.Logger, limit int) *MemoryRecorder {
	if limit <= 0 {
		limit = 1000
	}
	return &MemoryRecorder{Log: LogRecorder{Logger: logger}, limit: limit, events: map[string][]Event{}}
}

func (m *MemoryRecorder) Record(ctx context.Context, e Entry) error {
	before, err := marshalOptional(e.Before)
	if err != nil {
		return err
	}
	after, err := marshalOptional(e.After)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.seq++
	evt := Event{
		ID:         strconv.FormatInt(m.seq, 10),
		ActorID:    e.ActorID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		RequestID:  e.RequestID,
		IP:         e.IP,
		CreatedAt:  time.Now().UTC(),
		Before:     before,
		After:      after,
	}
	list := append(m.events[e.TenantID], evt)
	if len(list) > m.limit {
		list = append([]Event(nil), list[len(list)-m.limit:]...)
	}
	m.events[e.TenantID] = list
	m.mu.Unlock()

	return m.Log.Record(ctx, e)
}

func (m *MemoryRecorder) Count(_ context.Context, tenantID string, filter Filter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, evt := range m.events[tenantID] {
		if filter.matches(evt) {
			total++
		}
	}
	return total, nil
}

func (m *MemoryRecorder) List(_ context.Context, tenantID string, filter Filter, includeDetails bool, limit, offset int) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := m.events[tenantID]
	out := []Event{}
	skipped := 0
	for i := len(events) - 1; i >= 0; i-- {
		evt := events[i]
		if !filter.matches(evt) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if !includeDetails {
			evt.Before, evt.After = nil, nil
		}
		out = append(out, evt)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
