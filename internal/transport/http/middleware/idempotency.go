package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	gocache "github.com/patrickmn/go-cache"
)

var ErrIdempotencyConflict = errors.New("idempotency key conflicts with existing request")

// IdempotencyStore remembers the response of a keyed mutation so a retried
// request with the same payload replays it instead of applying twice.
type IdempotencyStore interface {
	Check(ctx context.Context, tenantID, userID, endpoint, key, requestHash string) (json.RawMessage, bool, error)
	Save(ctx context.Context, tenantID, userID, endpoint, key, requestHash string, response json.RawMessage) error
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

type PGIdempotencyStore struct {
	db *pgxpool.Pool
}

func NewPGIdempotencyStore(db *pgxpool.Pool) *PGIdempotencyStore {
	return &PGIdempotencyStore{db: db}
}

func (s *PGIdempotencyStore) Check(ctx context.Context, tenantID, userID, endpoint, key, requestHash string) (json.RawMessage, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, nil
	}
	var storedHash string
	var stored json.RawMessage
	err := s.db.QueryRow(ctx, `
    SELECT request_hash, response_json
    FROM idempotency_keys
    WHERE tenant_id = $1 AND user_id = $2 AND key = $3 AND endpoint = $4
  `, tenantID, userID, key, endpoint).Scan(&storedHash, &stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if storedHash != requestHash {
		return nil, false, ErrIdempotencyConflict
	}
	return stored, true, nil
}

func (s *PGIdempotencyStore) Save(ctx context.Context, tenantID, userID, endpoint, key, requestHash string, response json.RawMessage) error {
	if s == nil || s.db == nil {
		return nil
	}
	tag, err := s.db.Exec(ctx, `
    INSERT INTO idempotency_keys (tenant_id, user_id, key, endpoint, request_hash, response_json)
    VALUES ($1, $2, $3, $4, $5, $6)
    ON CONFLICT (tenant_id, user_id, key, endpoint)
    DO UPDATE SET response_json = EXCLUDED.response_json
    WHERE idempotency_keys.request_hash = EXCLUDED.request_hash
  `, tenantID, userID, key, endpoint, requestHash, response)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

type idempotentResponse struct {
	hash     string
	response json.RawMessage
}

// MemoryIdempotencyStore keeps keys in process for ttl. Used without postgres.
type MemoryIdempotencyStore struct {
	entries *gocache.Cache
}

func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{entries: gocache.New(ttl, ttl)}
}

func idempotencyKey(tenantID, userID, endpoint, key string) string {
	return strings.Join([]string{tenantID, userID, endpoint, key}, "\x00")
}

func (s *MemoryIdempotencyStore) Check(_ context.Context, tenantID, userID, endpoint, key, requestHash string) (json.RawMessage, bool, error) {
	raw, ok := s.entries.Get(idempotencyKey(tenantID, userID, endpoint, key))
	if !ok {
		return nil, false, nil
	}
	entry := raw.(idempotentResponse)
	if entry.hash != requestHash {
		return nil, false, ErrIdempotencyConflict
	}
	return entry.response, true, nil
}

func (s *MemoryIdempotencyStore) Save(_ context.Context, tenantID, userID, endpoint, key, requestHash string, response json.RawMessage) error {
	k := idempotencyKey(tenantID, userID, endpoint, key)
	if err := s.entries.Add(k, idempotentResponse{hash: requestHash, response: response}, gocache.DefaultExpiration); err != nil {
		raw, ok := s.entries.Get(k)
		if ok && raw.(idempotentResponse).hash != requestHash {
			return ErrIdempotencyConflict
		}
	}
	return nil
}
