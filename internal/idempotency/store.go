// Package idempotency records checkout submissions by client-supplied key so
// that a retried request replays the first response instead of placing a
// second order.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imrishuroy/bagshop/internal/docstore"
)

// ErrKeyReused is returned when a key comes back with a different request.
var ErrKeyReused = errors.New("idempotency key reused with a different request")

// Store encapsulates idempotency operations on the checkoutKeys collection.
type Store struct {
	coll      docstore.Collection[Record]
	ttlWindow time.Duration // default TTL window when creating entries
	nowFunc   func() time.Time
}

// NewStore returns a configured Store.
// ttlWindow: default TTL window (e.g., 48*time.Hour)
func NewStore(b *docstore.Backend, ttlWindow time.Duration) *Store {
	return &Store{
		coll:      docstore.Open[Record](b, docstore.CheckoutKeys),
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.nowFunc = now
	return s
}

func (s *Store) newRecord(key, requestHash string) Record {
	now := s.nowFunc().UTC()
	return Record{
		Meta:        docstore.Meta{ID: key, CreatedAt: now, UpdatedAt: now},
		Status:      StatusInProgress,
		RequestHash: requestHash,
		ExpiresAt:   now.Add(s.ttlWindow).Unix(),
	}
}

// CreateIfNotExists creates a record with status IN_PROGRESS if the key does not exist.
// Returns (true, nil) if successfully created.
// Returns (false, nil) if a live record already exists (caller should Get to inspect).
// An expired record is replaced as if it were absent.
func (s *Store) CreateIfNotExists(ctx context.Context, key, requestHash string) (bool, error) {
	rec := s.newRecord(key, requestHash)
	created, err := s.coll.PutIfAbsent(ctx, key, rec)
	if err != nil {
		return false, fmt.Errorf("create idempotency record: %w", err)
	}
	if created {
		return true, nil
	}

	existing, err := s.coll.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get idempotency record: %w", err)
	}
	if existing != nil && !existing.Data.Expired(s.nowFunc()) {
		return false, nil
	}
	if err := s.coll.Put(ctx, key, rec); err != nil {
		return false, fmt.Errorf("replace expired idempotency record: %w", err)
	}
	return true, nil
}

// Get retrieves a live record by key. If not found or expired, returns (nil, nil).
func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	got, err := s.coll.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	if got == nil || got.Data.Expired(s.nowFunc()) {
		return nil, nil
	}
	rec := got.Data
	rec.ID = got.ID
	return &rec, nil
}

// CheckRequest returns ErrKeyReused when rec was created for another request.
func CheckRequest(rec *Record, requestHash string) error {
	if rec.RequestHash != "" && requestHash != "" && rec.RequestHash != requestHash {
		return ErrKeyReused
	}
	return nil
}

func (s *Store) update(ctx context.Context, key string, fields map[string]any) error {
	fields["updatedAt"] = s.nowFunc().UTC()
	return s.coll.Update(ctx, key, fields)
}

// Retry moves a FAILED record back to IN_PROGRESS so the request can run
// again.
func (s *Store) Retry(ctx context.Context, key string) error {
	if err := s.update(ctx, key, map[string]any{"status": StatusInProgress, "note": ""}); err != nil {
		return fmt.Errorf("update record (retry): %w", err)
	}
	return nil
}

// MarkDone sets status to DONE and stores the order id and a small response body & status.
func (s *Store) MarkDone(ctx context.Context, key, orderID, responseBody string, responseStatus int) error {
	err := s.update(ctx, key, map[string]any{
		"status":         StatusDone,
		"orderId":        orderID,
		"responseBody":   responseBody,
		"responseStatus": responseStatus,
	})
	if err != nil {
		return fmt.Errorf("update record (mark done): %w", err)
	}
	return nil
}

// MarkFailed marks the record as FAILED and optionally stores a note.
func (s *Store) MarkFailed(ctx context.Context, key, note string) error {
	err := s.update(ctx, key, map[string]any{
		"status": StatusFailed,
		"note":   note,
	})
	if err != nil {
		return fmt.Errorf("update record (mark failed): %w", err)
	}
	return nil
}
