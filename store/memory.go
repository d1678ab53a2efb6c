package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store using an in-memory table.
// Transactions are serialized and work on a copy of the table that replaces
// the original on commit. This is useful for testing but not recommended
// for production.
type MemoryStore struct {
	mu     sync.Mutex
	rows   map[int64]SessionRecord
	nextID int64

	// calls counts transactions and Tx method invocations.
	calls int
}

// NewMemoryStore creates a new in-memory session record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows: make(map[int64]SessionRecord),
	}
}

// WithTx runs fn against a private copy of the table.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if err := ctx.Err(); err != nil {
		return persistErr("memory", "begin transaction", err)
	}

	tx := &memoryTx{
		store:  s,
		rows:   make(map[int64]SessionRecord, len(s.rows)),
		nextID: s.nextID,
	}
	for id, rec := range s.rows {
		tx.rows[id] = rec
	}

	if err := fn(tx); err != nil {
		return err
	}

	s.rows = tx.rows
	s.nextID = tx.nextID
	return nil
}

// Seed inserts a record outside of any transaction, bypassing the
// one-record-per-key discipline. It exists to reproduce legacy data with
// duplicate rows.
func (s *MemoryStore) Seed(rec SessionRecord) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rec.ID = s.nextID
	s.rows[rec.ID] = rec
	return rec.ID
}

// Records returns a snapshot of every stored record ordered by id.
func (s *MemoryStore) Records() []SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SessionRecord, 0, len(s.rows))
	for _, rec := range s.rows {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Calls returns how many transactions and Tx operations have been issued.
func (s *MemoryStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

type memoryTx struct {
	store  *MemoryStore
	rows   map[int64]SessionRecord
	nextID int64
}

func (t *memoryTx) FindActive(ctx context.Context, user, serviceProvider string) (*SessionRecord, error) {
	records, err := t.ListByKey(ctx, user, serviceProvider)
	if err != nil {
		return nil, err
	}

	switch len(records) {
	case 0:
		return nil, nil
	case 1:
		return records[0], nil
	default:
		return records[0], fmt.Errorf("memory: %w: user=%s service_provider=%s",
			ErrDuplicateRecords, user, serviceProvider)
	}
}

func (t *memoryTx) ListByKey(ctx context.Context, user, serviceProvider string) ([]*SessionRecord, error) {
	t.store.calls++
	if err := ctx.Err(); err != nil {
		return nil, persistErr("memory", "list session records", err)
	}

	var records []*SessionRecord
	for _, rec := range t.rows {
		if rec.User == user && rec.ServiceProvider == serviceProvider {
			rec := rec
			records = append(records, &rec)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.After(records[j].Timestamp)
		}
		return records[i].ID > records[j].ID
	})
	return records, nil
}

func (t *memoryTx) Insert(ctx context.Context, rec *SessionRecord) (int64, error) {
	t.store.calls++
	if err := ctx.Err(); err != nil {
		return 0, persistErr("memory", "insert session record", err)
	}

	t.nextID++
	rec.ID = t.nextID
	t.rows[rec.ID] = *rec
	return rec.ID, nil
}

func (t *memoryTx) UpdateAction(ctx context.Context, id int64, action Action, ts time.Time) error {
	t.store.calls++
	if err := ctx.Err(); err != nil {
		return persistErr("memory", "update session record", err)
	}

	rec, ok := t.rows[id]
	if !ok {
		return persistErr("memory", "update session record", fmt.Errorf("%w: id=%d", ErrRecordNotFound, id))
	}
	rec.Action = action
	rec.Timestamp = ts
	t.rows[id] = rec
	return nil
}

func (t *memoryTx) Delete(ctx context.Context, id int64) error {
	t.store.calls++
	if err := ctx.Err(); err != nil {
		return persistErr("memory", "delete session record", err)
	}

	delete(t.rows, id)
	return nil
}
