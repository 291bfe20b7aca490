package ledger

import (
	"context"
	"maps"
	"sync"
	"time"
)

// Executor is the schema-applying collaborator. Implementations may be slow
// and may fail; the ledger doesn't retry. Returned errors are passed to the
// caller unmodified, wrapped in ApplyError or RollbackError.
type Executor interface {
	ExecuteForward(ctx context.Context, op Operation) error
	ExecuteBackward(ctx context.Context, op Operation) error
}

// Store persists the applied state of records across process restarts.
type Store interface {
	// Load returns the application time of every applied record, keyed by ID.
	Load(ctx context.Context) (map[string]time.Time, error)
	// MarkApplied persists that rec was applied at the given time.
	MarkApplied(ctx context.Context, rec *Record, at time.Time) error
	// MarkPending persists that rec was rolled back.
	MarkPending(ctx context.Context, rec *Record) error
}

// MemStore is a Store that keeps state in memory. It's useful for tests and
// for planning without touching persistent state.
type MemStore struct {
	mx      sync.RWMutex
	applied map[string]time.Time
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns a new MemStore, optionally seeded with applied state.
func NewMemStore(applied map[string]time.Time) *MemStore {
	s := &MemStore{applied: make(map[string]time.Time, len(applied))}
	maps.Copy(s.applied, applied)
	return s
}

// Load implements the Store interface.
func (s *MemStore) Load(_ context.Context) (map[string]time.Time, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()
	return maps.Clone(s.applied), nil
}

// MarkApplied implements the Store interface.
func (s *MemStore) MarkApplied(_ context.Context, rec *Record, at time.Time) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.applied[rec.ID] = at
	return nil
}

// MarkPending implements the Store interface.
func (s *MemStore) MarkPending(_ context.Context, rec *Record) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	delete(s.applied, rec.ID)
	return nil
}
