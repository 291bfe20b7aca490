package ledger

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"time"
)

// Direction is the direction in which a migration is executed.
type Direction string

// Migration directions.
const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Ledger is the ordered registry of known migrations and their applied state.
// It's not safe for concurrent use: only one apply or rollback sequence should
// be in flight at a time.
type Ledger struct {
	exec    Executor
	store   Store
	records map[string]*Record
	ordered []*Record // ascending by ID
	state   map[string]time.Time
	lastAt  time.Time
	timeNow func() time.Time
	logger  *slog.Logger
}

// New returns a new empty Ledger that executes operations with exec, and
// persists applied state with store.
func New(exec Executor, store Store, opts ...Option) (*Ledger, error) {
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}

	l := &Ledger{
		exec:    exec,
		store:   store,
		records: make(map[string]*Record),
		state:   make(map[string]time.Time),
	}

	opts = append(DefaultOptions(), opts...)
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// Load reads the persisted applied state from the store and applies it to
// registered records. It should be called once at startup, either before or
// after records are registered.
func (l *Ledger) Load(ctx context.Context) error {
	state, err := l.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed loading applied state: %w", err)
	}
	if state == nil {
		state = make(map[string]time.Time)
	}
	l.state = state

	for _, at := range state {
		if at.After(l.lastAt) {
			l.lastAt = at
		}
	}
	for _, rec := range l.ordered {
		l.syncState(rec)
	}

	if orphans := l.Orphans(); len(orphans) > 0 {
		l.logger.Warn("applied migrations have no definition", "migration_ids", orphans)
	}

	return nil
}

// Register adds rec to the ledger. It fails with DuplicateIDError if a record
// with the same ID is already registered, regardless of its contents.
func (l *Ledger) Register(rec *Record) error {
	if existing, ok := l.records[rec.ID]; ok && rec.ID != "" {
		err := DuplicateIDError{ID: rec.ID}
		if existing.Source != "" && rec.Source != "" {
			err.Sources = []string{existing.Source, rec.Source}
		}
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	idx, _ := slices.BinarySearchFunc(l.ordered, rec.ID, func(r *Record, id string) int {
		return cmp.Compare(r.ID, id)
	})
	l.ordered = slices.Insert(l.ordered, idx, rec)
	l.records[rec.ID] = rec
	l.syncState(rec)

	return nil
}

// Get returns the record with the given ID.
func (l *Ledger) Get(id string) (*Record, bool) {
	rec, ok := l.records[id]
	return rec, ok
}

// Len returns the number of registered records.
func (l *Ledger) Len() int {
	return len(l.ordered)
}

// All returns a sequence of all registered records in ascending ID order.
func (l *Ledger) All() iter.Seq[*Record] {
	return func(yield func(*Record) bool) {
		for _, rec := range l.ordered {
			if !yield(rec) {
				return
			}
		}
	}
}

// Pending returns a sequence of records that aren't applied, in ascending ID
// order. The sequence is evaluated lazily on every iteration.
func (l *Ledger) Pending() iter.Seq[*Record] {
	return func(yield func(*Record) bool) {
		for _, rec := range l.ordered {
			if rec.IsApplied() {
				continue
			}
			if !yield(rec) {
				return
			}
		}
	}
}

// Applied returns a sequence of applied records in ascending order of their
// application time. The sequence is evaluated lazily on every iteration.
func (l *Ledger) Applied() iter.Seq[*Record] {
	return func(yield func(*Record) bool) {
		for _, rec := range l.appliedSorted() {
			if !yield(rec) {
				return
			}
		}
	}
}

// Orphans returns the sorted IDs of records the store reports as applied, but
// which aren't registered.
func (l *Ledger) Orphans() []string {
	var ids []string
	for id := range l.state {
		if _, ok := l.records[id]; !ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Apply executes the forward operation of every pending record with an ID up
// to and including upTo, in ascending ID order. If upTo is empty, all pending
// records are applied. Each record is marked as applied immediately after its
// forward operation succeeds. On the first failure Apply stops and returns an
// ApplyError: records before it stay applied, and records after it stay
// pending. It returns the number of applied records.
func (l *Ledger) Apply(ctx context.Context, upTo string) (int, error) {
	if upTo != "" {
		if _, ok := l.records[upTo]; !ok {
			return 0, UnknownIDError{ID: upTo}
		}
	}

	var targets []*Record
	for rec := range l.Pending() {
		if upTo != "" && rec.ID > upTo {
			break
		}
		targets = append(targets, rec)
	}

	if len(targets) == 0 {
		l.logger.Debug("no pending migrations")
		return 0, nil
	}

	var n int
	for _, rec := range targets {
		if err := ctx.Err(); err != nil {
			return n, fmt.Errorf("interrupted before applying migration '%s': %w", rec.ID, err)
		}

		logger := l.logger.With("migration_id", rec.ID, "direction", Up)
		logger.Debug("applying migration", "operation", rec.Forward.String())
		start := l.timeNow()

		if err := l.exec.ExecuteForward(ctx, rec.Forward); err != nil {
			return n, ApplyError{ID: rec.ID, Err: err}
		}

		at := l.nextAppliedAt()
		rec.AppliedAt = sql.Null[time.Time]{V: at, Valid: true}
		l.state[rec.ID] = at
		// The schema already changed, so the state must be persisted even if
		// the context was cancelled in the meantime.
		if err := l.store.MarkApplied(context.WithoutCancel(ctx), rec, at); err != nil {
			return n, ApplyError{
				ID: rec.ID, Err: fmt.Errorf("failed persisting applied state: %w", err),
			}
		}
		n++

		logger.Info("applied migration", "duration", l.timeNow().Sub(start))
	}

	return n, nil
}

// Rollback executes the backward operation of the count most recently applied
// records, in descending order of application. Each record is marked as pending
// immediately after its backward operation succeeds. On the first failure it
// stops and returns a RollbackError. It returns the number of rolled back
// records.
func (l *Ledger) Rollback(ctx context.Context, count int) (int, error) {
	if count < 1 {
		return 0, fmt.Errorf("rollback count must be at least 1, got %d", count)
	}

	applied := l.appliedSorted()
	slices.Reverse(applied)
	if count < len(applied) {
		applied = applied[:count]
	}

	return l.rollback(ctx, applied)
}

// RollbackTo rolls back every applied record with an ID greater than id, in
// descending order of application. The record with the given ID stays applied.
// It fails with UnknownIDError if id isn't registered.
func (l *Ledger) RollbackTo(ctx context.Context, id string) (int, error) {
	if _, ok := l.records[id]; !ok {
		return 0, UnknownIDError{ID: id}
	}

	applied := l.appliedSorted()
	slices.Reverse(applied)
	targets := slices.DeleteFunc(applied, func(rec *Record) bool {
		return rec.ID <= id
	})

	return l.rollback(ctx, targets)
}

func (l *Ledger) rollback(ctx context.Context, targets []*Record) (int, error) {
	if len(targets) == 0 {
		l.logger.Debug("no migrations to roll back")
		return 0, nil
	}

	var n int
	for _, rec := range targets {
		if err := ctx.Err(); err != nil {
			return n, fmt.Errorf("interrupted before rolling back migration '%s': %w", rec.ID, err)
		}

		logger := l.logger.With("migration_id", rec.ID, "direction", Down)
		start := l.timeNow()

		if rec.IsReversible() {
			logger.Debug("rolling back migration", "operation", rec.Backward.String())
			if err := l.exec.ExecuteBackward(ctx, rec.Backward); err != nil {
				return n, RollbackError{ID: rec.ID, Err: err}
			}
		} else {
			logger.Warn("migration is irreversible, clearing applied state without changing the schema")
		}

		rec.AppliedAt = sql.Null[time.Time]{}
		delete(l.state, rec.ID)
		if err := l.store.MarkPending(context.WithoutCancel(ctx), rec); err != nil {
			return n, RollbackError{
				ID: rec.ID, Err: fmt.Errorf("failed persisting pending state: %w", err),
			}
		}
		n++

		logger.Info("rolled back migration", "duration", l.timeNow().Sub(start))
	}

	return n, nil
}

// appliedSorted returns applied records in ascending order of application.
// Ties can only come from externally written state, and are broken by ID.
func (l *Ledger) appliedSorted() []*Record {
	var applied []*Record
	for _, rec := range l.ordered {
		if rec.IsApplied() {
			applied = append(applied, rec)
		}
	}
	slices.SortStableFunc(applied, func(a, b *Record) int {
		return a.AppliedAt.V.Compare(b.AppliedAt.V)
	})
	return applied
}

// nextAppliedAt returns the current time, nudged forward if necessary so that
// application times are strictly increasing.
func (l *Ledger) nextAppliedAt() time.Time {
	at := l.timeNow().UTC().Truncate(time.Microsecond)
	if !at.After(l.lastAt) {
		at = l.lastAt.Add(time.Microsecond)
	}
	l.lastAt = at
	return at
}

func (l *Ledger) syncState(rec *Record) {
	if at, ok := l.state[rec.ID]; ok {
		rec.AppliedAt = sql.Null[time.Time]{V: at, Valid: true}
	} else {
		rec.AppliedAt = sql.Null[time.Time]{}
	}
}
