package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/nrednav/cuid2"

	"go.hackfix.me/ledger/db/models"
	"go.hackfix.me/ledger/db/types"
	"go.hackfix.me/ledger/ledger"
)

// Store persists the applied state of migrations. It implements the
// ledger.Store interface.
type Store struct {
	d      types.Querier
	runID  string
	logger *slog.Logger
}

var _ ledger.Store = (*Store)(nil)

// NewStore returns a new Store. Every Store has a unique run ID that is
// recorded in the history of changes it makes.
func NewStore(d types.Querier, logger *slog.Logger) *Store {
	runID := cuid2.Generate()
	return &Store{
		d:      d,
		runID:  runID,
		logger: logger.With("component", "store", "run_id", runID),
	}
}

// RunID returns the ID recorded in the history of changes made by this store.
func (s *Store) RunID() string {
	return s.runID
}

// Load implements the ledger.Store interface.
func (s *Store) Load(ctx context.Context) (map[string]time.Time, error) {
	states, err := models.MigrationStates(ctx, s.d, types.NewFilter("s.applied_at IS NOT NULL", nil))
	if err != nil {
		return nil, err
	}

	applied := make(map[string]time.Time, len(states))
	for _, st := range states {
		applied[st.MigrationID] = st.AppliedAt.V
	}
	s.logger.Debug("loaded migration state", "applied", len(applied))

	return applied, nil
}

// MarkApplied implements the ledger.Store interface.
func (s *Store) MarkApplied(ctx context.Context, rec *ledger.Record, at time.Time) error {
	return s.save(ctx, rec, ledger.Up, &models.MigrationState{
		MigrationID: rec.ID,
		AppliedAt:   sql.Null[time.Time]{V: at.UTC(), Valid: true},
		Checksum:    rec.Checksum(),
	})
}

// MarkPending implements the ledger.Store interface.
func (s *Store) MarkPending(ctx context.Context, rec *ledger.Record) error {
	return s.save(ctx, rec, ledger.Down, &models.MigrationState{
		MigrationID: rec.ID,
		Checksum:    rec.Checksum(),
	})
}

func (s *Store) save(
	ctx context.Context, rec *ledger.Record, dir ledger.Direction, st *models.MigrationState,
) error {
	if err := st.Upsert(ctx, s.d); err != nil {
		return fmt.Errorf("failed saving state of migration '%s': %w", rec.ID, err)
	}

	ev := &models.HistoryEvent{
		RunID:       s.runID,
		MigrationID: rec.ID,
		Direction:   string(dir),
		Checksum:    st.Checksum,
	}
	if err := ev.Save(ctx, s.d); err != nil {
		return fmt.Errorf("failed recording history of migration '%s': %w", rec.ID, err)
	}

	return nil
}

// Checksums returns the checksums of all applied migrations, keyed by
// migration ID.
func (s *Store) Checksums(ctx context.Context) (map[string]string, error) {
	states, err := models.MigrationStates(ctx, s.d, types.NewFilter("s.applied_at IS NOT NULL", nil))
	if err != nil {
		return nil, err
	}

	sums := make(map[string]string, len(states))
	for _, st := range states {
		sums[st.MigrationID] = st.Checksum
	}

	return sums, nil
}

// History returns the most recent history events, up to limit. If runID is
// set, only events of that run are returned. A runID shorter than a full ID is
// treated as a prefix.
func (s *Store) History(ctx context.Context, runID string, limit int) ([]*models.HistoryEvent, error) {
	filter := &types.Filter{Limit: limit}
	if runID != "" {
		if !cuid2.IsCuid(runID) {
			return nil, fmt.Errorf("invalid run ID: '%s'", runID)
		}
		filter.Where = "h.run_id LIKE ?"
		filter.Args = []any{runID + "%"}
	}

	return models.History(ctx, s.d, filter)
}
