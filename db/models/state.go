package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.hackfix.me/ledger/db/types"
)

// MigrationState is the persisted applied state of a single migration.
type MigrationState struct {
	MigrationID string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	// AppliedAt is invalid if the migration is pending.
	AppliedAt sql.Null[time.Time]
	// Checksum of the migration definition at the time it was last applied or
	// rolled back.
	Checksum string
}

// Save stores the migration state in the database. If update is true, an
// existing record is updated, otherwise a new one is created.
func (s *MigrationState) Save(ctx context.Context, d types.Querier, update bool) error {
	if s.MigrationID == "" {
		return types.InvalidInputError{Msg: "migration ID must be set"}
	}

	timeNow := d.TimeNow().UTC()
	appliedAt := sql.Null[time.Time]{V: s.AppliedAt.V.UTC(), Valid: s.AppliedAt.Valid}
	idStr := fmt.Sprintf("ID '%s'", s.MigrationID)

	if update {
		res, err := d.ExecContext(ctx, `UPDATE ledger_state
			SET updated_at = ?,
			    applied_at = ?,
			    checksum = ?
			WHERE migration_id = ?`,
			timeNow, appliedAt, s.Checksum, s.MigrationID)
		if err != nil {
			return types.Err("migration state", idStr, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed getting affected rows: %w", err)
		}
		if n == 0 {
			return types.NoResultError{ModelName: "migration state", ID: idStr}
		}
		if n > 1 {
			return types.IntegrityError{Msg: fmt.Sprintf("updated %d migration states", n)}
		}
		s.UpdatedAt = timeNow
	} else {
		_, err := d.ExecContext(ctx, `INSERT INTO ledger_state
			(migration_id, created_at, updated_at, applied_at, checksum)
			VALUES (?, ?, ?, ?, ?)`,
			s.MigrationID, timeNow, timeNow, appliedAt, s.Checksum)
		if err != nil {
			return types.Err("migration state", idStr, err)
		}
		s.CreatedAt = timeNow
		s.UpdatedAt = timeNow
	}
	s.AppliedAt = appliedAt

	return nil
}

// Upsert updates the migration state, or creates it if it doesn't exist.
func (s *MigrationState) Upsert(ctx context.Context, d types.Querier) error {
	err := s.Save(ctx, d, true)
	if err == nil {
		return nil
	}

	var nrErr types.NoResultError
	if !errors.As(err, &nrErr) {
		return err
	}

	return s.Save(ctx, d, false)
}

// Load the migration state from the database. MigrationID must be set for the
// lookup.
func (s *MigrationState) Load(ctx context.Context, d types.Querier) error {
	if s.MigrationID == "" {
		return types.InvalidInputError{Msg: "migration ID must be set"}
	}

	states, err := MigrationStates(ctx, d,
		types.NewFilter("s.migration_id = ?", []any{s.MigrationID}))
	if err != nil {
		return err
	}

	if len(states) == 0 {
		return types.NoResultError{
			ModelName: "migration state", ID: fmt.Sprintf("ID '%s'", s.MigrationID),
		}
	}
	*s = *states[0]

	return nil
}

// MigrationStates returns one or more migration states from the database,
// ordered by migration ID. An optional filter can be passed to limit the
// results.
func MigrationStates(
	ctx context.Context, d types.Querier, filter *types.Filter,
) (states []*MigrationState, rerr error) {
	query := `SELECT
			s.migration_id, s.created_at, s.updated_at, s.applied_at, s.checksum
		FROM ledger_state s %s
		ORDER BY s.migration_id ASC`

	query, args := filter.Apply(query)
	rows, err := d.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.LoadError{ModelName: "migration states", Err: err}
	}
	defer func() {
		if err = rows.Close(); err != nil {
			rerr = fmt.Errorf("failed closing migration state rows: %w", err)
		}
	}()

	states = make([]*MigrationState, 0)
	for rows.Next() {
		var s MigrationState
		err = rows.Scan(&s.MigrationID, &s.CreatedAt, &s.UpdatedAt, &s.AppliedAt, &s.Checksum)
		if err != nil {
			return nil, types.ScanError{ModelName: "migration state", Err: err}
		}
		if s.AppliedAt.Valid {
			s.AppliedAt.V = s.AppliedAt.V.UTC()
		}
		states = append(states, &s)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating over migration state rows: %w", err)
	}

	return states, nil
}
