package models

import (
	"context"
	"fmt"
	"time"

	"go.hackfix.me/ledger/db/types"
)

// HistoryEvent records a single apply or rollback of a migration.
type HistoryEvent struct {
	ID        uint64
	CreatedAt time.Time
	// RunID identifies the ledger run that produced the event.
	RunID       string
	MigrationID string
	// Direction is either "up" or "down".
	Direction string
	Checksum  string
}

// Save appends the event to the history.
func (e *HistoryEvent) Save(ctx context.Context, d types.Querier) error {
	if e.MigrationID == "" || e.RunID == "" {
		return types.InvalidInputError{Msg: "migration ID and run ID must be set"}
	}

	timeNow := d.TimeNow().UTC()
	res, err := d.ExecContext(ctx, `INSERT INTO ledger_history
		(id, created_at, run_id, migration_id, direction, checksum)
		VALUES (NULL, ?, ?, ?, ?, ?)`,
		timeNow, e.RunID, e.MigrationID, e.Direction, e.Checksum)
	if err != nil {
		return types.Err("history event", fmt.Sprintf("migration ID '%s'", e.MigrationID), err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed getting history event ID: %w", err)
	}
	e.ID = uint64(id) //nolint:gosec // AUTOINCREMENT IDs are positive.
	e.CreatedAt = timeNow

	return nil
}

// History returns history events from the database, most recent first. An
// optional filter can be passed to limit the results.
func History(
	ctx context.Context, d types.Querier, filter *types.Filter,
) (events []*HistoryEvent, rerr error) {
	query := `SELECT
			h.id, h.created_at, h.run_id, h.migration_id, h.direction, h.checksum
		FROM ledger_history h %s
		ORDER BY h.id DESC`

	query, args := filter.Apply(query)
	rows, err := d.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.LoadError{ModelName: "history", Err: err}
	}
	defer func() {
		if err = rows.Close(); err != nil {
			rerr = fmt.Errorf("failed closing history rows: %w", err)
		}
	}()

	events = make([]*HistoryEvent, 0)
	for rows.Next() {
		var e HistoryEvent
		err = rows.Scan(&e.ID, &e.CreatedAt, &e.RunID, &e.MigrationID, &e.Direction, &e.Checksum)
		if err != nil {
			return nil, types.ScanError{ModelName: "history event", Err: err}
		}
		events = append(events, &e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating over history rows: %w", err)
	}

	return events, nil
}
