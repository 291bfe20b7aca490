package queries

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.hackfix.me/ledger/db/types"
)

// Version returns the application version the database was initialized with.
// If the returned sql.Null value is invalid, it indicates that the database
// hasn't been initialized.
func Version(ctx context.Context, d types.Querier) (sql.Null[string], error) {
	var version sql.Null[string]
	err := d.QueryRowContext(ctx, `SELECT version FROM _meta`).
		Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return version, err
	}

	return version, nil
}

// IsMissingSchema returns true if err was caused by querying a database that
// hasn't been initialized.
func IsMissingSchema(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// AppliedCount returns the number of migrations currently recorded as applied.
func AppliedCount(ctx context.Context, d types.Querier) (int, error) {
	var count int
	err := d.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_state WHERE applied_at IS NOT NULL`).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}
