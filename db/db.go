// Package db implements the persistent store of migration state, backed by
// SQLite.
package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	//nolint:revive,nolintlint // Idiomatic way of loading DB libraries.
	_ "github.com/glebarez/go-sqlite"

	"go.hackfix.me/ledger/db/queries"
	"go.hackfix.me/ledger/db/types"
)

//go:embed schema.sql
var schema string

// DB wraps sql.DB with additional context and initialization functionality.
type DB struct {
	*sql.DB
	ctx     context.Context
	timeNow func() time.Time
	path    string
}

var _ types.Querier = (*DB)(nil)

// Open creates and configures a new SQLite database connection.
func Open(ctx context.Context, path string, timeNow func() time.Time) (*DB, error) {
	var d *DB
	if strings.Contains(path, "mode=memory") || strings.Contains(path, ":memory:") {
		defer func() {
			if d != nil {
				// See https://github.com/mattn/go-sqlite3#faq
				d.SetMaxIdleConns(10)
				d.SetConnMaxLifetime(time.Duration(math.Inf(1)))
			}
		}()
	}

	sqliteDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed opening SQLite database: %w", err)
	}

	d = &DB{DB: sqliteDB, ctx: ctx, path: path, timeNow: timeNow}

	// Concurrent ledger runs against the same state file should wait for each
	// other instead of failing immediately.
	if _, err = d.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = sqliteDB.Close()
		return nil, fmt.Errorf("failed setting busy timeout: %w", err)
	}

	return d, nil
}

// Init creates the database schema and metadata.
func (d *DB) Init(appVersion string, logger *slog.Logger) error {
	dblogger := logger.With("path", d.path)
	dblogger.Debug("initializing database")

	ctx := d.NewContext()
	version, err := queries.Version(ctx, d)
	if err != nil && !queries.IsMissingSchema(err) {
		return fmt.Errorf("failed reading database version: %w", err)
	}
	if version.Valid {
		return fmt.Errorf("database is already initialized with version %s", version.V)
	}

	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed starting transaction: %w", err)
	}

	if _, err = tx.ExecContext(ctx, schema); err != nil {
		return errors.Join(fmt.Errorf("failed creating database schema: %w", err), tx.Rollback())
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO _meta (version, created_at) VALUES (?, ?)`,
		appVersion, d.TimeNow().UTC())
	if err != nil {
		return errors.Join(fmt.Errorf("failed inserting into _meta: %w", err), tx.Rollback())
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed committing transaction: %w", err)
	}

	dblogger.Info("database initialized")

	return nil
}

// NewContext returns the main database context.
func (d *DB) NewContext() context.Context {
	return d.ctx
}

// Path returns the path or DSN the database was opened with.
func (d *DB) Path() string {
	return d.path
}

// TimeNow returns the current system time.
func (d *DB) TimeNow() time.Time {
	return d.timeNow()
}
