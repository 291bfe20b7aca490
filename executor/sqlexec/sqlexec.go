// Package sqlexec implements an executor that applies operations by running
// DDL statements directly against the target database.
package sqlexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	//nolint:revive,nolintlint // Idiomatic way of loading DB libraries.
	_ "github.com/glebarez/go-sqlite"
	"github.com/go-sql-driver/mysql"
	//nolint:revive,nolintlint // Idiomatic way of loading DB libraries.
	_ "github.com/jackc/pgx/v5/stdlib"

	aerrors "go.hackfix.me/ledger/app/errors"
	"go.hackfix.me/ledger/ddl"
	"go.hackfix.me/ledger/ledger"
)

// MySQL server error numbers that usually mean the schema has drifted from
// the applied state.
const (
	mysqlBadFieldError    = 1054
	mysqlDupFieldName     = 1060
	mysqlCantDropFieldKey = 1091
)

// SQL applies operations by executing DDL statements.
type SQL struct {
	db      *sql.DB
	dialect ddl.Dialect
	timeout time.Duration
	ownDB   bool
	logger  *slog.Logger
}

var _ ledger.Executor = (*SQL)(nil)

// New returns a new SQL executor that runs statements in the given dialect
// against db.
func New(db *sql.DB, dialect ddl.Dialect, opts ...Option) (*SQL, error) {
	if db == nil {
		return nil, errors.New("database connection is required")
	}
	dialect, err := ddl.DialectFromString(string(dialect))
	if err != nil {
		return nil, err
	}

	s := &SQL{db: db, dialect: dialect}

	opts = append(DefaultOptions(), opts...)
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Open connects to the target database and returns a new SQL executor for it.
// The connection is closed by Close.
func Open(ctx context.Context, target *Target, opts ...Option) (*SQL, error) {
	db, err := sql.Open(target.DriverName, target.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed opening target database: %w", err)
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, aerrors.NewWithCause("failed connecting to target database", err,
			"target", target.String())
	}

	s, err := New(db, target.Dialect, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownDB = true

	return s, nil
}

// Dialect returns the SQL dialect statements are rendered in.
func (s *SQL) Dialect() ddl.Dialect {
	return s.dialect
}

// Close closes the database connection if it was opened by the executor.
func (s *SQL) Close() error {
	if !s.ownDB {
		return nil
	}
	return s.db.Close()
}

// ExecuteForward implements the ledger.Executor interface.
func (s *SQL) ExecuteForward(ctx context.Context, op ledger.Operation) error {
	return s.execute(ctx, ledger.Up, op)
}

// ExecuteBackward implements the ledger.Executor interface.
func (s *SQL) ExecuteBackward(ctx context.Context, op ledger.Operation) error {
	return s.execute(ctx, ledger.Down, op)
}

func (s *SQL) execute(ctx context.Context, dir ledger.Direction, op ledger.Operation) error {
	stmt, err := ddl.Render(s.dialect, op)
	if err != nil {
		return err
	}
	if stmt.SQL == "" {
		return nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	logger := s.logger.With("direction", dir, "sql", stmt.SQL)
	logger.Debug("executing statement")

	start := time.Now()
	if _, err = s.db.ExecContext(ctx, stmt.SQL); err != nil {
		return annotate(err, op)
	}

	logger.Debug("executed statement", "duration", time.Since(start))

	return nil
}

func annotate(err error, op ledger.Operation) error {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return err
	}

	var hint string
	switch myErr.Number {
	case mysqlBadFieldError, mysqlCantDropFieldKey:
		hint = fmt.Sprintf("column '%s' is missing from table '%s'; "+
			"the schema may have been changed outside of the ledger", op.Column, op.Table)
	case mysqlDupFieldName:
		hint = fmt.Sprintf("column '%s' already exists in table '%s'; "+
			"the schema may have been changed outside of the ledger", op.Column, op.Table)
	default:
		return err
	}

	return aerrors.With(err, "hint", hint)
}
