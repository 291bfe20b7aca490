package types

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// Querier exposes only methods for running SQL queries, and some helper functions.
type Querier interface {
	NewContext() context.Context
	TimeNow() time.Time
	ExecContext(ctx context.Context, sql string, arguments ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Filter is used to dynamically modify queries.
type Filter struct {
	Where string
	Args  []any
	// Limit is the maximum amount of rows to return. 0 means no limit.
	Limit int
}

// NewFilter creates a new query filter.
func NewFilter(where string, args []any) *Filter {
	return &Filter{Where: where, Args: args}
}

// Apply inserts the WHERE clause of the filter into query at the %s verb,
// and appends the LIMIT clause. It returns the resulting query and its
// arguments. A nil filter matches all rows.
func (f *Filter) Apply(query string) (string, []any) {
	where := "1=1"
	args := []any{}
	if f != nil && f.Where != "" {
		where = f.Where
		args = append(args, f.Args...)
	}

	query = strings.Replace(query, "%s", "WHERE "+where, 1)
	if f != nil && f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	return query, args
}
