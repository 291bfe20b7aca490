package mock

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.hackfix.me/ledger/ledger"
)

func newTestMock(t *testing.T) *Mock {
	t.Helper()
	m := New(slog.New(slog.DiscardHandler))
	m.CreateTable("users", "id", "name", "email", "password")
	return m
}

func TestMockExecute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		op      ledger.Operation
		expCols []string
		expErr  string
	}{
		{
			name:    "ok/add_column",
			op:      ledger.Operation{Kind: ledger.OpAddColumn, Table: "users", Column: "city", Type: "VARCHAR(64)"},
			expCols: []string{"id", "name", "email", "password", "city"},
		},
		{
			name: "ok/add_column_after",
			op: ledger.Operation{
				Kind: ledger.OpAddColumn, Table: "users", Column: "username",
				Type: "VARCHAR(32)", After: "email",
			},
			expCols: []string{"id", "name", "email", "username", "password"},
		},
		{
			name:    "ok/drop_column",
			op:      ledger.Operation{Kind: ledger.OpDropColumn, Table: "users", Column: "password"},
			expCols: []string{"id", "name", "email"},
		},
		{
			name:    "ok/rename_column",
			op:      ledger.Operation{Kind: ledger.OpRenameColumn, Table: "users", Column: "name", NewName: "full_name"},
			expCols: []string{"id", "full_name", "email", "password"},
		},
		{
			name:    "ok/change_column",
			op:      ledger.Operation{Kind: ledger.OpChangeColumn, Table: "users", Column: "email", Type: "TEXT"},
			expCols: []string{"id", "name", "email", "password"},
		},
		{
			name:    "ok/noop",
			op:      ledger.Operation{Kind: ledger.OpNone},
			expCols: []string{"id", "name", "email", "password"},
		},
		{
			name:   "err/duplicate_column",
			op:     ledger.Operation{Kind: ledger.OpAddColumn, Table: "users", Column: "email", Type: "TEXT"},
			expErr: "duplicate column name 'email'",
		},
		{
			name: "err/unknown_after",
			op: ledger.Operation{
				Kind: ledger.OpAddColumn, Table: "users", Column: "city",
				Type: "TEXT", After: "phone",
			},
			expErr: "unknown column 'phone' in 'users'",
		},
		{
			name:   "err/drop_missing",
			op:     ledger.Operation{Kind: ledger.OpDropColumn, Table: "users", Column: "city"},
			expErr: "can't drop 'city'; check that column exists",
		},
		{
			name:   "err/rename_to_existing",
			op:     ledger.Operation{Kind: ledger.OpRenameColumn, Table: "users", Column: "name", NewName: "email"},
			expErr: "duplicate column name 'email'",
		},
		{
			name:   "err/unknown_table",
			op:     ledger.Operation{Kind: ledger.OpDropColumn, Table: "posts", Column: "title"},
			expErr: "table 'posts' doesn't exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := newTestMock(t)
			err := m.ExecuteForward(t.Context(), tt.op)
			if tt.expErr != "" {
				assert.EqualError(t, err, tt.expErr)
				assert.Equal(t, []string{"id", "name", "email", "password"}, m.Columns("users"))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expCols, m.Columns("users"))
			}
			assert.Equal(t, []Call{{Direction: ledger.Up, Op: tt.op}}, m.Calls())
		})
	}
}

func TestMockTables(t *testing.T) {
	t.Parallel()

	m := newTestMock(t)
	ctx := t.Context()
	create := ledger.Operation{
		Kind: ledger.OpCreateTable, Table: "gh_ost_migrations",
		Columns: []ledger.Column{
			{Name: "id", Type: "BIGINT", Primary: true},
			{Name: "name", Type: "VARCHAR(255)", Nullable: true},
		},
	}

	require.NoError(t, m.ExecuteForward(ctx, create))
	assert.Equal(t, []string{"gh_ost_migrations", "users"}, m.Tables())
	col, ok := m.Column("gh_ost_migrations", "name")
	require.True(t, ok)
	assert.Equal(t, Column{Name: "name", Type: "VARCHAR(255)", Nullable: true}, col)

	err := m.ExecuteForward(ctx, create)
	assert.EqualError(t, err, "table 'gh_ost_migrations' already exists")

	drop := ledger.Operation{Kind: ledger.OpDropTable, Table: "gh_ost_migrations"}
	require.NoError(t, m.ExecuteBackward(ctx, drop))
	assert.Equal(t, []string{"users"}, m.Tables())
	assert.Nil(t, m.Columns("gh_ost_migrations"))
}

func TestMockFailures(t *testing.T) {
	t.Parallel()

	m := newTestMock(t)
	add := ledger.Operation{Kind: ledger.OpAddColumn, Table: "users", Column: "city", Type: "TEXT"}
	drop := ledger.Operation{Kind: ledger.OpDropColumn, Table: "users", Column: "city"}

	errBoom := errors.New("boom")
	m.SetFailError(errBoom, func(dir ledger.Direction, _ ledger.Operation) bool {
		return dir == ledger.Down
	})

	require.NoError(t, m.ExecuteForward(t.Context(), add))
	err := m.ExecuteBackward(t.Context(), drop)
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, m.Columns("users"), "city")

	m.SetFailError(nil, nil)
	require.NoError(t, m.ExecuteBackward(t.Context(), drop))
	assert.NotContains(t, m.Columns("users"), "city")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err = m.ExecuteForward(ctx, add)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, m.Calls(), 4)
}
