package app

import (
	"errors"
	"testing"
	"time"

	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/assert"

	"go.hackfix.me/ledger/ledger"
)

const (
	migUsername = "2024_12_30_150942_add_username"
	migCity     = "2024_12_30_201907_add_city"
	migPassword = "2024_12_31_112317_drop_password"
)

var migrations = map[string]string{
	migUsername: `
forward:
  kind: add_column
  table: users
  column: username
  type: VARCHAR(32)
  nullable: true
backward:
  kind: drop_column
  table: users
  column: username
`,
	migCity: `
forward:
  kind: add_column
  table: users
  column: city
  type: VARCHAR(64)
  nullable: true
backward:
  kind: drop_column
  table: users
  column: city
`,
	migPassword: `
forward:
  kind: drop_column
  table: users
  column: password
`,
}

func TestAppIntegration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		args      []string
		expStdout string
		expRows   [][]string
		expErr    string
		expCols   []string
	}{
		{
			name:   "err/not_initialized",
			args:   []string{"status"},
			expErr: "the ledger state database isn't initialized",
		},
		{
			name: "ok/init",
			args: []string{"init"},
		},
		{
			name:   "err/already_initialized",
			args:   []string{"init"},
			expErr: "the ledger is already initialized with version",
		},
		{
			name: "ok/status_pending",
			args: []string{"status"},
			expRows: [][]string{
				{"ID", "STATUS", "APPLIED", "OPERATION"},
				{migUsername, "pending", "-", "add column users.username VARCHAR(32)"},
				{migCity, "pending", "-", "add column users.city VARCHAR(64)"},
				{migPassword, "pending*", "-", "drop column users.password"},
			},
		},
		{
			name: "ok/plan_mysql",
			args: []string{"plan"},
			expStdout: "" +
				"-- " + migUsername + "\n" +
				"-- gh-ost --table=users --alter=\"ADD COLUMN `username` VARCHAR(32) NULL\"\n" +
				"ALTER TABLE `users` ADD COLUMN `username` VARCHAR(32) NULL;\n" +
				"-- " + migCity + "\n" +
				"-- gh-ost --table=users --alter=\"ADD COLUMN `city` VARCHAR(64) NULL\"\n" +
				"ALTER TABLE `users` ADD COLUMN `city` VARCHAR(64) NULL;\n" +
				"-- " + migPassword + "\n" +
				"-- gh-ost --table=users --alter=\"DROP COLUMN `password`\"\n" +
				"ALTER TABLE `users` DROP COLUMN `password`;\n",
		},
		{
			name: "ok/plan_postgres_to",
			args: []string{"plan", "--dialect", "postgres", "--to", migUsername},
			expStdout: "" +
				"-- " + migUsername + "\n" +
				`ALTER TABLE "users" ADD COLUMN "username" VARCHAR(32);` + "\n",
		},
		{
			name:   "err/plan_unknown_id",
			args:   []string{"plan", "--to", "2024_12_31_000000_nope"},
			expErr: "unknown migration ID '2024_12_31_000000_nope'",
		},
		{
			name:      "ok/migrate_to",
			args:      []string{"migrate", "--to", migCity},
			expStdout: "Applied 2 migrations.\n",
			expCols:   []string{"id", "name", "email", "password", "username", "city"},
		},
		{
			name:      "ok/migrate_rest",
			args:      []string{"migrate"},
			expStdout: "Applied 1 migration.\n",
			expCols:   []string{"id", "name", "email", "username", "city"},
		},
		{
			name:      "ok/migrate_nothing",
			args:      []string{"migrate"},
			expStdout: "Nothing to apply.\n",
			expCols:   []string{"id", "name", "email", "username", "city"},
		},
		{
			name: "ok/status_applied",
			args: []string{"status"},
			expRows: [][]string{
				{"ID", "STATUS", "APPLIED", "OPERATION"},
				{migUsername, "applied", "just now", "add column users.username VARCHAR(32)"},
				{migCity, "applied", "just now", "add column users.city VARCHAR(64)"},
				{migPassword, "applied*", "just now", "drop column users.password"},
			},
		},
		{
			name: "ok/plan_rollback",
			args: []string{"plan", "--rollback", "2", "--dialect", "sqlite"},
			expStdout: "" +
				"-- " + migPassword + "\n" +
				"-- no-op\n" +
				"-- " + migCity + "\n" +
				`ALTER TABLE "users" DROP COLUMN "city";` + "\n",
		},
		{
			name: "ok/check",
			args: []string{"check"},
			expRows: [][]string{
				{"ID", "LEVEL", "PROBLEM"},
				{migPassword, "warning", "irreversible: backward operation is a no-op"},
				{"Checked 3 migrations, 1 warning."},
			},
		},
		{
			name: "err/check_strict",
			args: []string{"check", "--strict"},
			expRows: [][]string{
				{"ID", "LEVEL", "PROBLEM"},
				{migPassword, "warning", "irreversible: backward operation is a no-op"},
			},
			expErr: "found 1 problem",
		},
		{
			// The irreversible migration is marked as pending without
			// changing the schema.
			name:      "ok/rollback_irreversible",
			args:      []string{"rollback"},
			expStdout: "Rolled back 1 migration.\n",
			expCols:   []string{"id", "name", "email", "username", "city"},
		},
		{
			name:      "ok/rollback_to",
			args:      []string{"rollback", "--to", migUsername},
			expStdout: "Rolled back 1 migration.\n",
			expCols:   []string{"id", "name", "email", "username"},
		},
		{
			name: "ok/status_partial",
			args: []string{"status", "--pending"},
			expRows: [][]string{
				{"ID", "STATUS", "APPLIED", "OPERATION"},
				{migCity, "pending", "-", "add column users.city VARCHAR(64)"},
				{migPassword, "pending*", "-", "drop column users.password"},
			},
		},
		{
			name:   "err/rollback_unknown_id",
			args:   []string{"rollback", "--to", "2024_12_31_000000_nope"},
			expErr: "failed rolling back migrations: unknown migration ID '2024_12_31_000000_nope'",
		},
		{
			name:    "err/rollback_count_and_to",
			args:    []string{"rollback", "2", "--to", migUsername},
			expErr:  "the migration count and --to can't be combined",
			expCols: []string{"id", "name", "email", "username"},
		},
		{
			name:      "ok/new",
			args:      []string{"new", "Add country", "--kind", "add-column", "--table", "users", "--column", "country", "--type", "CHAR(2)"},
			expStdout: "Created /migrations/2025_01_01_000000_add_country.yaml\n",
		},
		{
			name:   "err/new_invalid_kind",
			args:   []string{"new", "Add country", "--kind", "add_index", "--table", "users"},
			expErr: "unsupported operation kind 'add_index'",
		},
		{
			name:   "err/new_missing_type",
			args:   []string{"new", "Add zip", "--kind", "add_column", "--table", "users", "--column", "zip"},
			expErr: "failed creating migration: add_column: type is required",
		},
		{
			name:      "ok/migrate_to_again",
			args:      []string{"migrate", "--to", migCity},
			expStdout: "Applied 1 migration.\n",
			expCols:   []string{"id", "name", "email", "username", "city"},
		},
		{
			// The column was dropped by the irreversible migration, so it
			// can't be dropped again.
			name: "err/migrate_halts",
			args: []string{"migrate"},
			expErr: "failed applying migrations: failed applying migration '" + migPassword +
				"': can't drop 'password'; check that column exists",
			expCols: []string{"id", "name", "email", "username", "city"},
		},
		{
			name: "ok/status_halted",
			args: []string{"status"},
			expRows: [][]string{
				{"ID", "STATUS", "APPLIED", "OPERATION"},
				{migUsername, "applied", "just now", "add column users.username VARCHAR(32)"},
				{migCity, "applied", "just now", "add column users.city VARCHAR(64)"},
				{migPassword, "pending*", "-", "drop column users.password"},
				{"2025_01_01_000000_add_country", "pending", "-", "add column users.country CHAR(2)"},
			},
		},
	}

	tctx, cancel, h := newTestContext(t, 5*time.Second)
	defer cancel()

	app, err := newTestApp(tctx)
	h(assert.NoError(t, err))

	for id, content := range migrations {
		h(assert.NoError(t, app.writeMigration(id, content)))
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err = app.Run(tt.args...)
			if tt.expErr != "" {
				h(assert.ErrorContains(t, errors.New(errMsg(err)), tt.expErr))
			} else {
				h(assert.NoError(t, err))
			}

			if tt.expRows != nil {
				h(assert.Equal(t, tt.expRows, tableRows(app.stdout.String())))
			} else {
				h(assert.Equal(t, tt.expStdout, app.stdout.String()))
			}

			if tt.expCols != nil {
				h(assert.Equal(t, tt.expCols, app.exec.Columns("users")))
			}
		})
	}
}

func TestAppMigrateFailure(t *testing.T) {
	t.Parallel()

	tctx, cancel, h := newTestContext(t, 5*time.Second)
	defer cancel()

	app, err := newTestApp(tctx)
	h(assert.NoError(t, err))

	h(assert.NoError(t, app.writeMigration(migUsername, migrations[migUsername])))
	h(assert.NoError(t, app.writeMigration("2024_12_30_160842_add_username_again", migrations[migUsername])))
	h(assert.NoError(t, app.writeMigration(migCity, migrations[migCity])))
	h(assert.NoError(t, app.Run("init")))

	err = app.Run("migrate")
	var applyErr ledger.ApplyError
	h(assert.ErrorAs(t, err, &applyErr))
	h(assert.Equal(t, "2024_12_30_160842_add_username_again", applyErr.ID))
	h(assert.EqualError(t, applyErr.Err, "duplicate column name 'username'"))
	h(assert.Equal(t, "failed applying migrations", err.Error()))
	h(assert.Equal(t, []string{"id", "name", "email", "password", "username"}, app.exec.Columns("users")))

	// Only the migration before the failed one was applied.
	err = app.Run("status")
	h(assert.NoError(t, err))
	h(assert.Equal(t, [][]string{
		{"ID", "STATUS", "APPLIED", "OPERATION"},
		{migUsername, "applied", "just now", "add column users.username VARCHAR(32)"},
		{"2024_12_30_160842_add_username_again", "pending", "-", "add column users.username VARCHAR(32)"},
		{migCity, "pending", "-", "add column users.city VARCHAR(64)"},
	}, tableRows(app.stdout.String())))

	err = app.Run("history")
	h(assert.NoError(t, err))
	rows := tableRows(app.stdout.String())
	h(assert.Len(t, rows, 2))
	h(assert.Equal(t, []string{"TIME", "RUN", "MIGRATION", "DIRECTION"}, rows[0]))
	h(assert.Equal(t, "2025-01-01 00:00:00", rows[1][0]))
	h(assert.Equal(t, migUsername, rows[1][2]))
	h(assert.Equal(t, "up", rows[1][3]))
}

func TestAppModifiedAndMissing(t *testing.T) {
	t.Parallel()

	tctx, cancel, h := newTestContext(t, 5*time.Second)
	defer cancel()

	app, err := newTestApp(tctx)
	h(assert.NoError(t, err))

	h(assert.NoError(t, app.writeMigration(migUsername, migrations[migUsername])))
	h(assert.NoError(t, app.writeMigration(migCity, migrations[migCity])))
	h(assert.NoError(t, app.Run("init")))
	h(assert.NoError(t, app.Run("migrate")))

	// Change an applied definition, and remove another one.
	h(assert.NoError(t, app.writeMigration(migUsername, `
forward:
  kind: add_column
  table: users
  column: username
  type: VARCHAR(64)
  nullable: true
backward:
  kind: drop_column
  table: users
  column: username
`)))
	h(assert.NoError(t, app.fs.Remove("/migrations/"+migCity+".yaml")))

	err = app.Run("status")
	h(assert.NoError(t, err))
	h(assert.Equal(t, [][]string{
		{"ID", "STATUS", "APPLIED", "OPERATION"},
		{migUsername, "modified", "just now", "add column users.username VARCHAR(64)"},
		{migCity, "missing", "-", "-"},
	}, tableRows(app.stdout.String())))

	err = app.Run("check")
	h(assert.NoError(t, err))
	h(assert.Equal(t, [][]string{
		{"ID", "LEVEL", "PROBLEM"},
		{migUsername, "warning", "definition changed after it was applied"},
		{"Checked 1 migration, 1 warning."},
	}, tableRows(app.stdout.String())))

	exists, err := vfs.Exists(app.fs, "/data")
	h(assert.NoError(t, err))
	h(assert.False(t, exists))
}
