// Package ddl renders ledger operations to SQL statements.
package ddl

import (
	"errors"
	"fmt"
	"strings"

	"go.hackfix.me/ledger/ledger"
)

// ErrUnsupported is returned when a dialect can't express an operation.
var ErrUnsupported = errors.New("operation not supported by dialect")

// Dialect is a SQL dialect.
type Dialect string

// All supported dialects.
const (
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// DialectFromString returns a valid Dialect for the given string, or an error
// if the value is invalid.
func DialectFromString(val string) (Dialect, error) {
	switch strings.ToLower(val) {
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	}
	return "", fmt.Errorf("unsupported SQL dialect '%s'", val)
}

// Statement is a rendered operation.
type Statement struct {
	Table string
	// SQL is the complete statement. It's empty for no-op operations.
	SQL string
	// Alter is the part of the statement following "ALTER TABLE <table>", as
	// accepted by online schema change tools. It's empty for operations that
	// don't alter an existing table.
	Alter string
}

// Render renders op as a statement in the given dialect.
func Render(d Dialect, op ledger.Operation) (Statement, error) {
	d, err := DialectFromString(string(d))
	if err != nil {
		return Statement{}, err
	}
	if err = op.Validate(); err != nil {
		return Statement{}, err
	}
	if op.IsNoop() {
		return Statement{}, nil
	}

	stmt := Statement{Table: op.Table}
	switch op.Kind {
	case ledger.OpCreateTable:
		stmt.SQL = createTable(d, op)
		return stmt, nil
	case ledger.OpDropTable:
		stmt.SQL = fmt.Sprintf("DROP TABLE IF EXISTS %s", quote(d, op.Table))
		return stmt, nil
	}

	var alter string
	switch d {
	case MySQL:
		alter = mysqlAlter(op)
	case SQLite:
		alter, err = sqliteAlter(op)
	case Postgres:
		alter = postgresAlter(op)
	}
	if err != nil {
		return Statement{}, err
	}

	stmt.Alter = alter
	stmt.SQL = fmt.Sprintf("ALTER TABLE %s %s", quote(d, op.Table), alter)

	return stmt, nil
}

func mysqlAlter(op ledger.Operation) string {
	col := quote(MySQL, op.Column)
	switch op.Kind {
	case ledger.OpAddColumn:
		s := fmt.Sprintf("ADD COLUMN %s %s %s", col, op.Type, nullability(MySQL, op.Nullable))
		if op.After != "" {
			s += " AFTER " + quote(MySQL, op.After)
		}
		return s
	case ledger.OpDropColumn:
		return "DROP COLUMN " + col
	case ledger.OpRenameColumn:
		// CHANGE COLUMN requires the full definition, but works on servers
		// that don't support RENAME COLUMN.
		if op.Type != "" {
			return fmt.Sprintf("CHANGE COLUMN %s %s %s %s",
				col, quote(MySQL, op.NewName), op.Type, nullability(MySQL, op.Nullable))
		}
		return fmt.Sprintf("RENAME COLUMN %s TO %s", col, quote(MySQL, op.NewName))
	case ledger.OpChangeColumn:
		return fmt.Sprintf("CHANGE COLUMN %s %s %s %s", col, col, op.Type, nullability(MySQL, op.Nullable))
	}
	return ""
}

func sqliteAlter(op ledger.Operation) (string, error) {
	col := quote(SQLite, op.Column)
	switch op.Kind {
	case ledger.OpAddColumn:
		// SQLite always appends columns, so the position hint is ignored.
		return strings.TrimSpace(fmt.Sprintf("ADD COLUMN %s %s %s",
			col, op.Type, nullability(SQLite, op.Nullable))), nil
	case ledger.OpDropColumn:
		return "DROP COLUMN " + col, nil
	case ledger.OpRenameColumn:
		return fmt.Sprintf("RENAME COLUMN %s TO %s", col, quote(SQLite, op.NewName)), nil
	case ledger.OpChangeColumn:
		return "", fmt.Errorf("%s on %s: %w", op.Kind, SQLite, ErrUnsupported)
	}
	return "", nil
}

func postgresAlter(op ledger.Operation) string {
	col := quote(Postgres, op.Column)
	switch op.Kind {
	case ledger.OpAddColumn:
		return strings.TrimSpace(fmt.Sprintf("ADD COLUMN %s %s %s",
			col, op.Type, nullability(Postgres, op.Nullable)))
	case ledger.OpDropColumn:
		return "DROP COLUMN " + col
	case ledger.OpRenameColumn:
		return fmt.Sprintf("RENAME COLUMN %s TO %s", col, quote(Postgres, op.NewName))
	case ledger.OpChangeColumn:
		null := "SET NOT NULL"
		if op.Nullable {
			null = "DROP NOT NULL"
		}
		return fmt.Sprintf("ALTER COLUMN %s TYPE %s, ALTER COLUMN %s %s", col, op.Type, col, null)
	}
	return ""
}

func createTable(d Dialect, op ledger.Operation) string {
	var (
		defs []string
		pk   []string
	)
	for _, c := range op.Columns {
		def := fmt.Sprintf("%s %s", quote(d, c.Name), c.Type)
		if null := nullability(d, c.Nullable); null != "" {
			def += " " + null
		}
		defs = append(defs, def)
		if c.Primary {
			pk = append(pk, quote(d, c.Name))
		}
	}
	if len(pk) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pk, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE %s (%s)", quote(d, op.Table), strings.Join(defs, ", "))
}

// nullability returns the column nullability clause. MySQL gets an explicit
// NULL, matching how its own tooling prints column definitions.
func nullability(d Dialect, nullable bool) string {
	if !nullable {
		return "NOT NULL"
	}
	if d == MySQL {
		return "NULL"
	}
	return ""
}

func quote(d Dialect, ident string) string {
	if d == MySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
