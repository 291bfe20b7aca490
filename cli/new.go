package cli

import (
	"fmt"
	"strings"

	actx "go.hackfix.me/ledger/app/context"
	aerrors "go.hackfix.me/ledger/app/errors"
	"go.hackfix.me/ledger/definition"
	"go.hackfix.me/ledger/ledger"
)

// The NewMigration command writes a new migration definition file. The backward
// operation is derived from the forward one where possible.
type NewMigration struct {
	Name     string        `arg:"" help:"Short description of the migration, e.g. 'add city to users'."`
	Kind     ledger.OpKind `required:"" type:"opkind" help:"Operation kind (add_column, drop_column, rename_column, change_column, create_table, drop_table)."`
	Table    string        `required:"" help:"Table name."`
	Column   string        `help:"Column name."`
	NewName  string        `help:"New column name, for rename_column."`
	Type     string        `help:"SQL column type, e.g. 'VARCHAR(255)'."`
	Nullable bool          `help:"Whether the column is nullable."`
	After    string        `help:"Place the column after this one, where supported."`
	Columns  []string      `name:"col" sep:"none" placeholder:"NAME:TYPE[:null][:primary]" help:"Column definition, for create_table. Can be repeated."`
}

// Run the new command.
func (c *NewMigration) Run(appCtx *actx.Context) error {
	op := ledger.Operation{
		Kind:     c.Kind,
		Table:    c.Table,
		Column:   c.Column,
		NewName:  c.NewName,
		Type:     c.Type,
		Nullable: c.Nullable,
		After:    c.After,
	}
	for _, spec := range c.Columns {
		col, err := parseColumn(spec)
		if err != nil {
			return err
		}
		op.Columns = append(op.Columns, col)
	}

	dir := appCtx.Config.Migrations.Dir.V
	rec, err := definition.Scaffold(appCtx.FS, dir, appCtx.TimeNow(), c.Name, op)
	if err != nil {
		return aerrors.NewWithCause("failed creating migration", err, "dir", dir)
	}

	if !rec.IsReversible() {
		appCtx.Logger.Warn("backward operation must be declared manually",
			"migration_id", rec.ID, "file", rec.Source)
	}

	_, err = fmt.Fprintf(appCtx.Stdout, "Created %s\n", rec.Source)

	return err
}

// parseColumn parses a column definition in the form NAME:TYPE[:null][:primary].
func parseColumn(spec string) (ledger.Column, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return ledger.Column{}, fmt.Errorf("invalid column definition '%s'", spec)
	}

	col := ledger.Column{Name: parts[0], Type: parts[1]}
	for _, flag := range parts[2:] {
		switch strings.ToLower(flag) {
		case "null":
			col.Nullable = true
		case "primary":
			col.Primary = true
		default:
			return ledger.Column{}, fmt.Errorf("invalid column flag '%s' in '%s'", flag, spec)
		}
	}

	return col, nil
}
