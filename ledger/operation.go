package ledger

import (
	"fmt"
)

// OpKind is the kind of schema change an Operation performs.
type OpKind string

// All supported operation kinds.
const (
	OpNone         OpKind = "none"
	OpAddColumn    OpKind = "add_column"
	OpDropColumn   OpKind = "drop_column"
	OpRenameColumn OpKind = "rename_column"
	OpChangeColumn OpKind = "change_column"
	OpCreateTable  OpKind = "create_table"
	OpDropTable    OpKind = "drop_table"
)

// OpKindFromString returns a valid OpKind for the given string, or an error if
// the value is invalid. An empty string is treated as OpNone.
func OpKindFromString(val string) (OpKind, error) {
	switch OpKind(val) {
	case "", OpNone:
		return OpNone, nil
	case OpAddColumn, OpDropColumn, OpRenameColumn, OpChangeColumn,
		OpCreateTable, OpDropTable:
		return OpKind(val), nil
	}
	return "", fmt.Errorf("unsupported operation kind '%s'", val)
}

// IsAlter returns true if the kind alters an existing table, as opposed to
// creating or removing one.
func (k OpKind) IsAlter() bool {
	switch k {
	case OpAddColumn, OpDropColumn, OpRenameColumn, OpChangeColumn:
		return true
	}
	return false
}

// Column is a column definition used when creating a table.
type Column struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable,omitempty"`
	Primary  bool   `yaml:"primary,omitempty"`
}

// Operation is a structured description of a single schema change. It's not
// raw SQL, so that each executor can render it the way its backend expects.
type Operation struct {
	Kind   OpKind `yaml:"kind"`
	Table  string `yaml:"table,omitempty"`
	Column string `yaml:"column,omitempty"`
	// NewName is the target name of a renamed column.
	NewName string `yaml:"new_name,omitempty"`
	// Type is the SQL column type, e.g. VARCHAR(255) or DATE. It's required
	// when adding or changing a column, and optional when renaming one.
	Type     string `yaml:"type,omitempty"`
	Nullable bool   `yaml:"nullable,omitempty"`
	// After is a positional hint. Whether the referenced column exists is
	// checked by the executor, not the ledger.
	After   string   `yaml:"after,omitempty"`
	Columns []Column `yaml:"columns,omitempty"`
}

// IsNoop returns true if the operation doesn't change the schema.
func (op Operation) IsNoop() bool {
	return op.Kind == "" || op.Kind == OpNone
}

// Validate checks that all fields required by the operation kind are set.
func (op Operation) Validate() error {
	if _, err := OpKindFromString(string(op.Kind)); err != nil {
		return err
	}
	if op.IsNoop() {
		return nil
	}
	if op.Table == "" {
		return fmt.Errorf("%s: table is required", op.Kind)
	}

	switch op.Kind {
	case OpAddColumn, OpChangeColumn:
		if op.Column == "" {
			return fmt.Errorf("%s: column is required", op.Kind)
		}
		if op.Type == "" {
			return fmt.Errorf("%s: type is required", op.Kind)
		}
	case OpDropColumn:
		if op.Column == "" {
			return fmt.Errorf("%s: column is required", op.Kind)
		}
	case OpRenameColumn:
		if op.Column == "" || op.NewName == "" {
			return fmt.Errorf("%s: column and new_name are required", op.Kind)
		}
		if op.Column == op.NewName {
			return fmt.Errorf("%s: new_name must differ from column", op.Kind)
		}
	case OpCreateTable:
		if len(op.Columns) == 0 {
			return fmt.Errorf("%s: at least one column is required", op.Kind)
		}
		seen := make(map[string]struct{}, len(op.Columns))
		for _, col := range op.Columns {
			if col.Name == "" || col.Type == "" {
				return fmt.Errorf("%s: columns require a name and type", op.Kind)
			}
			if _, ok := seen[col.Name]; ok {
				return fmt.Errorf("%s: duplicate column '%s'", op.Kind, col.Name)
			}
			seen[col.Name] = struct{}{}
		}
	case OpDropTable:
	}

	return nil
}

// String returns a short human readable summary of the operation.
func (op Operation) String() string {
	switch op.Kind {
	case "", OpNone:
		return "no-op"
	case OpAddColumn:
		s := fmt.Sprintf("add column %s.%s %s", op.Table, op.Column, op.Type)
		if op.After != "" {
			s += " after " + op.After
		}
		return s
	case OpDropColumn:
		return fmt.Sprintf("drop column %s.%s", op.Table, op.Column)
	case OpRenameColumn:
		return fmt.Sprintf("rename column %s.%s to %s", op.Table, op.Column, op.NewName)
	case OpChangeColumn:
		return fmt.Sprintf("change column %s.%s to %s", op.Table, op.Column, op.Type)
	case OpCreateTable:
		return fmt.Sprintf("create table %s", op.Table)
	case OpDropTable:
		return fmt.Sprintf("drop table %s", op.Table)
	}
	return string(op.Kind)
}

// Invert derives the structural inverse of op. Dropping a column or a table
// can't be inverted without knowing its definition, so in those cases, and for
// column type changes where the previous type is unknown, ok is false.
func Invert(op Operation) (inv Operation, ok bool) {
	switch op.Kind {
	case OpAddColumn:
		return Operation{Kind: OpDropColumn, Table: op.Table, Column: op.Column}, true
	case OpRenameColumn:
		return Operation{
			Kind: OpRenameColumn, Table: op.Table, Column: op.NewName,
			NewName: op.Column, Type: op.Type, Nullable: op.Nullable,
		}, true
	case OpCreateTable:
		return Operation{Kind: OpDropTable, Table: op.Table}, true
	case "", OpNone:
		return Operation{Kind: OpNone}, true
	}
	return Operation{}, false
}

// Inverts returns true if backward structurally undoes forward's effect on the
// schema shape. It doesn't consider data.
func Inverts(forward, backward Operation) bool {
	if forward.Table != backward.Table {
		return false
	}
	switch forward.Kind {
	case OpAddColumn:
		return backward.Kind == OpDropColumn && backward.Column == forward.Column
	case OpDropColumn:
		return backward.Kind == OpAddColumn && backward.Column == forward.Column
	case OpRenameColumn:
		return backward.Kind == OpRenameColumn &&
			backward.Column == forward.NewName && backward.NewName == forward.Column
	case OpChangeColumn:
		return backward.Kind == OpChangeColumn && backward.Column == forward.Column
	case OpCreateTable:
		return backward.Kind == OpDropTable
	case OpDropTable:
		return backward.Kind == OpCreateTable
	}
	return false
}
