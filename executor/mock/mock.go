package mock

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"go.hackfix.me/ledger/ledger"
)

// Call is a single operation executed by the Mock.
type Call struct {
	Direction ledger.Direction
	Op        ledger.Operation
}

// Column is a column in the mock schema.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// Mock is an in-memory executor that maintains a model of the schema. It fails
// the same way a database would for operations that are impossible given the
// current schema shape, e.g. dropping a column that doesn't exist.
type Mock struct {
	mx      sync.Mutex
	tables  map[string][]Column
	calls   []Call
	failErr error // to simulate errors
	failOn  func(ledger.Direction, ledger.Operation) bool
	logger  *slog.Logger
}

var _ ledger.Executor = (*Mock)(nil)

// New returns a new Mock with an empty schema.
func New(logger *slog.Logger) *Mock {
	return &Mock{
		tables: make(map[string][]Column),
		logger: logger.With("component", "executor", "executor_type", "mock"),
	}
}

// CreateTable adds a table with the given columns to the schema. Column types
// are left empty.
func (m *Mock) CreateTable(name string, columns ...string) {
	m.mx.Lock()
	defer m.mx.Unlock()
	cols := make([]Column, len(columns))
	for i, c := range columns {
		cols[i] = Column{Name: c}
	}
	m.tables[name] = cols
}

// Columns returns the ordered column names of a table, or nil if the table
// doesn't exist.
func (m *Mock) Columns(table string) []string {
	m.mx.Lock()
	defer m.mx.Unlock()
	cols, ok := m.tables[table]
	if !ok {
		return nil
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// Column returns the definition of a single column.
func (m *Mock) Column(table, name string) (Column, bool) {
	m.mx.Lock()
	defer m.mx.Unlock()
	idx := columnIndex(m.tables[table], name)
	if idx == -1 {
		return Column{}, false
	}
	return m.tables[table][idx], true
}

// Tables returns the sorted names of all tables.
func (m *Mock) Tables() []string {
	m.mx.Lock()
	defer m.mx.Unlock()
	names := make([]string, 0, len(m.tables))
	for name := range m.tables {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Calls returns all operations executed so far, including failed ones.
func (m *Mock) Calls() []Call {
	m.mx.Lock()
	defer m.mx.Unlock()
	return slices.Clone(m.calls)
}

// SetFailError makes operations matching the given function fail with err. If
// match is nil, all operations fail. Passing a nil err disables failures.
func (m *Mock) SetFailError(err error, match func(ledger.Direction, ledger.Operation) bool) {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.failErr = err
	m.failOn = match
}

// ExecuteForward implements the ledger.Executor interface.
func (m *Mock) ExecuteForward(ctx context.Context, op ledger.Operation) error {
	return m.execute(ctx, ledger.Up, op)
}

// ExecuteBackward implements the ledger.Executor interface.
func (m *Mock) ExecuteBackward(ctx context.Context, op ledger.Operation) error {
	return m.execute(ctx, ledger.Down, op)
}

func (m *Mock) execute(ctx context.Context, dir ledger.Direction, op ledger.Operation) error {
	m.mx.Lock()
	defer m.mx.Unlock()

	m.calls = append(m.calls, Call{Direction: dir, Op: op})

	if err := ctx.Err(); err != nil {
		return err
	}
	if m.failErr != nil && (m.failOn == nil || m.failOn(dir, op)) {
		return m.failErr
	}

	if err := m.apply(op); err != nil {
		return err
	}
	m.logger.Debug("executed operation", "direction", dir, "operation", op.String())

	return nil
}

func (m *Mock) apply(op ledger.Operation) error {
	if op.IsNoop() {
		return nil
	}

	if op.Kind == ledger.OpCreateTable {
		if _, ok := m.tables[op.Table]; ok {
			return fmt.Errorf("table '%s' already exists", op.Table)
		}
		cols := make([]Column, len(op.Columns))
		for i, c := range op.Columns {
			cols[i] = Column{Name: c.Name, Type: c.Type, Nullable: c.Nullable}
		}
		m.tables[op.Table] = cols
		return nil
	}

	cols, ok := m.tables[op.Table]
	if !ok {
		return fmt.Errorf("table '%s' doesn't exist", op.Table)
	}

	switch op.Kind {
	case ledger.OpDropTable:
		delete(m.tables, op.Table)
	case ledger.OpAddColumn:
		if columnIndex(cols, op.Column) != -1 {
			return fmt.Errorf("duplicate column name '%s'", op.Column)
		}
		col := Column{Name: op.Column, Type: op.Type, Nullable: op.Nullable}
		pos := len(cols)
		if op.After != "" {
			idx := columnIndex(cols, op.After)
			if idx == -1 {
				return fmt.Errorf("unknown column '%s' in '%s'", op.After, op.Table)
			}
			pos = idx + 1
		}
		m.tables[op.Table] = slices.Insert(cols, pos, col)
	case ledger.OpDropColumn:
		idx := columnIndex(cols, op.Column)
		if idx == -1 {
			return fmt.Errorf("can't drop '%s'; check that column exists", op.Column)
		}
		m.tables[op.Table] = slices.Delete(cols, idx, idx+1)
	case ledger.OpRenameColumn:
		idx := columnIndex(cols, op.Column)
		if idx == -1 {
			return fmt.Errorf("unknown column '%s' in '%s'", op.Column, op.Table)
		}
		if columnIndex(cols, op.NewName) != -1 {
			return fmt.Errorf("duplicate column name '%s'", op.NewName)
		}
		cols[idx].Name = op.NewName
		if op.Type != "" {
			cols[idx].Type = op.Type
			cols[idx].Nullable = op.Nullable
		}
	case ledger.OpChangeColumn:
		idx := columnIndex(cols, op.Column)
		if idx == -1 {
			return fmt.Errorf("unknown column '%s' in '%s'", op.Column, op.Table)
		}
		cols[idx].Type = op.Type
		cols[idx].Nullable = op.Nullable
	default:
		return fmt.Errorf("unsupported operation kind '%s'", op.Kind)
	}

	return nil
}

func columnIndex(cols []Column, name string) int {
	return slices.IndexFunc(cols, func(c Column) bool {
		return c.Name == name
	})
}
