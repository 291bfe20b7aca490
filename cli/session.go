package cli

import (
	"context"
	"errors"
	"fmt"

	actx "go.hackfix.me/ledger/app/context"
	aerrors "go.hackfix.me/ledger/app/errors"
	"go.hackfix.me/ledger/db"
	"go.hackfix.me/ledger/definition"
	"go.hackfix.me/ledger/executor"
	"go.hackfix.me/ledger/ledger"
)

// session is a ledger loaded with the migration definitions and their
// persisted state.
type session struct {
	ledger *ledger.Ledger
	store  *db.Store
	close  func() error
}

// newSession loads the migration definitions and their state. If write is
// false, the target database isn't touched, and any attempt to change its
// schema fails.
func newSession(appCtx *actx.Context, write bool) (*session, error) {
	if err := checkInit(appCtx); err != nil {
		return nil, err
	}

	recs, err := loadDefinitions(appCtx)
	if err != nil {
		return nil, err
	}

	var exec ledger.Executor = readOnly{}
	closeExec := func() error { return nil }
	if write {
		et := appCtx.Config.Executor.Type.V
		exec, closeExec, err = executor.Setup(appCtx, et, appCtx.Logger)
		if err != nil {
			return nil, aerrors.NewWithCause("failed setting up executor", err,
				"executor", et, "target", appCtx.Config.Target.URL.V)
		}
	}

	store := db.NewStore(appCtx.DB, appCtx.Logger)
	l, err := ledger.New(exec, store,
		ledger.WithLogger(appCtx.Logger), ledger.WithTimeNow(appCtx.TimeNow))
	if err != nil {
		return nil, errors.Join(err, closeExec())
	}

	for _, rec := range recs {
		if err = l.Register(rec); err != nil {
			return nil, errors.Join(err, closeExec())
		}
	}

	if err = l.Load(appCtx.Ctx); err != nil {
		return nil, errors.Join(err, closeExec())
	}

	return &session{ledger: l, store: store, close: closeExec}, nil
}

func checkInit(appCtx *actx.Context) error {
	if appCtx.VersionInit == "" {
		return aerrors.NewWith("the ledger state database isn't initialized",
			"hint", "run 'ledger init' first")
	}
	return nil
}

func loadDefinitions(appCtx *actx.Context) ([]*ledger.Record, error) {
	dir := appCtx.Config.Migrations.Dir.V
	recs, err := definition.Load(appCtx.FS, dir)
	if err != nil {
		return nil, aerrors.NewWithCause("failed loading migration definitions", err, "dir", dir)
	}
	return recs, nil
}

// runError annotates errors returned by ledger runs with the ID of the failed
// migration, and the amount of migrations processed before it.
func runError(msg string, err error, done int) error {
	fields := []any{"done", done}

	var (
		applyErr    ledger.ApplyError
		rollbackErr ledger.RollbackError
	)
	switch {
	case errors.As(err, &applyErr):
		fields = append(fields, "migration_id", applyErr.ID)
	case errors.As(err, &rollbackErr):
		fields = append(fields, "migration_id", rollbackErr.ID)
	}
	if hint := aerrors.Hint(err); hint != "" {
		fields = append(fields, "hint", hint)
	}

	return aerrors.NewWithCause(msg, err, fields...)
}

var errReadOnly = errors.New("the target database can't be changed by this command")

// readOnly is an executor for commands that only inspect the ledger.
type readOnly struct{}

var _ ledger.Executor = readOnly{}

func (readOnly) ExecuteForward(_ context.Context, op ledger.Operation) error {
	return fmt.Errorf("%s: %w", op, errReadOnly)
}

func (readOnly) ExecuteBackward(_ context.Context, op ledger.Operation) error {
	return fmt.Errorf("%s: %w", op, errReadOnly)
}
