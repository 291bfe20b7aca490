package cli

import (
	"fmt"
	"io"
	"slices"

	actx "go.hackfix.me/ledger/app/context"
	aerrors "go.hackfix.me/ledger/app/errors"
	"go.hackfix.me/ledger/ddl"
	"go.hackfix.me/ledger/executor/sqlexec"
	"go.hackfix.me/ledger/ledger"
)

// The Plan command prints the statements that migrate or rollback would run,
// without changing the target database.
type Plan struct {
	To       string `help:"Plan migrations up to and including this ID."`
	Rollback int    `help:"Plan rolling back this many migrations instead."`
	Dialect  string `help:"SQL dialect to render statements in (mysql, postgres, sqlite). Defaults to the dialect of the target database, or mysql."`
}

// Run the plan command.
func (c *Plan) Run(appCtx *actx.Context) error {
	dialect, err := c.dialect(appCtx)
	if err != nil {
		return err
	}

	s, err := newSession(appCtx, false)
	if err != nil {
		return err
	}

	var (
		recs []*ledger.Record
		dir  = ledger.Up
	)
	if c.Rollback > 0 {
		dir = ledger.Down
		for rec := range s.ledger.Applied() {
			recs = append(recs, rec)
		}
		slices.Reverse(recs)
		recs = recs[:min(c.Rollback, len(recs))]
	} else {
		if c.To != "" {
			if _, ok := s.ledger.Get(c.To); !ok {
				return ledger.UnknownIDError{ID: c.To}
			}
		}
		for rec := range s.ledger.Pending() {
			if c.To != "" && rec.ID > c.To {
				break
			}
			recs = append(recs, rec)
		}
	}

	for _, rec := range recs {
		op := rec.Forward
		if dir == ledger.Down {
			op = rec.Backward
		}
		if err = writePlan(appCtx.Stdout, dialect, rec.ID, op); err != nil {
			return aerrors.NewWithCause("failed rendering migration", err,
				"migration_id", rec.ID, "direction", dir)
		}
	}

	return nil
}

func (c *Plan) dialect(appCtx *actx.Context) (ddl.Dialect, error) {
	if c.Dialect != "" {
		return ddl.DialectFromString(c.Dialect)
	}
	if appCtx.Config.Target.URL.Valid {
		target, err := sqlexec.ParseTarget(appCtx.Config.Target.URL.V)
		if err != nil {
			return "", err
		}
		return target.Dialect, nil
	}
	return ddl.MySQL, nil
}

// writePlan writes the statement of a single operation. For MySQL, the
// arguments passed to gh-ost are included as a comment.
func writePlan(w io.Writer, dialect ddl.Dialect, id string, op ledger.Operation) error {
	if _, err := fmt.Fprintf(w, "-- %s\n", id); err != nil {
		return err
	}

	stmt, err := ddl.Render(dialect, op)
	if err != nil {
		return err
	}
	if stmt.SQL == "" {
		_, err = fmt.Fprintln(w, "-- no-op")
		return err
	}

	if dialect == ddl.MySQL && stmt.Alter != "" {
		_, err = fmt.Fprintf(w, "-- gh-ost --table=%s --alter=%q\n", stmt.Table, stmt.Alter)
		if err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "%s;\n", stmt.SQL)

	return err
}
