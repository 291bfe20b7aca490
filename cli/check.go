package cli

import (
	"errors"
	"fmt"

	actx "go.hackfix.me/ledger/app/context"
	aerrors "go.hackfix.me/ledger/app/errors"
	"go.hackfix.me/ledger/db"
	"go.hackfix.me/ledger/ddl"
	"go.hackfix.me/ledger/ledger"
)

// The Check command validates migration definitions without touching the
// target database. Invalid definitions are errors. Irreversible migrations,
// backward operations that don't undo their forward operation, and applied
// migrations that were modified afterwards are warnings, unless --strict is
// set.
type Check struct {
	Dialect string `help:"Also check that operations can be rendered in this SQL dialect (mysql, postgres, sqlite)."`
	Strict  bool   `help:"Treat warnings as errors."`
}

type problem struct {
	id, level, msg string
}

// Run the check command.
func (c *Check) Run(appCtx *actx.Context) error {
	var dialect ddl.Dialect
	if c.Dialect != "" {
		var err error
		if dialect, err = ddl.DialectFromString(c.Dialect); err != nil {
			return err
		}
	}

	recs, err := loadDefinitions(appCtx)
	if err != nil {
		return err
	}

	var problems []problem
	for _, rec := range recs {
		problems = append(problems, checkRecord(rec, dialect)...)
	}

	// Modified definitions can only be detected once the ledger is in use.
	if appCtx.VersionInit != "" {
		sums, serr := db.NewStore(appCtx.DB, appCtx.Logger).Checksums(appCtx.Ctx)
		if serr != nil {
			return aerrors.NewWithCause("failed reading migration checksums", serr)
		}
		for _, rec := range recs {
			if sum, ok := sums[rec.ID]; ok && sum != rec.Checksum() {
				problems = append(problems, problem{rec.ID, "warning", "definition changed after it was applied"})
			}
		}
	}

	var nErr, nWarn int
	data := make([][]string, 0, len(problems))
	for _, p := range problems {
		if p.level == "error" {
			nErr++
		} else {
			nWarn++
		}
		data = append(data, []string{p.id, p.level, p.msg})
	}

	if len(data) > 0 {
		if err = renderTable(appCtx.Stdout, []string{"ID", "LEVEL", "PROBLEM"}, data); err != nil {
			return aerrors.NewWithCause("failed rendering table", err)
		}
	}

	if nErr > 0 || (c.Strict && nWarn > 0) {
		return aerrors.NewWith(fmt.Sprintf("found %d %s", len(problems), plural(len(problems), "problem")),
			"errors", nErr, "warnings", nWarn)
	}

	_, err = fmt.Fprintf(appCtx.Stdout, "Checked %d %s, %d %s.\n",
		len(recs), plural(len(recs), "migration"), nWarn, plural(nWarn, "warning"))

	return err
}

func checkRecord(rec *ledger.Record, dialect ddl.Dialect) []problem {
	var problems []problem

	if err := rec.Validate(); err != nil {
		var invErr ledger.InvalidRecordError
		msg := err.Error()
		if errors.As(err, &invErr) {
			msg = invErr.Err.Error()
		}
		return []problem{{rec.ID, "error", msg}}
	}

	if !rec.IsReversible() {
		problems = append(problems, problem{rec.ID, "warning", "irreversible: backward operation is a no-op"})
	} else if !ledger.Inverts(rec.Forward, rec.Backward) {
		problems = append(problems, problem{rec.ID, "warning", fmt.Sprintf(
			"backward operation '%s' doesn't undo '%s'", rec.Backward, rec.Forward)})
	}

	if dialect != "" {
		if _, err := ddl.Render(dialect, rec.Forward); err != nil {
			problems = append(problems, problem{rec.ID, "error", fmt.Sprintf("%s: %s", ledger.Up, err)})
		}
		if _, err := ddl.Render(dialect, rec.Backward); err != nil {
			problems = append(problems, problem{rec.ID, "error", fmt.Sprintf("%s: %s", ledger.Down, err)})
		}
	}

	return problems
}
