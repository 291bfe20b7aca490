package cli

import (
	"fmt"

	actx "go.hackfix.me/ledger/app/context"
	aerrors "go.hackfix.me/ledger/app/errors"
)

// The Rollback command rolls back the most recently applied migrations.
type Rollback struct {
	Count *int   `arg:"" optional:"" help:"Amount of migrations to roll back (default: 1)."`
	To    string `help:"Roll back every migration applied after this ID. The migration itself stays applied."`
}

// Run the rollback command.
func (c *Rollback) Run(appCtx *actx.Context) error {
	if c.Count != nil && c.To != "" {
		return aerrors.NewWith("the migration count and --to can't be combined",
			"hint", "pass either a count or --to")
	}
	count := 1
	if c.Count != nil {
		count = *c.Count
	}

	s, err := newSession(appCtx, true)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.close(); cerr != nil {
			appCtx.Logger.Warn("failed closing executor", "error", cerr)
		}
	}()

	var n int
	if c.To != "" {
		n, err = s.ledger.RollbackTo(appCtx.Ctx, c.To)
	} else {
		n, err = s.ledger.Rollback(appCtx.Ctx, count)
	}
	if err != nil {
		return runError("failed rolling back migrations", err, n)
	}

	if n == 0 {
		_, err = fmt.Fprintln(appCtx.Stdout, "Nothing to roll back.")
	} else {
		_, err = fmt.Fprintf(appCtx.Stdout, "Rolled back %d %s.\n", n, plural(n, "migration"))
	}

	return err
}
