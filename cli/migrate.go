package cli

import (
	"fmt"

	actx "go.hackfix.me/ledger/app/context"
)

// The Migrate command applies pending migrations in ID order.
type Migrate struct {
	To string `help:"Apply migrations up to and including this ID."`
}

// Run the migrate command.
func (c *Migrate) Run(appCtx *actx.Context) error {
	s, err := newSession(appCtx, true)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.close(); cerr != nil {
			appCtx.Logger.Warn("failed closing executor", "error", cerr)
		}
	}()

	n, err := s.ledger.Apply(appCtx.Ctx, c.To)
	if err != nil {
		return runError("failed applying migrations", err, n)
	}

	if n == 0 {
		_, err = fmt.Fprintln(appCtx.Stdout, "Nothing to apply.")
	} else {
		_, err = fmt.Fprintf(appCtx.Stdout, "Applied %d %s.\n", n, plural(n, "migration"))
	}

	return err
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
