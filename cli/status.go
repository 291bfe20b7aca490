package cli

import (
	actx "go.hackfix.me/ledger/app/context"
	aerrors "go.hackfix.me/ledger/app/errors"
	"go.hackfix.me/ledger/xtime"
)

// The Status command lists all migrations and whether they're applied.
// Applied migrations whose definition changed since they were applied are
// marked as modified, and applied migrations without a definition as missing.
// Irreversible migrations are marked with an asterisk.
type Status struct {
	Pending bool `help:"Only list pending migrations."`
}

// Run the status command.
func (c *Status) Run(appCtx *actx.Context) error {
	s, err := newSession(appCtx, false)
	if err != nil {
		return err
	}

	sums, err := s.store.Checksums(appCtx.Ctx)
	if err != nil {
		return aerrors.NewWithCause("failed reading migration checksums", err)
	}

	now := appCtx.TimeNow()
	data := [][]string{}
	for rec := range s.ledger.All() {
		if c.Pending && rec.IsApplied() {
			continue
		}

		status, applied := "pending", "-"
		if rec.IsApplied() {
			status = "applied"
			if sum, ok := sums[rec.ID]; ok && sum != rec.Checksum() {
				status = "modified"
			}
			applied = xtime.FormatSince(now, rec.AppliedAt.V)
		}
		if !rec.IsReversible() {
			status += "*"
		}
		data = append(data, []string{rec.ID, status, applied, rec.Forward.String()})
	}

	if !c.Pending {
		for _, id := range s.ledger.Orphans() {
			data = append(data, []string{id, "missing", "-", "-"})
		}
	}

	if len(data) == 0 {
		return nil
	}

	header := []string{"ID", "STATUS", "APPLIED", "OPERATION"}
	if err = renderTable(appCtx.Stdout, header, data); err != nil {
		return aerrors.NewWithCause("failed rendering table", err)
	}

	return nil
}
