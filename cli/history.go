package cli

import (
	"time"

	actx "go.hackfix.me/ledger/app/context"
	aerrors "go.hackfix.me/ledger/app/errors"
	"go.hackfix.me/ledger/db"
)

// The History command lists the most recent apply and rollback events,
// newest first.
type History struct {
	Limit int    `default:"20" help:"Maximum amount of events to show. 0 shows all."`
	RunID string `name:"run" help:"Only show events of the run with this ID or ID prefix."`
}

// Run the history command.
func (c *History) Run(appCtx *actx.Context) error {
	if err := checkInit(appCtx); err != nil {
		return err
	}

	store := db.NewStore(appCtx.DB, appCtx.Logger)
	events, err := store.History(appCtx.Ctx, c.RunID, c.Limit)
	if err != nil {
		return aerrors.NewWithCause("failed reading migration history", err)
	}

	if len(events) == 0 {
		return nil
	}

	data := make([][]string, 0, len(events))
	for _, ev := range events {
		data = append(data, []string{
			ev.CreatedAt.Format(time.DateTime), ev.RunID, ev.MigrationID, ev.Direction,
		})
	}

	header := []string{"TIME", "RUN", "MIGRATION", "DIRECTION"}
	if err = renderTable(appCtx.Stdout, header, data); err != nil {
		return aerrors.NewWithCause("failed rendering table", err)
	}

	return nil
}
