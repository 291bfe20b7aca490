package cli

import (
	"fmt"

	actx "go.hackfix.me/ledger/app/context"
	aerrors "go.hackfix.me/ledger/app/errors"
)

// The Init command creates the ledger state database, and the migrations
// directory if it doesn't exist.
type Init struct{}

// Run the init command.
func (c *Init) Run(appCtx *actx.Context) error {
	if appCtx.VersionInit != "" {
		return fmt.Errorf("the ledger is already initialized with version %s", appCtx.VersionInit)
	}

	err := appCtx.DB.Init(appCtx.Version.Semantic, appCtx.Logger)
	if err != nil {
		return aerrors.NewWithCause("failed initializing database", err)
	}

	dir := appCtx.Config.Migrations.Dir.V
	if err = appCtx.FS.MkdirAll(dir, 0o755); err != nil {
		return aerrors.NewWithCause("failed creating migrations directory", err, "dir", dir)
	}

	appCtx.Logger.Info("initialized ledger", "version", appCtx.Version.Semantic,
		"database", appCtx.DB.Path(), "migrations_dir", dir)

	return nil
}
