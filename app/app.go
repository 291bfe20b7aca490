package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/mandelsoft/vfs/pkg/memoryfs"

	"go.hackfix.me/ledger/app/config"
	actx "go.hackfix.me/ledger/app/context"
	aerrors "go.hackfix.me/ledger/app/errors"
	"go.hackfix.me/ledger/cli"
	"go.hackfix.me/ledger/db"
	"go.hackfix.me/ledger/db/queries"
)

// stateDBName is the name of the state database file in the data directory.
const stateDBName = "ledger.db"

// App is the application.
type App struct {
	name string
	ctx  *actx.Context
	cli  *cli.CLI
	// config overrides the configuration file, if set with WithConfig.
	config *config.Config
	// the logging level is set via the CLI, if the app was initialized with the
	// WithLogger option.
	logLevel *slog.LevelVar
}

// New initializes a new application.
func New(name, configFilePath, dataDir string, opts ...Option) (*App, error) {
	version, err := actx.GetVersion()
	if err != nil {
		return nil, err
	}

	defaultCtx := &actx.Context{
		Ctx:     context.Background(),
		FS:      memoryfs.New(),
		Logger:  slog.Default(),
		TimeNow: time.Now,
		Version: version,
	}
	app := &App{name: name, ctx: defaultCtx}

	for _, opt := range opts {
		opt(app)
	}

	ver := fmt.Sprintf("%s %s", app.name, app.ctx.Version.String())
	app.cli, err = cli.New(configFilePath, dataDir, ver)
	if err != nil {
		return nil, err
	}

	return app, nil
}

// Run initializes the application environment and starts execution of the
// application.
func (app *App) Run(args []string) (err error) {
	if err = app.cli.Parse(args); err != nil {
		return err
	}

	if app.logLevel != nil {
		app.logLevel.Set(app.cli.Log.Level)
		slog.SetLogLoggerLevel(app.cli.Log.Level)
	}

	if err = app.loadConfig(); err != nil {
		return err
	}

	if app.ctx.DB == nil {
		if err = app.openDB(); err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, app.ctx.DB.Close())
			app.ctx.DB = nil
		}()
	}

	version, err := queries.Version(app.ctx.DB.NewContext(), app.ctx.DB)
	if err != nil && !queries.IsMissingSchema(err) {
		return aerrors.NewWithCause("failed reading the state database version", err)
	}
	app.ctx.VersionInit = version.V

	return app.cli.Execute(app.ctx)
}

func (app *App) loadConfig() error {
	cfg := app.config
	if cfg == nil {
		cfg = config.NewConfig(app.ctx.FS, app.cli.ConfigFile)
		if err := cfg.Load(); err != nil {
			return aerrors.NewWithCause("failed loading configuration", err, "path", cfg.Path())
		}
	}
	app.ctx.Config = cfg

	if err := app.cli.ApplyConfig(app.ctx); err != nil {
		return err
	}
	cfg.SetDefaults()

	return nil
}

func (app *App) openDB() error {
	if err := app.ctx.FS.MkdirAll(app.cli.DataDir, 0o700); err != nil {
		return aerrors.NewWithCause("failed creating data directory", err, "path", app.cli.DataDir)
	}

	dbPath := filepath.Join(app.cli.DataDir, stateDBName)
	d, err := db.Open(app.ctx.Ctx, dbPath, app.ctx.TimeNow)
	if err != nil {
		return aerrors.NewWithCause("failed opening the state database", err, "path", dbPath)
	}
	app.ctx.DB = d

	return nil
}
