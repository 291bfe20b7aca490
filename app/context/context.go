package context

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/mandelsoft/vfs/pkg/vfs"

	"go.hackfix.me/ledger/app/config"
	"go.hackfix.me/ledger/db"
	"go.hackfix.me/ledger/ledger"
)

// Context contains common objects used by the application. It is passed around
// the application to avoid direct dependencies on external systems, and make
// testing easier.
type Context struct {
	Ctx     context.Context  // global context
	FS      vfs.FileSystem   // filesystem
	Env     Environment      // process environment
	Logger  *slog.Logger     // global logger
	TimeNow func() time.Time // returns the current system time
	Config  *config.Config
	DB      *db.DB

	// Executor overrides the executor created from the configuration. It's
	// used by tests to avoid touching a real database.
	Executor ledger.Executor

	// Standard streams
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Metadata
	Version     *VersionInfo
	VersionInit string // version the state database was initialized with
}

// Environment is the interface to the process environment.
type Environment interface {
	Get(key string) string
	Set(key, val string) error
}
