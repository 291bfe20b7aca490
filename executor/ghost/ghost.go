// Package ghost implements an executor that alters MySQL tables online with
// gh-ost (https://github.com/github/gh-ost), which is invoked as an external
// process.
package ghost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	aerrors "go.hackfix.me/ledger/app/errors"
	"go.hackfix.me/ledger/ddl"
	"go.hackfix.me/ledger/executor/sqlexec"
	"go.hackfix.me/ledger/ledger"
)

// ErrDryRun is returned after gh-ost ran without --execute. The migration
// isn't considered applied, since the table wasn't changed.
var ErrDryRun = errors.New("gh-ost ran without --execute, the table wasn't changed")

// Runner runs an external command. It allows tests to replace the gh-ost
// binary.
type Runner interface {
	Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error
}

// ProcessRunner runs commands as child processes.
type ProcessRunner struct{}

// Run implements the Runner interface.
func (ProcessRunner) Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// Ghost applies column operations with gh-ost. Operations gh-ost can't
// perform, i.e. creating and dropping tables, are delegated to a fallback
// executor.
type Ghost struct {
	target    *sqlexec.Target
	fallback  ledger.Executor
	binary    string
	execute   bool
	extraArgs []string
	tempDir   string
	runner    Runner
	logger    *slog.Logger
}

var _ ledger.Executor = (*Ghost)(nil)

// New returns a new Ghost executor for the target database. fallback runs the
// operations that don't alter an existing table.
func New(target *sqlexec.Target, fallback ledger.Executor, opts ...Option) (*Ghost, error) {
	if target == nil {
		return nil, errors.New("target database is required")
	}
	if target.Dialect != ddl.MySQL {
		return nil, fmt.Errorf("gh-ost only supports MySQL targets, got %s", target.Dialect)
	}
	if fallback == nil {
		return nil, errors.New("fallback executor is required")
	}

	g := &Ghost{target: target, fallback: fallback}

	opts = append(DefaultOptions(), opts...)
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// ExecuteForward implements the ledger.Executor interface.
func (g *Ghost) ExecuteForward(ctx context.Context, op ledger.Operation) error {
	if !op.Kind.IsAlter() {
		return g.fallback.ExecuteForward(ctx, op)
	}
	return g.run(ctx, ledger.Up, op)
}

// ExecuteBackward implements the ledger.Executor interface.
func (g *Ghost) ExecuteBackward(ctx context.Context, op ledger.Operation) error {
	if !op.Kind.IsAlter() {
		return g.fallback.ExecuteBackward(ctx, op)
	}
	return g.run(ctx, ledger.Down, op)
}

// Args returns the gh-ost command line arguments for the given statement.
// confPath is the client configuration file holding the credentials, if any.
func (g *Ghost) Args(stmt ddl.Statement, confPath string) []string {
	args := []string{
		"--host=" + g.target.Host,
		"--port=" + g.target.Port,
	}
	if confPath != "" {
		args = append(args, "--conf="+confPath)
	}
	args = append(args,
		"--database="+g.target.Database,
		"--table="+stmt.Table,
		"--alter="+stmt.Alter,
	)
	args = append(args, g.extraArgs...)
	if g.execute {
		args = append(args, "--execute")
	}

	return args
}

var confEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// writeConf writes the target credentials to a temporary MySQL client
// configuration file readable only by the current user, so that they don't
// show up in the process list. The returned function removes the file.
func (g *Ghost) writeConf() (string, func(), error) {
	if g.target.User == "" && g.target.Password == "" {
		return "", func() {}, nil
	}

	f, err := os.CreateTemp(g.tempDir, "ledger-gh-ost-*.cnf")
	if err != nil {
		return "", nil, fmt.Errorf("failed creating gh-ost configuration file: %w", err)
	}
	remove := func() {
		if rerr := os.Remove(f.Name()); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			g.logger.Warn("failed removing gh-ost configuration file", "path", f.Name(), "error", rerr)
		}
	}

	var conf strings.Builder
	conf.WriteString("[client]\n")
	if g.target.User != "" {
		fmt.Fprintf(&conf, "user = \"%s\"\n", confEscaper.Replace(g.target.User))
	}
	if g.target.Password != "" {
		fmt.Fprintf(&conf, "password = \"%s\"\n", confEscaper.Replace(g.target.Password))
	}

	if err = f.Chmod(0o600); err == nil {
		_, err = f.WriteString(conf.String())
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		remove()
		return "", nil, fmt.Errorf("failed writing gh-ost configuration file: %w", err)
	}

	return f.Name(), remove, nil
}

func (g *Ghost) run(ctx context.Context, dir ledger.Direction, op ledger.Operation) error {
	stmt, err := ddl.Render(ddl.MySQL, op)
	if err != nil {
		return err
	}

	confPath, removeConf, err := g.writeConf()
	if err != nil {
		return err
	}
	defer removeConf()

	logger := g.logger.With("direction", dir, "table", stmt.Table, "alter", stmt.Alter)
	if !g.execute {
		logger.Warn("gh-ost is running without --execute; the table will not be changed")
	}
	logger.Info("running gh-ost")

	var stderr bytes.Buffer
	stdout := &logWriter{logger: logger}
	start := time.Now()
	err = g.runner.Run(ctx, g.binary, g.Args(stmt, confPath), stdout, &stderr)
	stdout.flush()
	if err != nil {
		fields := []any{"table", stmt.Table, "alter", stmt.Alter}
		if out := lastLine(stderr.String()); out != "" {
			fields = append(fields, "output", out)
		}
		return aerrors.NewWithCause("gh-ost failed", err, fields...)
	}

	logger.Info("gh-ost finished", "duration", time.Since(start))

	if !g.execute {
		return aerrors.With(ErrDryRun, "table", stmt.Table, "alter", stmt.Alter,
			"hint", "set executor.gh_ost.execute to true in the configuration, or use 'ledger plan' to preview changes")
	}

	return nil
}

// logWriter forwards process output to the logger line by line.
type logWriter struct {
	logger *slog.Logger
	buf    []byte
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		idx := bytes.IndexByte(w.buf, '\n')
		if idx == -1 {
			break
		}
		if line := strings.TrimSpace(string(w.buf[:idx])); line != "" {
			w.logger.Debug(line)
		}
		w.buf = w.buf[idx+1:]
	}
	return len(p), nil
}

func (w *logWriter) flush() {
	if line := strings.TrimSpace(string(w.buf)); line != "" {
		w.logger.Debug(line)
	}
	w.buf = nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndexByte(s, '\n'); idx != -1 {
		return strings.TrimSpace(s[idx+1:])
	}
	return s
}
