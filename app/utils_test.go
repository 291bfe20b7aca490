package app

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"

	actx "go.hackfix.me/ledger/app/context"
	aerrors "go.hackfix.me/ledger/app/errors"
	"go.hackfix.me/ledger/db"
	"go.hackfix.me/ledger/executor/mock"
)

var timeNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func timeNowFn() time.Time {
	return timeNow
}

type testApp struct {
	*App
	stdin          io.Writer
	stdout, stderr *outWriter
	env            *mockEnv
	fs             vfs.FileSystem
	exec           *mock.Mock
	flushOutputs   func() error
}

func newTestApp(ctx context.Context) (*testApp, error) {
	// A unique name per app, to avoid clashing of in-memory SQLite DBs.
	rndName := make([]byte, 12)
	_, err := rand.Read(rndName)
	if err != nil {
		return nil, err
	}

	// Not using just :memory: to avoid 'no such table' issue.
	// See https://github.com/mattn/go-sqlite3#faq
	d, err := db.Open(ctx,
		fmt.Sprintf("file:ledger-%x?mode=memory&cache=shared", rndName), timeNowFn)
	if err != nil {
		return nil, err
	}

	var (
		stdinR, stdinW   = io.Pipe()
		stdoutW, stderrW = newOutWriter(), newOutWriter()
	)

	fs := memoryfs.New()
	err = vfs.WriteFile(fs, "/config.json", []byte(`{"migrations": {"dir": "/migrations"}}`), 0o644)
	if err != nil {
		return nil, err
	}

	exec := mock.New(slog.New(slog.DiscardHandler))
	exec.CreateTable("users", "id", "name", "email", "password")

	env := &mockEnv{env: map[string]string{}}
	opts := []Option{
		WithTimeNow(timeNowFn),
		WithEnv(env),
		WithDB(d),
		WithExecutor(exec),
		WithContext(ctx),
		WithFDs(stdinR, stdoutW, stderrW),
		WithFS(fs),
		WithLogger(false, false),
	}
	app, err := New("ledger", "/config.json", "/data", opts...)
	if err != nil {
		return nil, err
	}

	tapp := &testApp{
		App: app, stdout: stdoutW, stderr: stderrW,
		stdin: stdinW, env: env, fs: fs, exec: exec,
	}
	tapp.flushOutputs = func() error {
		stdoutW.Reset()
		if _, rerr := stdoutW.ReadFrom(stdoutW.tmp); rerr != nil {
			return rerr
		}
		stdoutW.tmp.Reset()

		stderrW.Reset()
		if _, rerr := stderrW.ReadFrom(stderrW.tmp); rerr != nil {
			return rerr
		}
		stderrW.tmp.Reset()

		return nil
	}

	return tapp, nil
}

func (ta *testApp) Run(args ...string) error {
	runErr := ta.App.Run(args)

	if err := ta.flushOutputs(); err != nil {
		return err
	}

	return runErr
}

// writeMigration writes a migration definition file to the migrations
// directory.
func (ta *testApp) writeMigration(id, content string) error {
	if err := ta.fs.MkdirAll("/migrations", 0o755); err != nil {
		return err
	}
	return vfs.WriteFile(ta.fs, "/migrations/"+id+".yaml", []byte(content), 0o644)
}

type mockEnv struct {
	mx  sync.RWMutex
	env map[string]string
}

var _ actx.Environment = (*mockEnv)(nil)

func (me *mockEnv) Get(key string) string {
	me.mx.RLock()
	defer me.mx.RUnlock()
	return me.env[key]
}

func (me *mockEnv) Set(key, val string) error {
	me.mx.Lock()
	defer me.mx.Unlock()
	me.env[key] = val
	return nil
}

// outWriter is an io.Writer that collects the output of a single command in
// a temporary buffer, which is moved to the main buffer once the command ends.
type outWriter struct {
	*safeBuffer             // main buffer read by tests
	tmp         *safeBuffer // temp buffer written to during each command
}

func newOutWriter() *outWriter {
	return &outWriter{safeBuffer: newSafeBuffer(), tmp: newSafeBuffer()}
}

func (w *outWriter) Write(p []byte) (n int, err error) {
	return w.tmp.Write(p)
}

// newTestContext returns a context that times out after timeout, and an
// assertion handling function that cancels the context prematurely and fails
// the test if the assertion fails. This is done to avoid waiting for the
// context timeout to be reached.
func newTestContext(t *testing.T, timeout time.Duration) (
	ctx context.Context, cancelCtx func(), assertHandler func(bool),
) {
	ctx, cancelCtx = context.WithTimeout(t.Context(), timeout)
	assertHandler = func(success bool) {
		if !success {
			cancelCtx()
			t.FailNow()
		}
	}

	return
}

// safeBuffer is a thread-safe buffer.
type safeBuffer struct {
	mx  sync.RWMutex
	buf *bytes.Buffer
}

func newSafeBuffer() *safeBuffer {
	return &safeBuffer{buf: &bytes.Buffer{}}
}

func (b *safeBuffer) Read(p []byte) (n int, err error) {
	b.mx.RLock()
	defer b.mx.RUnlock()
	return b.buf.Read(p)
}

func (b *safeBuffer) Write(p []byte) (n int, err error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) ReadFrom(r io.Reader) (n int64, err error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.buf.ReadFrom(r)
}

func (b *safeBuffer) Reset() {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.buf.Reset()
}

func (b *safeBuffer) String() string {
	b.mx.RLock()
	defer b.mx.RUnlock()
	return b.buf.String()
}

func (b *safeBuffer) Bytes() []byte {
	b.mx.RLock()
	defer b.mx.RUnlock()
	return b.buf.Bytes()
}

// errMsg returns the message of err including the message of its cause, if
// it's a StructuredError.
func errMsg(err error) string {
	if err == nil {
		return ""
	}
	var serr *aerrors.StructuredError
	if errors.As(err, &serr) && serr.Cause() != nil {
		return fmt.Sprintf("%s: %s", err, serr.Cause())
	}
	return err.Error()
}

var tableSepRx = regexp.MustCompile(`\s{2,}`)

// tableRows splits a rendered table into its cells, ignoring padding.
func tableRows(out string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		rows = append(rows, tableSepRx.Split(line, -1))
	}
	return rows
}
