// Package executor creates the executors that apply migration operations to
// the target database.
package executor

import (
	"fmt"
	"log/slog"

	actx "go.hackfix.me/ledger/app/context"
	"go.hackfix.me/ledger/executor/ghost"
	"go.hackfix.me/ledger/executor/mock"
	"go.hackfix.me/ledger/executor/sqlexec"
	etypes "go.hackfix.me/ledger/executor/types"
	"go.hackfix.me/ledger/ledger"
)

// PasswordEnvVar is the environment variable that overrides the password of
// the target database URL.
const PasswordEnvVar = "LEDGER_TARGET_PASSWORD"

// Setup creates the executor of the given type, configured from the
// application configuration. The returned function releases any resources
// held by the executor, and must be called once it's no longer needed.
func Setup(
	appCtx *actx.Context, et etypes.ExecutorType, logger *slog.Logger,
) (ledger.Executor, func() error, error) {
	noClose := func() error { return nil }
	if appCtx.Executor != nil {
		return appCtx.Executor, noClose, nil
	}

	if et == etypes.ExecutorMock {
		return mock.New(logger), noClose, nil
	}
	if et != etypes.ExecutorSQL && et != etypes.ExecutorGhost {
		return nil, nil, fmt.Errorf("unsupported executor type '%s'", et)
	}

	cfg := appCtx.Config
	targetURL := cfg.Target.URL.V
	if appCtx.Env != nil {
		if password := appCtx.Env.Get(PasswordEnvVar); password != "" && targetURL != "" {
			var err error
			if targetURL, err = sqlexec.SetPassword(targetURL, password); err != nil {
				return nil, nil, err
			}
		}
	}

	target, err := sqlexec.ParseTarget(targetURL)
	if err != nil {
		return nil, nil, err
	}

	sqlExec, err := sqlexec.Open(appCtx.Ctx, target,
		sqlexec.WithLogger(logger), sqlexec.WithTimeout(cfg.Executor.Timeout.V))
	if err != nil {
		return nil, nil, fmt.Errorf("failed creating %s executor: %w", etypes.ExecutorSQL, err)
	}

	if et == etypes.ExecutorSQL {
		return sqlExec, sqlExec.Close, nil
	}

	opts := []ghost.Option{
		ghost.WithLogger(logger),
		ghost.WithExecute(cfg.Executor.Ghost.Execute.V),
	}
	if cfg.Executor.Ghost.Binary.Valid {
		opts = append(opts, ghost.WithBinary(cfg.Executor.Ghost.Binary.V))
	}
	if cfg.Executor.Ghost.Args.Valid {
		opts = append(opts, ghost.WithExtraArgs(cfg.Executor.Ghost.Args.V))
	}

	ghExec, err := ghost.New(target, sqlExec, opts...)
	if err != nil {
		_ = sqlExec.Close()
		return nil, nil, fmt.Errorf("failed creating %s executor: %w", etypes.ExecutorGhost, err)
	}

	return ghExec, sqlExec.Close, nil
}
