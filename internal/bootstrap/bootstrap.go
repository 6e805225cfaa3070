// Package bootstrap sequences the launcher pipeline: relaunch gate,
// backend verification, dependency installation, and the demo launch.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/me/matlaunch/internal/config"
	"github.com/me/matlaunch/internal/platform"
	"github.com/me/matlaunch/internal/pyenv"
	"github.com/me/matlaunch/internal/run"
)

// The pipeline depends on behavior, not concrete types, so each stage can
// be swapped for a mock in tests.
type provisioner interface {
	Ensure(ctx context.Context, root string) (pyenv.Environment, error)
}

type relauncher interface {
	Bootstrapped(targetInterpreter string) bool
	Relaunch(ctx context.Context, env pyenv.Environment, args []string) (run.Outcome, error)
}

type verifier interface {
	EarlyToolCheck() error
	Verify(ctx context.Context, env pyenv.Environment) error
}

type installer interface {
	Install(ctx context.Context, env pyenv.Environment, path string) error
	UpgradePip(ctx context.Context, env pyenv.Environment) error
}

type coordinator interface {
	DemoDir(settings config.Settings) (string, error)
	Run(ctx context.Context, env pyenv.Environment, cfg config.LaunchConfig, settings config.Settings) error
}

// Pipeline wires the stages together and runs them in strict sequence.
type Pipeline struct {
	Settings    config.Settings
	Launch      config.LaunchConfig
	Args        []string // original argv (without the program name)
	Profile     *platform.Profile
	Provisioner provisioner
	Relauncher  relauncher
	Verifier    verifier
	Installer   installer
	Coordinator coordinator
	LookPath    run.LookupFunc
	Logger      *slog.Logger
}

// Run executes the bootstrap. The relaunch gate comes first: when the
// process is not yet inside the environment it is provisioned and the
// launcher re-executes itself there, so on platforms with a native exec
// primitive Run never returns from that branch. Everything after the gate
// runs inside the environment.
func (p *Pipeline) Run(ctx context.Context) error {
	envRoot, err := filepath.Abs(p.Settings.EnvDir)
	if err != nil {
		return fmt.Errorf("resolve env dir: %w", err)
	}

	if !p.Relauncher.Bootstrapped(p.Profile.InterpreterPath(envRoot)) {
		p.Logger.Info("running outside the virtual environment, bootstrapping", "env", envRoot)
		env, err := p.Provisioner.Ensure(ctx, envRoot)
		if err != nil {
			return err
		}
		outcome, err := p.Relauncher.Relaunch(ctx, env, p.Args)
		if err != nil {
			return err
		}
		// Spawn-and-wait fallback path: forward the child's result.
		if outcome.Interrupted {
			return run.ErrInterrupted
		}
		if outcome.ExitCode != 0 {
			return &run.ExitError{
				Code: outcome.ExitCode,
				Msg:  fmt.Sprintf("relaunched process exited with code %d", outcome.ExitCode),
			}
		}
		return nil
	}

	p.Logger.Info("running inside the virtual environment")
	env, err := p.Provisioner.Ensure(ctx, envRoot)
	if err != nil {
		return err
	}

	// The missing-GPU hint comes before the potentially slow pip work so
	// the operator can abort without waiting for it.
	if err := p.Verifier.EarlyToolCheck(); err != nil {
		return err
	}

	if err := p.Installer.UpgradePip(ctx, env); err != nil {
		return err
	}

	if err := p.Verifier.Verify(ctx, env); err != nil {
		return err
	}

	demoDir, err := p.Coordinator.DemoDir(p.Settings)
	if err != nil {
		return err
	}
	if err := p.Installer.Install(ctx, env, filepath.Join(demoDir, p.Settings.RequirementsFile)); err != nil {
		return err
	}

	if _, err := p.LookPath("ffmpeg"); err != nil {
		p.Logger.Warn("ffmpeg not found on PATH; the demo requires it, install it manually")
	}

	p.Logger.Info("all checks passed, launching the demo (stop it with Ctrl+C)")
	return p.Coordinator.Run(ctx, env, p.Launch, p.Settings)
}
