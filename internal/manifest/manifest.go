// Package manifest installs the demo's additional dependencies with the
// environment's own pip.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/me/matlaunch/internal/pyenv"
	"github.com/me/matlaunch/internal/run"
)

// Installer runs pip inside a provisioned environment.
type Installer struct {
	runner run.CommandRunner
	logger *slog.Logger
}

// NewInstaller creates an Installer.
func NewInstaller(runner run.CommandRunner, logger *slog.Logger) *Installer {
	return &Installer{runner: runner, logger: logger.With("component", "installer")}
}

// Install installs everything listed in the manifest at path. A missing
// manifest is a warning and a no-op; an install failure is fatal.
func (i *Installer) Install(ctx context.Context, env pyenv.Environment, path string) error {
	if _, err := os.Stat(path); err != nil {
		i.logger.Warn("no requirements manifest found, skipping dependency installation", "path", path)
		return nil
	}

	i.logger.Info("installing dependencies", "manifest", path)
	_, stderr, code, err := i.runner.Run(ctx, env.Interpreter, "-m", "pip", "install", "-r", path)
	if err != nil {
		return fmt.Errorf("install dependencies from %s: %w", path, err)
	}
	if code != 0 {
		return fmt.Errorf("install dependencies from %s: pip exited with code %d: %s", path, code, strings.TrimSpace(stderr))
	}
	i.logger.Info("dependencies installed", "manifest", path)
	return nil
}

// UpgradePip brings the environment's pip up to date. Best-effort: a
// failure is logged and ignored. Only a user interrupt comes back as an
// error, so the pipeline can shut down gracefully.
func (i *Installer) UpgradePip(ctx context.Context, env pyenv.Environment) error {
	_, stderr, code, err := i.runner.Run(ctx, env.Interpreter, "-m", "pip", "install", "--upgrade", "pip")
	if errors.Is(err, run.ErrInterrupted) {
		return err
	}
	if err != nil || code != 0 {
		i.logger.Warn("could not upgrade pip", "detail", strings.TrimSpace(stderr), "err", err)
		return nil
	}
	i.logger.Info("pip is up to date")
	return nil
}
