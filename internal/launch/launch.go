// Package launch builds the downstream argument vector and runs the demo
// inside the provisioned environment.
package launch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/me/matlaunch/internal/config"
	"github.com/me/matlaunch/internal/pyenv"
	"github.com/me/matlaunch/internal/run"
)

// BuildArgs translates the parsed launch flags into the demo's argument
// vector. Only flags the operator actually set are forwarded.
func BuildArgs(cfg config.LaunchConfig, entrypoint string) []string {
	args := []string{entrypoint}
	if cfg.Port != 0 {
		args = append(args, "--port", strconv.Itoa(cfg.Port))
	}
	if cfg.Device != "" {
		args = append(args, "--device", cfg.Device)
	}
	if cfg.SAMModelType != "" {
		args = append(args, "--sam_model_type", cfg.SAMModelType)
	}
	if cfg.MaskSave {
		args = append(args, "--mask_save")
	}
	return args
}

// Coordinator spawns the demo and propagates its outcome.
type Coordinator struct {
	spawner    run.Spawner
	logger     *slog.Logger
	executable func() (string, error)
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(spawner run.Spawner, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		spawner:    spawner,
		logger:     logger.With("component", "launch"),
		executable: os.Executable,
	}
}

// DemoDir resolves the downstream working directory: settings.DemoDir
// relative to the launcher binary's real location.
func (c *Coordinator) DemoDir(settings config.Settings) (string, error) {
	self, err := c.executable()
	if err != nil {
		return "", fmt.Errorf("locate own executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(self); err == nil {
		self = resolved
	}
	return filepath.Join(filepath.Dir(self), settings.DemoDir), nil
}

// Run launches the demo in the working directory settings.DemoDir next to
// the launcher binary and blocks until it exits. A nonzero exit comes
// back as a run.ExitError carrying the demo's code; an interrupt while
// waiting is a graceful shutdown, not a failure.
func (c *Coordinator) Run(ctx context.Context, env pyenv.Environment, cfg config.LaunchConfig, settings config.Settings) error {
	demoDir, err := c.DemoDir(settings)
	if err != nil {
		return err
	}

	command := append([]string{env.Interpreter}, BuildArgs(cfg, settings.Entrypoint)...)
	c.logger.Info("launching demo", "dir", demoDir, "command", command)

	outcome, err := c.spawner.Spawn(ctx, run.SpawnSpec{Command: command, Dir: demoDir})
	if err != nil {
		return fmt.Errorf("launch demo: %w", err)
	}
	if outcome.Interrupted {
		return run.ErrInterrupted
	}
	if outcome.ExitCode != 0 {
		return &run.ExitError{
			Code: outcome.ExitCode,
			Msg:  fmt.Sprintf("demo exited with code %d", outcome.ExitCode),
		}
	}
	return nil
}
