// Package pyenv provisions the pinned-version Python virtual environment
// the demo runs in.
package pyenv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/me/matlaunch/internal/platform"
	"github.com/me/matlaunch/internal/run"
)

// Environment describes the venv for one launcher invocation. Paths are
// absolute so interpreter comparisons are reliable.
type Environment struct {
	Root        string
	Interpreter string
	Existed     bool // directory was already present before Ensure ran
}

// Provisioner creates the venv when absent and validates it when present.
type Provisioner struct {
	profile *platform.Profile
	runner  run.CommandRunner
	logger  *slog.Logger
	version string
}

// NewProvisioner creates a Provisioner pinned to the given Python version.
func NewProvisioner(profile *platform.Profile, runner run.CommandRunner, version string, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		profile: profile,
		runner:  runner,
		version: version,
		logger:  logger.With("component", "provisioner"),
	}
}

// Ensure returns the environment rooted at root, creating it if the
// directory does not exist. An existing directory is reused after one
// interpreter version check; a mismatch is an error telling the operator
// to delete the directory, since recreating it silently could destroy a
// working setup they care about.
func (p *Provisioner) Ensure(ctx context.Context, root string) (Environment, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Environment{}, fmt.Errorf("resolve env dir: %w", err)
	}
	env := Environment{
		Root:        absRoot,
		Interpreter: p.profile.InterpreterPath(absRoot),
	}

	if info, err := os.Stat(absRoot); err == nil && info.IsDir() {
		env.Existed = true
		if err := p.validate(ctx, env); err != nil {
			return env, err
		}
		p.logger.Info("virtual environment already exists", "path", absRoot)
		return env, nil
	}

	interp, ok, err := p.profile.FindVersionedInterpreter(ctx, p.version)
	if err != nil {
		return env, err
	}
	if !ok {
		return env, fmt.Errorf("python %s not found: install it and ensure it is on PATH (via `py -%s` on Windows, `python%s` elsewhere)",
			p.version, p.version, p.version)
	}

	p.logger.Info("creating virtual environment", "path", absRoot, "python", strings.Join(interp, " "))
	args := append(interp[1:], "-m", "venv", absRoot)
	_, stderr, code, err := p.runner.Run(ctx, interp[0], args...)
	if err != nil {
		return env, fmt.Errorf("create virtual environment: %w", err)
	}
	if code != 0 {
		return env, fmt.Errorf("create virtual environment: venv command exited with code %d: %s", code, strings.TrimSpace(stderr))
	}
	p.logger.Info("virtual environment created", "path", absRoot)
	return env, nil
}

// validate checks that an existing environment actually contains an
// interpreter of the pinned version. The directory itself is never
// touched; the operator resolves mismatches manually.
func (p *Provisioner) validate(ctx context.Context, env Environment) error {
	if _, err := os.Stat(env.Interpreter); err != nil {
		return fmt.Errorf("environment %s exists but has no interpreter at %s: delete the directory and rerun", env.Root, env.Interpreter)
	}
	stdout, stderr, code, err := p.runner.Run(ctx, env.Interpreter, "--version")
	if errors.Is(err, run.ErrInterrupted) {
		return err
	}
	if err != nil || code != 0 {
		return fmt.Errorf("environment %s exists but its interpreter is not runnable: delete the directory and rerun", env.Root)
	}
	reported := strings.TrimSpace(stdout + stderr)
	if !strings.HasPrefix(reported, "Python "+p.version+".") {
		return fmt.Errorf("environment %s reports %q, want Python %s: delete the directory and rerun", env.Root, reported, p.version)
	}
	return nil
}
