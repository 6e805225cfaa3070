// Package relaunch decides whether the launcher is already running inside
// the target environment and re-executes it inside once when it is not.
package relaunch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/me/matlaunch/internal/platform"
	"github.com/me/matlaunch/internal/pyenv"
	"github.com/me/matlaunch/internal/run"
)

// ExecFunc replaces the current process image. It only returns on
// failure. Nil when the platform has no such primitive.
type ExecFunc func(argv0 string, argv []string, envv []string) error

// Relauncher is a two-state machine: either the process is already inside
// the environment (the interpreter resolving on PATH is the venv's own)
// and control returns to the caller, or it is re-executed with the venv
// activated, exactly once.
type Relauncher struct {
	profile    *platform.Profile
	logger     *slog.Logger
	lookPath   run.LookupFunc
	execFn     ExecFunc
	spawner    run.Spawner
	executable func() (string, error)
	environ    func() []string
}

// New creates a Relauncher using the platform's native exec primitive
// where one exists and the spawn-and-wait fallback otherwise.
func New(profile *platform.Profile, lookPath run.LookupFunc, spawner run.Spawner, logger *slog.Logger) *Relauncher {
	r := &Relauncher{
		profile:    profile,
		logger:     logger.With("component", "relauncher"),
		lookPath:   lookPath,
		spawner:    spawner,
		executable: os.Executable,
		environ:    os.Environ,
	}
	if profile.CanReplaceProcess() {
		r.execFn = nativeExec
	}
	return r
}

// Bootstrapped reports whether the interpreter currently active on PATH
// is the target environment's interpreter. After a successful relaunch
// this is necessarily true, so no second relaunch can occur.
func (r *Relauncher) Bootstrapped(targetInterpreter string) bool {
	current, err := r.lookPath("python")
	if err != nil {
		return false
	}
	currentAbs, err := filepath.Abs(current)
	if err != nil {
		return false
	}
	targetAbs, err := filepath.Abs(targetInterpreter)
	if err != nil {
		return false
	}
	if r.profile.CaseInsensitivePaths() {
		return strings.EqualFold(currentAbs, targetAbs)
	}
	return currentAbs == targetAbs
}

// Relaunch re-executes the launcher with env activated: VIRTUAL_ENV set
// and the venv's bin directory first on PATH. Where the platform supports
// it the process image is replaced in place and this never returns on
// success. Otherwise the replacement runs as a child with inherited stdio
// and its outcome is returned for the caller to exit with.
func (r *Relauncher) Relaunch(ctx context.Context, env pyenv.Environment, args []string) (run.Outcome, error) {
	self, err := r.executable()
	if err != nil {
		return run.Outcome{}, fmt.Errorf("locate own executable: %w", err)
	}
	environ := activatedEnviron(r.environ(), env)

	if r.execFn != nil {
		r.logger.Info("replacing process inside environment", "path", env.Root)
		argv := append([]string{self}, args...)
		if err := r.execFn(self, argv, environ); err != nil {
			return run.Outcome{}, fmt.Errorf("replace process image: %w (activate the environment manually and rerun)", err)
		}
		// Unreachable: exec does not return on success.
		return run.Outcome{}, nil
	}

	r.logger.Info("relaunching inside environment", "path", env.Root)
	outcome, err := r.spawner.Spawn(ctx, run.SpawnSpec{
		Command: append([]string{self}, args...),
		Env:     environ,
	})
	if err != nil {
		return outcome, fmt.Errorf("relaunch inside environment: %w (activate the environment manually and rerun)", err)
	}
	return outcome, nil
}

// activatedEnviron returns base with VIRTUAL_ENV pointing at the env and
// the interpreter's directory prepended to PATH, the same effect as
// sourcing the venv's activate script.
func activatedEnviron(base []string, env pyenv.Environment) []string {
	binDir := filepath.Dir(env.Interpreter)
	out := make([]string, 0, len(base)+2)
	var sawPath bool
	for _, kv := range base {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			out = append(out, kv)
			continue
		}
		switch {
		case strings.EqualFold(key, "PATH"):
			sawPath = true
			out = append(out, key+"="+binDir+string(os.PathListSeparator)+value)
		case key == "VIRTUAL_ENV" || key == "PYTHONHOME":
			// Replaced below / must not leak into the venv.
		default:
			out = append(out, kv)
		}
	}
	if !sawPath {
		out = append(out, "PATH="+binDir)
	}
	return append(out, "VIRTUAL_ENV="+env.Root)
}
