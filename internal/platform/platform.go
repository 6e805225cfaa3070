// Package platform consolidates every platform-sensitive decision the
// launcher makes into a single profile, selected once at startup instead
// of scattering GOOS conditionals across the pipeline.
package platform

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"

	"github.com/me/matlaunch/internal/run"
)

// Profile answers platform-specific questions: where the venv interpreter
// lives, how to find the pinned Python, whether CUDA applies here at all.
type Profile struct {
	goos     string
	lookPath run.LookupFunc
	runner   run.CommandRunner
}

// New builds the profile for the current OS.
func New(runner run.CommandRunner, lookPath run.LookupFunc) *Profile {
	return NewForOS(runtime.GOOS, runner, lookPath)
}

// NewForOS builds a profile for an explicit GOOS value. Tests use this to
// exercise the non-native variants.
func NewForOS(goos string, runner run.CommandRunner, lookPath run.LookupFunc) *Profile {
	return &Profile{goos: goos, lookPath: lookPath, runner: runner}
}

// InterpreterPath returns the venv interpreter location under root.
func (p *Profile) InterpreterPath(root string) string {
	if p.goos == "windows" {
		return filepath.Join(root, "Scripts", "python.exe")
	}
	return filepath.Join(root, "bin", "python")
}

// FindVersionedInterpreter locates a Python of the given version and
// returns the command vector that invokes it. On Windows the py launcher
// is tried first since it is the reliable way to select a version; the
// PATH lookup of pythonX.Y is the fallback everywhere. The error is
// non-nil only when the operator interrupted the version probe.
func (p *Profile) FindVersionedInterpreter(ctx context.Context, version string) ([]string, bool, error) {
	if p.goos == "windows" {
		if _, err := p.lookPath("py"); err == nil {
			_, _, code, err := p.runner.Run(ctx, "py", "-"+version, "--version")
			if errors.Is(err, run.ErrInterrupted) {
				return nil, false, err
			}
			if err == nil && code == 0 {
				return []string{"py", "-" + version}, true, nil
			}
		}
	}
	if path, err := p.lookPath("python" + version); err == nil {
		return []string{path}, true, nil
	}
	return nil, false, nil
}

// SupportsAcceleratorTool reports whether nvidia-smi is meaningful on
// this platform. macOS uses MPS instead, which the demo handles itself.
func (p *Profile) SupportsAcceleratorTool() bool {
	return p.goos == "windows" || p.goos == "linux"
}

// ProbeAcceleratorTool reports whether nvidia-smi resolves on PATH. A
// missing tool is a soft negative, never an error.
func (p *Profile) ProbeAcceleratorTool() bool {
	_, err := p.lookPath("nvidia-smi")
	return err == nil
}

// AcceleratorInstallArgs returns the extra pip arguments selecting the
// CUDA wheel index. Empty on macOS, where the default index is correct.
func (p *Profile) AcceleratorInstallArgs(indexURL string) []string {
	if p.goos == "darwin" {
		return nil
	}
	return []string{"--index-url", indexURL}
}

// SkipAcceleratorCheck reports whether the CUDA availability check is
// inapplicable (macOS).
func (p *Profile) SkipAcceleratorCheck() bool {
	return p.goos == "darwin"
}

// CaseInsensitivePaths reports whether interpreter paths compare
// case-insensitively on this platform.
func (p *Profile) CaseInsensitivePaths() bool {
	return p.goos == "windows" || p.goos == "darwin"
}

// CanReplaceProcess reports whether the exec primitive is available, i.e.
// whether relaunching can replace the process image instead of spawning.
func (p *Profile) CanReplaceProcess() bool {
	return p.goos != "windows"
}
