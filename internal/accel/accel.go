// Package accel verifies that the environment carries a working
// hardware-accelerated PyTorch and repairs it by reinstallation when it
// is missing or CPU-only.
package accel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/me/matlaunch/internal/platform"
	"github.com/me/matlaunch/internal/pyenv"
	"github.com/me/matlaunch/internal/run"
)

// State is the probed condition of the numeric backend. It is only ever
// set by an explicit probe, never inferred.
type State int

const (
	// StateAbsent means the backend failed to load at all.
	StateAbsent State = iota
	// StatePresentNoAccel means the backend loads but the accelerator
	// check failed or does not apply on this platform.
	StatePresentNoAccel
	// StatePresentAccelerated means the backend loads and reports a
	// usable accelerator.
	StatePresentAccelerated
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StatePresentNoAccel:
		return "present-no-accel"
	case StatePresentAccelerated:
		return "present-accelerated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Probe programs run by the venv interpreter. The full probe prints a
// marker for the CUDA answer so classification never depends on parsing
// an exception out of stderr.
const (
	fullProbeProgram   = `import sys, torch; sys.stdout.write("cuda-ok" if torch.cuda.is_available() else "cuda-missing")`
	importProbeProgram = `import torch`
)

// Verifier probes and repairs the accelerated backend.
type Verifier struct {
	profile   *platform.Profile
	runner    run.CommandRunner
	logger    *slog.Logger
	indexURL  string
	countdown int // seconds in the degraded-launch abort window

	// Overridable for tests.
	tick       time.Duration
	toolPause  time.Duration
	stderr     io.Writer
	isTerminal func() bool
	notify     func() (<-chan os.Signal, func())
}

// NewVerifier creates a Verifier. countdown is the number of seconds the
// operator gets to abort before a degraded (CPU-only) launch proceeds.
func NewVerifier(profile *platform.Profile, runner run.CommandRunner, indexURL string, countdown int, logger *slog.Logger) *Verifier {
	return &Verifier{
		profile:    profile,
		runner:     runner,
		logger:     logger.With("component", "accel"),
		indexURL:   indexURL,
		countdown:  countdown,
		tick:       time.Second,
		toolPause:  3 * time.Second,
		stderr:     os.Stderr,
		isTerminal: func() bool { return isatty.IsTerminal(os.Stderr.Fd()) },
		notify: func() (<-chan os.Signal, func()) {
			ch := make(chan os.Signal, 1)
			signal.Notify(ch, os.Interrupt)
			return ch, func() { signal.Stop(ch) }
		},
	}
}

// EarlyToolCheck warns before any slow installs begin when the
// accelerator diagnostic tool is missing, and gives the operator a short
// abort window. No-op where the tool is not meaningful.
func (v *Verifier) EarlyToolCheck() error {
	if !v.profile.SupportsAcceleratorTool() {
		return nil
	}
	if v.profile.ProbeAcceleratorTool() {
		v.logger.Info("nvidia-smi found, final CUDA check runs after the backend is installed")
		return nil
	}
	v.logger.Warn("nvidia-smi not found on PATH; an NVIDIA GPU is likely unavailable and processing will fall back to the CPU")
	fmt.Fprintln(v.stderr, "Press Ctrl+C now to abort if you do not wish to proceed.")
	return v.pause(v.toolPause)
}

// Probe loads the backend inside env and classifies the result. The CUDA
// check is skipped entirely where the platform uses a different
// accelerator mechanism; there a loadable backend reports
// StatePresentNoAccel and the caller treats that as sufficient. The
// error is non-nil only when the operator interrupted the probe.
func (v *Verifier) Probe(ctx context.Context, env pyenv.Environment) (State, error) {
	program := fullProbeProgram
	if v.profile.SkipAcceleratorCheck() {
		program = importProbeProgram
	}
	stdout, _, code, err := v.runner.Run(ctx, env.Interpreter, "-c", program)
	if errors.Is(err, run.ErrInterrupted) {
		return StateAbsent, err
	}
	if err != nil || code != 0 {
		return StateAbsent, nil
	}
	if !v.profile.SkipAcceleratorCheck() && strings.Contains(stdout, "cuda-ok") {
		return StatePresentAccelerated, nil
	}
	return StatePresentNoAccel, nil
}

// Verify runs the backend probe, the repair install when needed, and the
// degraded-mode abort window. run.ErrInterrupted is returned when the
// operator aborts.
func (v *Verifier) Verify(ctx context.Context, env pyenv.Environment) error {
	state, err := v.Probe(ctx, env)
	if err != nil {
		return err
	}
	switch {
	case state == StatePresentAccelerated:
		v.logger.Info("accelerated backend already installed")
		return nil
	case state == StatePresentNoAccel && v.profile.SkipAcceleratorCheck():
		v.logger.Info("backend installed; accelerator handled by the application on this platform")
		return nil
	case state == StatePresentNoAccel:
		v.logger.Warn("backend installed without CUDA support, reinstalling the accelerated build")
	default:
		v.logger.Info("backend not found, installing")
	}

	if err := v.repair(ctx, env); err != nil {
		return err
	}

	if v.profile.SkipAcceleratorCheck() {
		return nil
	}
	state, err = v.Probe(ctx, env)
	if err != nil {
		return err
	}
	if state == StatePresentAccelerated {
		v.logger.Info("accelerated backend verified")
		return nil
	}
	return v.degradedWindow()
}

// repair reinstalls the backend with the platform's wheel index and
// confirms it imports afterwards.
func (v *Verifier) repair(ctx context.Context, env pyenv.Environment) error {
	args := []string{"-m", "pip", "install", "torch", "torchvision", "torchaudio"}
	args = append(args, v.profile.AcceleratorInstallArgs(v.indexURL)...)

	v.logger.Info("installing backend", "command", env.Interpreter+" "+strings.Join(args, " "))
	_, stderr, code, err := v.runner.Run(ctx, env.Interpreter, args...)
	if errors.Is(err, run.ErrInterrupted) {
		return err
	}
	if err != nil {
		return fmt.Errorf("install backend: %w; install PyTorch manually (https://pytorch.org/get-started/locally/)", err)
	}
	if code != 0 {
		return fmt.Errorf("install backend: pip exited with code %d: %s; install PyTorch manually (https://pytorch.org/get-started/locally/)", code, strings.TrimSpace(stderr))
	}

	// Import-level re-check only; the running process reuses the fresh
	// site-packages without an interpreter restart.
	_, _, code, err = v.runner.Run(ctx, env.Interpreter, "-c", importProbeProgram)
	if errors.Is(err, run.ErrInterrupted) {
		return err
	}
	if err != nil || code != 0 {
		return fmt.Errorf("backend could not be imported after installation; install PyTorch manually (https://pytorch.org/get-started/locally/)")
	}
	v.logger.Info("backend installed")
	return nil
}

// degradedWindow warns that the launch will be CPU-only and gives the
// operator a visible countdown to abort before proceeding.
func (v *Verifier) degradedWindow() error {
	v.logger.Warn("CUDA acceleration is NOT available; the application will run on the CPU and will be extremely slow")
	fmt.Fprintln(v.stderr, "Possible reasons: no NVIDIA GPU, broken drivers, or a PyTorch build that does not match them.")
	fmt.Fprintln(v.stderr, "It is strongly recommended to stop (Ctrl+C) and resolve this.")

	sig, stop := v.notify()
	defer stop()

	interactive := v.isTerminal()
	if !interactive {
		fmt.Fprintf(v.stderr, "Proceeding with CPU in %d seconds...\n", v.countdown)
	}
	for i := v.countdown; i > 0; i-- {
		if interactive {
			fmt.Fprintf(v.stderr, "\rProceeding with CPU in %d...", i)
		}
		select {
		case <-sig:
			if interactive {
				fmt.Fprintln(v.stderr)
			}
			return run.ErrInterrupted
		case <-time.After(v.tick):
		}
	}
	if interactive {
		fmt.Fprint(v.stderr, "\rProceeding with CPU now.      \n")
	}
	return nil
}

// pause sleeps for d unless an interrupt arrives first.
func (v *Verifier) pause(d time.Duration) error {
	sig, stop := v.notify()
	defer stop()
	select {
	case <-sig:
		return run.ErrInterrupted
	case <-time.After(d):
		return nil
	}
}
