// Package run wraps subprocess execution behind small interfaces so that
// every component that shells out can be tested without spawning real
// processes.
package run

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
)

// Outcome captures how a spawned process ended.
type Outcome struct {
	ExitCode    int
	Interrupted bool
}

// ErrInterrupted reports a user-initiated interrupt. Callers translate it
// into a graceful zero exit, never into a failure.
var ErrInterrupted = errors.New("interrupted by user")

// ExitError carries a downstream process's exit code up to main so the
// launcher can reflect it verbatim.
type ExitError struct {
	Code int
	Msg  string
}

func (e *ExitError) Error() string { return e.Msg }

// CommandRunner abstracts captured command execution for testing.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, exitCode int, err error)
}

// SpawnSpec describes an interactive child process.
type SpawnSpec struct {
	Command []string // command and arguments
	Dir     string   // working directory (empty = inherit)
	Env     []string // environment (nil = inherit)
}

// Spawner abstracts interactive execution: the child inherits the
// launcher's standard streams and the caller blocks until it exits.
type Spawner interface {
	Spawn(ctx context.Context, spec SpawnSpec) (Outcome, error)
}

// LookupFunc resolves an executable name on PATH. exec.LookPath in
// production, a stub in tests.
type LookupFunc func(name string) (string, error)

// OSRunner is the real CommandRunner backed by os/exec. An interrupt
// received while waiting surfaces as ErrInterrupted so every captured
// wait (venv creation, pip installs, probes) shuts the pipeline down
// gracefully instead of dying with the default signal disposition.
type OSRunner struct{}

func (r *OSRunner) Run(ctx context.Context, name string, args ...string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return "", "", -1, err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var interrupted bool
	for {
		select {
		case <-sig:
			interrupted = true
		case runErr := <-done:
			stdout := stdoutBuf.String()
			stderr := stderrBuf.String()
			if interrupted {
				return stdout, stderr, -1, ErrInterrupted
			}
			switch e := runErr.(type) {
			case nil:
				return stdout, stderr, 0, nil
			case *exec.ExitError:
				return stdout, stderr, e.ExitCode(), nil
			default:
				return stdout, stderr, -1, runErr
			}
		}
	}
}

// OSSpawner is the real Spawner. It wires the child to the launcher's own
// stdio and treats an interrupt received while waiting as user-initiated
// shutdown rather than an error: the child gets the signal too (shared
// process group), so we just keep waiting and flag the outcome.
type OSSpawner struct{}

func (s *OSSpawner) Spawn(ctx context.Context, spec SpawnSpec) (Outcome, error) {
	if len(spec.Command) == 0 {
		return Outcome{}, fmt.Errorf("spawn: empty command")
	}
	name := spec.Command[0]
	cmd := exec.CommandContext(ctx, name, spec.Command[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return Outcome{}, fmt.Errorf("start %s: %w", name, err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var interrupted bool
	for {
		select {
		case <-sig:
			interrupted = true
		case waitErr := <-done:
			switch e := waitErr.(type) {
			case nil:
				return Outcome{ExitCode: 0, Interrupted: interrupted}, nil
			case *exec.ExitError:
				return Outcome{ExitCode: e.ExitCode(), Interrupted: interrupted}, nil
			default:
				return Outcome{ExitCode: -1, Interrupted: interrupted}, fmt.Errorf("wait for %s: %w", name, waitErr)
			}
		}
	}
}
