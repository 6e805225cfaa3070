package pyenv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/me/matlaunch/internal/platform"
	"github.com/me/matlaunch/internal/run"
)

// mockRunner records calls and returns canned responses.
type mockRunner struct {
	calls   [][]string
	results []mockResult
	callIdx int
}

type mockResult struct {
	stdout   string
	stderr   string
	exitCode int
	err      error
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) (string, string, int, error) {
	m.calls = append(m.calls, append([]string{name}, args...))
	if m.callIdx >= len(m.results) {
		return "", "", -1, fmt.Errorf("unexpected call %d", m.callIdx)
	}
	r := m.results[m.callIdx]
	m.callIdx++
	return r.stdout, r.stderr, r.exitCode, r.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func lookupWith(found map[string]string) func(string) (string, error) {
	return func(name string) (string, error) {
		if path, ok := found[name]; ok {
			return path, nil
		}
		return "", fmt.Errorf("%s not found", name)
	}
}

// newEnvDir lays out a fake venv with an interpreter file in place.
func newEnvDir(t *testing.T, profile *platform.Profile) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), ".venv")
	interp := profile.InterpreterPath(root)
	if err := os.MkdirAll(filepath.Dir(interp), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(interp, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestEnsure_ExistingEnvironmentIsReused(t *testing.T) {
	runner := &mockRunner{results: []mockResult{{stdout: "Python 3.11.9\n"}}}
	profile := platform.NewForOS("linux", runner, lookupWith(nil))
	root := newEnvDir(t, profile)

	p := NewProvisioner(profile, runner, "3.11", discard())
	env, err := p.Ensure(context.Background(), root)
	if err != nil {
		t.Fatalf("Ensure error: %v", err)
	}
	if !env.Existed {
		t.Error("Existed = false, want true")
	}
	// Only the version check ran; no venv creation.
	if len(runner.calls) != 1 {
		t.Fatalf("calls = %d, want 1 (version check only)", len(runner.calls))
	}
	if runner.calls[0][1] != "--version" {
		t.Errorf("unexpected call %v", runner.calls[0])
	}
}

func TestEnsure_ExistingEnvironmentWrongVersion(t *testing.T) {
	runner := &mockRunner{results: []mockResult{{stdout: "Python 3.9.1\n"}}}
	profile := platform.NewForOS("linux", runner, lookupWith(nil))
	root := newEnvDir(t, profile)

	p := NewProvisioner(profile, runner, "3.11", discard())
	_, err := p.Ensure(context.Background(), root)
	if err == nil {
		t.Fatal("expected version mismatch error")
	}
	if !strings.Contains(err.Error(), "delete the directory") {
		t.Errorf("error %q lacks remediation hint", err)
	}
}

func TestEnsure_ExistingDirWithoutInterpreter(t *testing.T) {
	runner := &mockRunner{}
	profile := platform.NewForOS("linux", runner, lookupWith(nil))
	root := filepath.Join(t.TempDir(), ".venv")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}

	p := NewProvisioner(profile, runner, "3.11", discard())
	_, err := p.Ensure(context.Background(), root)
	if err == nil {
		t.Fatal("expected error for dir without interpreter")
	}
	if len(runner.calls) != 0 {
		t.Errorf("calls = %d, want 0", len(runner.calls))
	}
}

func TestEnsure_CreatesEnvironment(t *testing.T) {
	runner := &mockRunner{results: []mockResult{{exitCode: 0}}}
	profile := platform.NewForOS("linux", runner, lookupWith(map[string]string{
		"python3.11": "/usr/bin/python3.11",
	}))
	root := filepath.Join(t.TempDir(), ".venv")

	p := NewProvisioner(profile, runner, "3.11", discard())
	env, err := p.Ensure(context.Background(), root)
	if err != nil {
		t.Fatalf("Ensure error: %v", err)
	}
	if env.Existed {
		t.Error("Existed = true, want false")
	}
	if len(runner.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(runner.calls))
	}
	call := runner.calls[0]
	if call[0] != "/usr/bin/python3.11" || call[1] != "-m" || call[2] != "venv" {
		t.Errorf("creation call = %v, want python3.11 -m venv <root>", call)
	}
}

func TestEnsure_InterpreterNotFound(t *testing.T) {
	runner := &mockRunner{}
	profile := platform.NewForOS("linux", runner, lookupWith(nil))

	p := NewProvisioner(profile, runner, "3.11", discard())
	_, err := p.Ensure(context.Background(), filepath.Join(t.TempDir(), ".venv"))
	if err == nil {
		t.Fatal("expected interpreter-not-found error")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error %q should name the missing interpreter", err)
	}
}

func TestEnsure_InterruptedCreationIsGraceful(t *testing.T) {
	runner := &mockRunner{results: []mockResult{{exitCode: -1, err: run.ErrInterrupted}}}
	profile := platform.NewForOS("linux", runner, lookupWith(map[string]string{
		"python3.11": "/usr/bin/python3.11",
	}))

	p := NewProvisioner(profile, runner, "3.11", discard())
	_, err := p.Ensure(context.Background(), filepath.Join(t.TempDir(), ".venv"))
	if !errors.Is(err, run.ErrInterrupted) {
		t.Fatalf("err = %v, want ErrInterrupted", err)
	}
}

func TestEnsure_CreationFailure(t *testing.T) {
	runner := &mockRunner{results: []mockResult{{exitCode: 1, stderr: "Error: no ensurepip"}}}
	profile := platform.NewForOS("linux", runner, lookupWith(map[string]string{
		"python3.11": "/usr/bin/python3.11",
	}))

	p := NewProvisioner(profile, runner, "3.11", discard())
	_, err := p.Ensure(context.Background(), filepath.Join(t.TempDir(), ".venv"))
	if err == nil {
		t.Fatal("expected creation failure error")
	}
	// Distinct from the not-found message and carries the tool's stderr.
	if !strings.Contains(err.Error(), "venv command exited") || !strings.Contains(err.Error(), "ensurepip") {
		t.Errorf("error %q lacks creation failure detail", err)
	}
}
