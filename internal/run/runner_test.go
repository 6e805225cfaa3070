package run

import (
	"context"
	"errors"
	"strings"
	"syscall"
	"testing"
	"time"
)

func TestOSRunner_Run(t *testing.T) {
	r := &OSRunner{}

	stdout, _, code, err := r.Run(context.Background(), "echo", "hello")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if code != 0 {
		t.Errorf("exit_code = %d, want 0", code)
	}
	if stdout != "hello\n" {
		t.Errorf("stdout = %q, want hello\\n", stdout)
	}
}

func TestOSRunner_NonzeroExit(t *testing.T) {
	r := &OSRunner{}

	_, _, code, err := r.Run(context.Background(), "sh", "-c", "exit 3")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if code != 3 {
		t.Errorf("exit_code = %d, want 3", code)
	}
}

func TestOSRunner_CommandNotFound(t *testing.T) {
	r := &OSRunner{}

	_, _, code, err := r.Run(context.Background(), "definitely-not-a-real-binary-xyz")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if code != -1 {
		t.Errorf("exit_code = %d, want -1", code)
	}
}

func TestOSRunner_InterruptDuringWait(t *testing.T) {
	r := &OSRunner{}

	type result struct {
		code int
		err  error
	}
	done := make(chan result, 1)
	go func() {
		_, _, code, err := r.Run(context.Background(), "sleep", "1")
		done <- result{code, err}
	}()

	// Give Run time to start the child and register its handler, then
	// interrupt ourselves the way Ctrl+C would.
	time.Sleep(200 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGINT); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-done:
		if !errors.Is(got.err, ErrInterrupted) {
			t.Fatalf("err = %v, want ErrInterrupted", got.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after interrupt")
	}
}

func TestOSSpawner_ExitCode(t *testing.T) {
	s := &OSSpawner{}

	outcome, err := s.Spawn(context.Background(), SpawnSpec{
		Command: []string{"sh", "-c", "exit 3"},
		Dir:     t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Spawn error: %v", err)
	}
	if outcome.ExitCode != 3 {
		t.Errorf("exit_code = %d, want 3", outcome.ExitCode)
	}
	if outcome.Interrupted {
		t.Error("interrupted = true, want false")
	}
}

func TestExitError_Message(t *testing.T) {
	err := &ExitError{Code: 3, Msg: "demo exited with code 3"}
	if !strings.Contains(err.Error(), "3") {
		t.Errorf("error message %q does not reference the code", err.Error())
	}
}
