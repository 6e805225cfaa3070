package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewRootCmd_Flags(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"port", "device", "sam_model_type", "mask_save", "config"} {
		if root.Flags().Lookup(name) == nil {
			t.Errorf("flag --%s not registered", name)
		}
	}
	for _, name := range []string{"debug", "log-level", "log-format"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("persistent flag --%s not registered", name)
		}
	}
}

func TestNewRootCmd_RejectsPositionalArgs(t *testing.T) {
	root := NewRootCmd()
	root.SetArgs([]string{"extra"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected error for positional arguments")
	}
}

func TestLoadSettings_ExplicitMissingFileFails(t *testing.T) {
	if _, err := loadSettings(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestLoadSettings_DefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })

	s, err := loadSettings("")
	if err != nil {
		t.Fatalf("loadSettings error: %v", err)
	}
	if s.EnvDir != ".venv" {
		t.Errorf("EnvDir = %q, want .venv", s.EnvDir)
	}
}

func TestLoadSettings_PicksUpDefaultFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, defaultSettingsFile), []byte("env_dir: .custom\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })

	s, err := loadSettings("")
	if err != nil {
		t.Fatalf("loadSettings error: %v", err)
	}
	if s.EnvDir != ".custom" {
		t.Errorf("EnvDir = %q, want .custom", s.EnvDir)
	}
}
