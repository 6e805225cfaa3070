// Package config holds launcher settings and the parsed launch flags.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings controls where the launcher provisions and looks for things.
// The environment directory name is threaded through here explicitly so
// the provisioner and relauncher never depend on a package constant.
type Settings struct {
	EnvDir           string `yaml:"env_dir"`           // venv directory, relative to the invocation dir
	PythonVersion    string `yaml:"python_version"`    // pinned interpreter version, "major.minor"
	DemoDir          string `yaml:"demo_dir"`          // downstream working dir, relative to the launcher binary
	Entrypoint       string `yaml:"entrypoint"`        // downstream program inside DemoDir
	RequirementsFile string `yaml:"requirements_file"` // manifest, relative to DemoDir
	TorchIndexURL    string `yaml:"torch_index_url"`   // pip index for CUDA wheels
	CountdownSeconds int    `yaml:"countdown_seconds"` // abort window before degraded launch
}

// Default returns the settings matching the MatAnyone demo layout.
func Default() Settings {
	return Settings{
		EnvDir:           ".venv",
		PythonVersion:    "3.11",
		DemoDir:          "hugging_face",
		Entrypoint:       "app.py",
		RequirementsFile: "requirements.txt",
		TorchIndexURL:    "https://download.pytorch.org/whl/cu121",
		CountdownSeconds: 5,
	}
}

// Load reads a YAML settings file over the defaults. A missing file is an
// error; callers decide whether the path was optional.
func Load(path string) (Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse settings file %s: %w", path, err)
	}
	return s, nil
}

// LaunchConfig is the subset of CLI input forwarded to the downstream
// demo. Immutable once parsed; zero values mean "not set".
type LaunchConfig struct {
	Port         int
	Device       string
	SAMModelType string
	MaskSave     bool
}
