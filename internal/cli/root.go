// Package cli wires the cobra command surface to the bootstrap pipeline.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/me/matlaunch/internal/accel"
	"github.com/me/matlaunch/internal/bootstrap"
	"github.com/me/matlaunch/internal/config"
	"github.com/me/matlaunch/internal/launch"
	"github.com/me/matlaunch/internal/logging"
	"github.com/me/matlaunch/internal/manifest"
	"github.com/me/matlaunch/internal/platform"
	"github.com/me/matlaunch/internal/pyenv"
	"github.com/me/matlaunch/internal/relaunch"
	"github.com/me/matlaunch/internal/run"
)

// defaultSettingsFile is picked up from the invocation directory when
// present; --config points somewhere else explicitly.
const defaultSettingsFile = "launcher.yaml"

// NewRootCmd creates the root cobra command for matlaunch.
func NewRootCmd() *cobra.Command {
	var (
		flagDebug     bool
		flagLogLevel  string
		flagLogFormat string
		flagConfig    string

		launchCfg config.LaunchConfig
	)

	root := &cobra.Command{
		Use:   "matlaunch",
		Short: "matlaunch — bootstrap and launch the MatAnyone Gradio demo",
		Long: `matlaunch provisions a pinned-version Python virtual environment,
verifies CUDA-capable PyTorch (installing it when needed), installs the
demo's dependencies, and launches the Gradio demo inside the environment.
Run it again at any time; an existing environment is reused as-is.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger := logging.New(os.Stderr, flagLogLevel, flagLogFormat).
				With("run_id", uuid.NewString())

			settings, err := loadSettings(flagConfig)
			if err != nil {
				return err
			}
			return runBootstrap(cmd, settings, launchCfg, logger)
		},
	}

	root.Flags().IntVar(&launchCfg.Port, "port", 0, "Port for the Gradio demo (forwarded to app.py)")
	root.Flags().StringVar(&launchCfg.Device, "device", "", "Inference device, e.g. cuda, cpu, mps (forwarded to app.py)")
	root.Flags().StringVar(&launchCfg.SAMModelType, "sam_model_type", "", "SAM model type: vit_h, vit_l, vit_b (forwarded to app.py)")
	root.Flags().BoolVar(&launchCfg.MaskSave, "mask_save", false, "Save intermediate masks (forwarded to app.py)")

	root.Flags().StringVar(&flagConfig, "config", "", "Launcher settings file (default: "+defaultSettingsFile+" if present)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	return root
}

// loadSettings resolves launcher settings: an explicit --config must load,
// the default file is used when present, defaults otherwise.
func loadSettings(path string) (config.Settings, error) {
	if path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat(defaultSettingsFile); err == nil {
		return config.Load(defaultSettingsFile)
	}
	return config.Default(), nil
}

// runBootstrap assembles the pipeline from the real OS-backed pieces and
// runs it. A user interrupt anywhere in the pipeline is a graceful exit.
func runBootstrap(cmd *cobra.Command, settings config.Settings, launchCfg config.LaunchConfig, logger *slog.Logger) error {
	runner := &run.OSRunner{}
	spawner := &run.OSSpawner{}
	profile := platform.New(runner, exec.LookPath)

	pipeline := &bootstrap.Pipeline{
		Settings:    settings,
		Launch:      launchCfg,
		Args:        os.Args[1:],
		Profile:     profile,
		Provisioner: pyenv.NewProvisioner(profile, runner, settings.PythonVersion, logger),
		Relauncher:  relaunch.New(profile, exec.LookPath, spawner, logger),
		Verifier:    accel.NewVerifier(profile, runner, settings.TorchIndexURL, settings.CountdownSeconds, logger),
		Installer:   manifest.NewInstaller(runner, logger),
		Coordinator: launch.NewCoordinator(spawner, logger),
		LookPath:    exec.LookPath,
		Logger:      logger,
	}

	err := pipeline.Run(cmd.Context())
	if errors.Is(err, run.ErrInterrupted) {
		logger.Info("interrupted by user, exiting")
		fmt.Fprintln(os.Stderr, "Aborted by user. Exiting.")
		return nil
	}
	return err
}
