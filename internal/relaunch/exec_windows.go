//go:build windows

package relaunch

import "errors"

// Windows has no exec primitive; the Relauncher falls back to spawning
// the replacement as a child and forwarding its exit code.
func nativeExec(argv0 string, argv []string, envv []string) error {
	return errors.New("process-image replacement is not available on windows")
}
