//go:build unix

package relaunch

import "golang.org/x/sys/unix"

// nativeExec replaces the current process image. Process identity, open
// descriptors, and the standard streams all carry over.
func nativeExec(argv0 string, argv []string, envv []string) error {
	return unix.Exec(argv0, argv, envv)
}
