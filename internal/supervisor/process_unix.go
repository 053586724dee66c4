//go:build unix

package supervisor

import (
	"errors"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// killProcess sends SIGKILL to the child's process group so helpers the server
// forked die with it. Falls back to the single pid.
func killProcess(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
