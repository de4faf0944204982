//go:build windows

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

func newGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

func groupOf(pid int) int { return pid }

// Windows has no SIGTERM for console children; stopping kills.
func (c *Child) terminate() error { return c.kill() }

func (c *Child) kill() error {
	err := c.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
