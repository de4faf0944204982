//go:build !windows

package process

import (
	"errors"
	"os/exec"
	"syscall"
)

func newGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func groupOf(pid int) int {
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		return pid
	}
	return pgid
}

func (c *Child) terminate() error { return c.signal(syscall.SIGTERM) }

func (c *Child) kill() error { return c.signal(syscall.SIGKILL) }

// signal targets the whole group so grandchildren go down with the worker.
// A group that is already gone is not an error.
func (c *Child) signal(sig syscall.Signal) error {
	err := syscall.Kill(-c.PGID, sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}
