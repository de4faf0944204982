// Package process spawns worker subprocesses in their own process group and
// tracks them so shutdown can stop every group it started.
package process

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
)

// ErrKilled reports a child that outlived its stop deadline and was killed.
var ErrKilled = errors.New("process killed after stop deadline")

// Command describes a child process. Env is appended to the current
// environment.
type Command struct {
	Name   string
	Path   string
	Args   []string
	Env    []string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

// Child is a running process group leader. Its exit status is collected by
// a single reaper goroutine.
type Child struct {
	PID  int
	PGID int
	Name string

	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// Spawn starts command as the leader of a new process group.
func Spawn(command Command) (*Child, error) {
	if command.Path == "" {
		return nil, errors.New("process path is required")
	}
	cmd := exec.Command(command.Path, command.Args...)
	cmd.Env = append(os.Environ(), command.Env...)
	cmd.Dir = command.Dir
	cmd.Stdout = command.Stdout
	cmd.Stderr = command.Stderr
	newGroup(cmd)
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	child := &Child{
		PID:  cmd.Process.Pid,
		PGID: groupOf(cmd.Process.Pid),
		Name: command.Name,
		cmd:  cmd,
		done: make(chan struct{}),
	}
	if child.Name == "" {
		child.Name = command.Path
	}
	go func() {
		child.err = cmd.Wait()
		close(child.done)
	}()
	return child, nil
}

// Done is closed once the process has exited.
func (c *Child) Done() <-chan struct{} { return c.done }

// Err is the exit error, nil while the process runs.
func (c *Child) Err() error {
	if c.Running() {
		return nil
	}
	return c.err
}

func (c *Child) Running() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Stop asks the group to exit and kills it when ctx ends first. A group that
// had to be killed yields ErrKilled.
func (c *Child) Stop(ctx context.Context) error {
	if !c.Running() {
		return nil
	}
	if err := c.terminate(); err != nil {
		return err
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
	}
	if err := c.Kill(); err != nil {
		return err
	}
	return ErrKilled
}

// Kill ends the group at once and waits for the leader to be reaped.
func (c *Child) Kill() error {
	if !c.Running() {
		return nil
	}
	if err := c.kill(); err != nil {
		return err
	}
	<-c.done
	return nil
}
