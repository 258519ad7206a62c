// Package supervisor implements C6: run a child process and respawn it
// whenever it exits, until asked to stop, then terminate the current
// child with a grace period. Modeled on the teacher's cmd/run signal
// handling (SIGTERM, then wait, with a forceful follow-up) and its
// StartedMachine Stop/Wait/Cleanup lifecycle.
package supervisor

import (
	"context"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
)

// DefaultGracePeriod is how long the supervisor waits for a SIGTERM'd
// child to exit before escalating to SIGKILL.
const DefaultGracePeriod = 5 * time.Second

// Supervisor runs and respawns one command.
type Supervisor struct {
	GracePeriod time.Duration
	Logger      hclog.Logger
}

// New returns a Supervisor with the default grace period.
func New(logger hclog.Logger) *Supervisor {
	return &Supervisor{GracePeriod: DefaultGracePeriod, Logger: logger}
}

// RunAndRespawn spawns argv[0] with argv[1:], in dir, with env, and
// keeps restarting it every time it exits. When stop is closed, it
// stops respawning, terminates the current child, and returns once the
// child has exited (spec §4.6). It never returns until stop fires or
// the child cannot be spawned at all.
func (s *Supervisor) RunAndRespawn(ctx context.Context, name string, argv []string, env []string, dir string, stop <-chan struct{}) error {
	for {
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Dir = dir
		cmd.Env = env
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Start(); err != nil {
			s.Logger.Error("failed starting supervised process", "name", name, "reason", err)
			return err
		}
		s.Logger.Info("supervised process started", "name", name, "pid", cmd.Process.Pid)

		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()

		select {
		case exitErr := <-done:
			s.Logger.Info("supervised process exited", "name", name, "reason", exitErr)
			select {
			case <-stop:
				return nil
			default:
				continue
			}
		case <-stop:
			s.terminate(cmd, done)
			return nil
		}
	}
}

// terminate sends SIGTERM and waits up to GracePeriod for the child to
// exit, escalating to SIGKILL if it hasn't.
func (s *Supervisor) terminate(cmd *exec.Cmd, done chan error) {
	s.Logger.Info("stopping supervised process", "pid", cmd.Process.Pid)
	_ = cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-done:
		return
	case <-time.After(s.GracePeriod):
		s.Logger.Warn("supervised process did not exit in time, killing", "pid", cmd.Process.Pid)
		_ = cmd.Process.Kill()
		<-done
	}
}
