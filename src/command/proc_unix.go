//go:build !windows
// +build !windows

package command

import (
	"os"
	"os/exec"
	"syscall"
)

// Processes run in their own group so that signals reach the children of
// launcher scripts too.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

func interruptProcess(p *os.Process) error {
	if err := syscall.Kill(-p.Pid, syscall.SIGINT); err != nil {
		return p.Signal(os.Interrupt)
	}
	return nil
}

func killProcess(p *os.Process) error {
	if err := syscall.Kill(-p.Pid, syscall.SIGKILL); err != nil {
		return p.Kill()
	}
	return nil
}

// KillPID kills a process recorded by a tool outside of this package, such as
// a pid file written by a launcher script.
func KillPID(pid int) error {
	return syscall.Kill(pid, syscall.SIGKILL)
}
