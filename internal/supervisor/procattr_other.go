// ABOUTME: Process attributes for unix systems other than Linux
// ABOUTME: No parent-death signal outside Linux, only a new process group

//go:build unix && !linux

package supervisor

import (
	"os/exec"
	"syscall"
)

// setProcAttr puts the child in its own process group so the whole tree can
// be signalled on stop.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
