// ABOUTME: Linux process attributes: own process group plus parent-death signal
// ABOUTME: Pdeathsig keeps agents from outliving a crashed operator

//go:build linux

package supervisor

import (
	"os/exec"
	"syscall"
)

// setProcAttr puts the child in its own process group and asks the kernel to
// SIGTERM it if this process dies first.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}
