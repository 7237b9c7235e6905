// ABOUTME: Windows process attributes: the child gets its own process group
// ABOUTME: Keeps console Ctrl+C aimed at the operator from reaching the agent

//go:build windows

package supervisor

import (
	"os/exec"
	"syscall"
)

func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}
