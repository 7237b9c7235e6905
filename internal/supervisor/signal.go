// ABOUTME: Process-group signalling for stopping an agent and its children
// ABOUTME: A negative pid addresses the whole group created by setProcAttr

//go:build unix

package supervisor

import (
	"os"
	"syscall"
)

// signalGroup delivers sig to every process in p's group.
func signalGroup(p *os.Process, sig syscall.Signal) error {
	if p == nil {
		return nil
	}
	return syscall.Kill(-p.Pid, sig)
}
