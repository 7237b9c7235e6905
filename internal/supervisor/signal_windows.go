// ABOUTME: Windows stop path: there are no signals, so both stop phases kill
// ABOUTME: Only the direct child is terminated; grandchildren may outlive it

//go:build windows

package supervisor

import (
	"errors"
	"os"
	"syscall"
)

// signalGroup terminates p. Windows cannot deliver SIGTERM, so the grace
// period is skipped in practice.
func signalGroup(p *os.Process, _ syscall.Signal) error {
	if p == nil {
		return nil
	}
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
