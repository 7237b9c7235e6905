// ABOUTME: Unix re-exec for !restart: replaces the process image in place
// ABOUTME: Keeps the pid, so a supervising service manager sees no exit

//go:build unix

package main

import (
	"fmt"
	"os"
	"syscall"
)

// reexec replaces the current process with a fresh copy of itself.
func reexec() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating executable: %w", err)
	}
	return syscall.Exec(exe, os.Args, os.Environ())
}
