// ABOUTME: Windows re-exec for !restart: starts a detached copy and lets this one exit
// ABOUTME: Windows has no exec(2), so the new process gets a new pid

//go:build windows

package main

import (
	"fmt"
	"os"
	"os/exec"
)

// reexec starts a fresh copy of this binary with the same arguments.
func reexec() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating executable: %w", err)
	}
	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	cmd.Env = os.Environ()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting new process: %w", err)
	}
	return cmd.Process.Release()
}
