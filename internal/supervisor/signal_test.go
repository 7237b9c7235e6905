// ABOUTME: Tests for process-group signalling on unix systems
// ABOUTME: A group kill must also take down children the agent spawned

//go:build unix

package supervisor

import (
	"io"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalGroup_NilProcess(t *testing.T) {
	assert.NoError(t, signalGroup(nil, syscall.SIGTERM))
}

func TestSignalGroup_KillsWholeGroup(t *testing.T) {
	// The background sleep inherits stdout, so EOF only arrives once the
	// grandchild is gone too.
	cmd := exec.Command("/bin/sh", "-c", "sleep 30 & wait")
	setProcAttr(cmd)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	drained := make(chan struct{})
	go func() {
		_, _ = io.Copy(io.Discard, stdout)
		close(drained)
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, signalGroup(cmd.Process, syscall.SIGKILL))

	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		t.Fatal("a process in the group survived SIGKILL")
	}

	var exitErr *exec.ExitError
	require.ErrorAs(t, cmd.Wait(), &exitErr)
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	require.True(t, ok)
	assert.Equal(t, syscall.SIGKILL, status.Signal())
}
