//go:build integration

// Package integration reads the live /proc of the machine running the tests.
// Run with: go test -tags integration ./test/integration/
package integration

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-procstat/pkg/procstat"
)

func newLocal(t *testing.T) *procstat.Monitor {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("requires a Linux /proc")
	}
	m, err := procstat.New(context.Background(), procstat.Options{Logger: testr.New(t), Workers: 8})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestLocalSystem(t *testing.T) {
	m := newLocal(t)

	sys, err := m.System()
	require.NoError(t, err)

	assert.NotEmpty(t, sys.Kernel)
	assert.Positive(t, sys.UptimeSeconds)
	assert.Positive(t, sys.TotalProcesses)
	assert.Positive(t, sys.RunningProcesses, "the test itself is running")
	require.True(t, sys.MemoryUtilization.Valid)
	assert.Greater(t, sys.MemoryUtilization.Value, 0.0)
	assert.LessOrEqual(t, sys.MemoryUtilization.Value, 1.0)
	require.True(t, sys.CPU.Valid)
	assert.Positive(t, sys.CPU.Value.TotalJiffies())

	cores, err := m.CoreCPUs()
	require.NoError(t, err)
	assert.NotEmpty(t, cores)
}

func TestLocalSelf(t *testing.T) {
	m := newLocal(t)

	self, err := m.Process(os.Getpid())
	require.NoError(t, err)

	exe, err := os.Executable()
	require.NoError(t, err)
	assert.Contains(t, self.Command, filepath.Base(exe))
	assert.Positive(t, self.RAMMB)
	assert.NotEmpty(t, self.User)
	assert.GreaterOrEqual(t, self.ElapsedSeconds, int64(0))
}

func TestLocalSnapshot(t *testing.T) {
	m := newLocal(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snap, err := m.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "local:/", snap.Source)

	var found bool
	for i, p := range snap.Processes {
		if i > 0 {
			assert.Less(t, snap.Processes[i-1].PID, p.PID)
		}
		if p.PID == os.Getpid() {
			found = true
		}
	}
	assert.True(t, found, "own process missing from snapshot")
	assert.Equal(t, int64(1), m.Metrics().Snapshot().Snapshots)
}

func TestLocalUtilization(t *testing.T) {
	m := newLocal(t)

	first, err := m.System()
	require.NoError(t, err)
	time.Sleep(200 * time.Millisecond)
	second, err := m.System()
	require.NoError(t, err)

	u := procstat.Utilization(first.CPU.Value, second.CPU.Value)
	if u.Valid {
		assert.GreaterOrEqual(t, u.Value, 0.0)
		assert.LessOrEqual(t, u.Value, 1.0)
	}
}
