package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigEnabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{CPUProfilePath: "cpu.prof"}.Enabled())
	assert.True(t, Config{MemProfilePath: "mem.prof"}.Enabled())
}

func TestProfilerStartStop(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		CPUProfilePath: filepath.Join(dir, "cpu.prof"),
		MemProfilePath: filepath.Join(dir, "mem.prof"),
	}
	p := New(cfg)

	require.NoError(t, p.Start())
	assert.True(t, p.Running())
	assert.Error(t, p.Start(), "second Start must fail")

	require.NoError(t, p.Stop())
	assert.False(t, p.Running())

	for _, path := range []string{cfg.CPUProfilePath, cfg.MemProfilePath} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size(), path)
	}
}

func TestProfilerStopWithoutStart(t *testing.T) {
	assert.Error(t, New(Config{}).Stop())
}

func TestProfilerNoOutputs(t *testing.T) {
	p := New(Config{})
	require.NoError(t, p.Start())
	require.NoError(t, p.Stop())
}

func TestProfilerBadPaths(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing", "out.prof")

	assert.Error(t, New(Config{CPUProfilePath: missing}).Start())

	p := New(Config{MemProfilePath: missing})
	require.NoError(t, p.Start())
	assert.Error(t, p.Stop())
	assert.False(t, p.Running())
}

func TestWriteHeapProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.prof")
	require.NoError(t, WriteHeapProfile(path))
	assert.FileExists(t, path)
}
