package monitor

import (
	"io/fs"
	"slices"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePasswd = `root:x:0:0:root:/root:/bin/bash
# comment line
daemon:x:1:1:daemon:/usr/sbin:/usr/sbin/nologin
alice:x:1000:1000::/home/alice:/bin/bash
`

func sampleStatus(uid, vmSizeKB string) *fstest.MapFile {
	return file("Name:\tbash\nState:\tS (sleeping)\nUid:\t" + uid + "\t" + uid + "\t" + uid + "\t" + uid +
		"\nGid:\t1000\t1000\t1000\t1000\nVmPeak:\t   99999 kB\nVmSize:\t  " + vmSizeKB + " kB\nVmRSS:\t    5120 kB\n")
}

func processTree() fstest.MapFS {
	return fstest.MapFS{
		"etc/passwd":       file(samplePasswd),
		"proc/uptime":      file("5000.50 9000.00\n"),
		"proc/42/cmdline":  file("/usr/bin/python3\x00-m\x00http.server\x00"),
		"proc/42/status":   sampleStatus("1000", "204800"),
		"proc/42/stat":     file(statLine(42, "python3", 300, 100, 50, 50, 200000)),
		"proc/7/status":    sampleStatus("4242", "1023"),
		"proc/7/stat":      file("7 (short) S 1 7\n"),
		"proc/self/status": sampleStatus("0", "1"),
	}
}

func TestPids(t *testing.T) {
	dir := &fstest.MapFile{Mode: fs.ModeDir | 0o555}
	r := newTestReader(t, fstest.MapFS{
		"proc/1":       dir,
		"proc/12":      dir,
		"proc/abc":     dir,
		"proc/3.5":     dir,
		"proc/42":      dir,
		"proc/.hidden": dir,
		"proc/99":      file("not a directory"),
		"proc/stat":    file(""),
	})

	pids := r.Pids()
	slices.Sort(pids)

	assert.Equal(t, []int{1, 12, 42}, pids)
}

func TestPidsMissingProc(t *testing.T) {
	assert.Empty(t, newTestReader(t, fstest.MapFS{}).Pids())
}

func TestIsDigits(t *testing.T) {
	assert.True(t, isDigits("0"))
	assert.True(t, isDigits("4194304"))
	assert.False(t, isDigits(""))
	assert.False(t, isDigits("-1"))
	assert.False(t, isDigits("1e3"))
	assert.False(t, isDigits("１２"))
}

func TestCommand(t *testing.T) {
	r := newTestReader(t, processTree())

	assert.Equal(t, Available("/usr/bin/python3\x00-m\x00http.server\x00"), r.Command(42))
	assert.False(t, r.Command(7).Valid)
}

func TestCommandLongerThanArgMax(t *testing.T) {
	// Linux accepts argument lists beyond 2 MiB when the stack limit allows.
	arg := strings.Repeat("x", 3<<20)
	cmdline := "/usr/bin/tool\x00" + arg + "\x00"
	r := newTestReader(t, fstest.MapFS{"proc/9/cmdline": file(cmdline)})

	cmd := r.Command(9)
	require.True(t, cmd.Valid)
	assert.Len(t, cmd.Value, len(cmdline))
}

func TestRAM(t *testing.T) {
	r := newTestReader(t, processTree())

	assert.Equal(t, Available(int64(200)), r.RAM(42))
	assert.Equal(t, Available(int64(0)), r.RAM(7))
	assert.False(t, r.RAM(999).Valid)
}

func TestUpTimeOf(t *testing.T) {
	r := newTestReader(t, processTree())

	assert.Equal(t, Available(int64(2000)), r.UpTimeOf(42))
	assert.False(t, r.UpTimeOf(7).Valid, "stat with fewer than 22 fields")
	assert.False(t, r.UpTimeOf(999).Valid)
}

func TestActiveSeconds(t *testing.T) {
	r := newTestReader(t, processTree())

	assert.Equal(t, Available(5.0), r.ActiveSeconds(42))
	assert.False(t, r.ActiveSeconds(7).Valid)
}

func TestActiveSecondsUsesClockTicks(t *testing.T) {
	tree := fstest.MapFS{"proc/5/stat": file(statLine(5, "worker", 1000, 500, 250, 250, 0))}

	for _, hz := range []int64{100, 250, 1000} {
		r := New(tree, WithClockTicks(hz))
		assert.Equal(t, Available(float64(1000+500+250+250)/float64(hz)), r.ActiveSeconds(5))
	}
}

func TestElapsedAndUtilization(t *testing.T) {
	r := newTestReader(t, processTree())

	assert.Equal(t, Available(int64(3000)), r.ElapsedSeconds(42))
	util := r.CPUUtilization(42)
	require.True(t, util.Valid)
	assert.InDelta(t, 5.0/3000.0, util.Value, 1e-12)

	assert.False(t, r.ElapsedSeconds(7).Valid)
	assert.False(t, r.CPUUtilization(7).Valid)
}

func TestElapsedClampsClockSkew(t *testing.T) {
	r := newTestReader(t, fstest.MapFS{
		"proc/uptime": file("10.0 0\n"),
		"proc/3/stat": file(statLine(3, "late", 0, 0, 0, 0, 5000)),
	})

	assert.Equal(t, Available(int64(0)), r.ElapsedSeconds(3))
	assert.False(t, r.CPUUtilization(3).Valid)
}

func TestProcess(t *testing.T) {
	r := newTestReader(t, processTree())

	rec := r.Process(42)
	assert.Equal(t, ProcessRecord{
		PID:            42,
		Command:        "/usr/bin/python3\x00-m\x00http.server\x00",
		User:           "alice",
		RAMMB:          200,
		UptimeSeconds:  2000,
		CPUSeconds:     5,
		ElapsedSeconds: 3000,
	}, rec)
	assert.Equal(t, r.CPUUtilization(42), rec.CPUUtilization())
}

func TestProcessPartial(t *testing.T) {
	r := newTestReader(t, processTree())

	assert.Equal(t, ProcessRecord{PID: 7, User: "4242", RAMMB: 0}, r.Process(7))
	assert.Equal(t, ProcessRecord{PID: 999}, r.Process(999), "process exited before the read")
}

func TestProcesses(t *testing.T) {
	r := newTestReader(t, processTree())

	records := r.Processes()
	slices.SortFunc(records, func(a, b ProcessRecord) int { return a.PID - b.PID })

	require.Len(t, records, 2)
	assert.Equal(t, 7, records[0].PID)
	assert.Equal(t, 42, records[1].PID)
	assert.Equal(t, "alice", records[1].User)
}

func TestProcessRecordCPUUtilization(t *testing.T) {
	assert.False(t, ProcessRecord{CPUSeconds: 3}.CPUUtilization().Valid)
	assert.Equal(t, Available(0.5), ProcessRecord{CPUSeconds: 3, ElapsedSeconds: 6}.CPUUtilization())
}
