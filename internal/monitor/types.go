// Package monitor extracts system and per-process metrics from the Linux
// /proc filesystem. Every accessor re-reads its source file at call time and
// reports failure through Reading rather than an error, so a process that
// exits mid-scan or a missing file degrades a single metric instead of the
// whole snapshot.
package monitor

import "fmt"

// Reading is the result of a single best-effort read. Valid is false when the
// underlying file could not be opened, the key was missing, or the value did
// not parse; Value is then the zero value of T.
type Reading[T any] struct {
	Value T    `json:"value"`
	Valid bool `json:"valid"`
}

// Available wraps a successfully read value.
func Available[T any](v T) Reading[T] {
	return Reading[T]{Value: v, Valid: true}
}

// Unavailable returns an invalid Reading holding the zero value of T.
func Unavailable[T any]() Reading[T] {
	return Reading[T]{}
}

// Or returns the value when the reading is valid and def otherwise.
func (r Reading[T]) Or(def T) T {
	if r.Valid {
		return r.Value
	}
	return def
}

// String renders the value, or "n/a" for an invalid reading.
func (r Reading[T]) String() string {
	if !r.Valid {
		return "n/a"
	}
	return fmt.Sprint(r.Value)
}

// CPU time bucket indices in /proc/stat order.
const (
	CPUUser = iota
	CPUNice
	CPUSystem
	CPUIdle
	CPUIOWait
	CPUIRQ
	CPUSoftIRQ
	CPUSteal
	CPUGuest
	CPUGuestNice

	cpuBuckets
)

// CPUSample holds the cumulative jiffy counters of one cpu line of
// /proc/stat. The counters only grow between boots.
type CPUSample [cpuBuckets]uint64

// ActiveJiffies returns user+nice+system+irq+softirq+steal.
func (s CPUSample) ActiveJiffies() uint64 {
	return s[CPUUser] + s[CPUNice] + s[CPUSystem] + s[CPUIRQ] + s[CPUSoftIRQ] + s[CPUSteal]
}

// IdleJiffies returns idle+iowait.
func (s CPUSample) IdleJiffies() uint64 {
	return s[CPUIdle] + s[CPUIOWait]
}

// TotalJiffies returns ActiveJiffies+IdleJiffies. Guest time is already
// accounted in user/nice by the kernel and is excluded from both sums.
func (s CPUSample) TotalJiffies() uint64 {
	return s.ActiveJiffies() + s.IdleJiffies()
}

// MemInfo holds the /proc/meminfo fields used by the memory reader, in kB.
type MemInfo struct {
	TotalKB     uint64
	FreeKB      uint64
	AvailableKB uint64
	BuffersKB   uint64
	CachedKB    uint64
}

// ProcessRecord is a best-effort view of one process. Fields that could not
// be read are left at their zero value.
type ProcessRecord struct {
	PID     int    `json:"pid"`
	Command string `json:"command"`
	// User is the owning user name, or the numeric UID when it has no
	// passwd entry.
	User string `json:"user"`
	// RAMMB is the VmSize of the process in megabytes.
	RAMMB int64 `json:"ram_mb"`
	// UptimeSeconds is the process start time, in seconds since boot.
	UptimeSeconds int64 `json:"uptime_seconds"`
	// CPUSeconds is utime+stime+cutime+cstime in seconds.
	CPUSeconds float64 `json:"cpu_seconds"`
	// ElapsedSeconds is system uptime minus UptimeSeconds.
	ElapsedSeconds int64 `json:"elapsed_seconds"`
}

// CPUUtilization returns CPUSeconds/ElapsedSeconds, or an invalid reading
// for a process with no elapsed time.
func (p ProcessRecord) CPUUtilization() Reading[float64] {
	if p.ElapsedSeconds <= 0 {
		return Unavailable[float64]()
	}
	return Available(p.CPUSeconds / float64(p.ElapsedSeconds))
}

// SystemSnapshot groups the system-wide figures a display refreshes together.
type SystemSnapshot struct {
	OSName            string             `json:"os_name"`
	Kernel            string             `json:"kernel"`
	MemoryUtilization Reading[float64]   `json:"memory_utilization"`
	UptimeSeconds     int64              `json:"uptime_seconds"`
	TotalProcesses    int                `json:"total_processes"`
	RunningProcesses  int                `json:"running_processes"`
	CPU               Reading[CPUSample] `json:"cpu"`
}
