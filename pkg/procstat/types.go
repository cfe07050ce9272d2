package procstat

import (
	"cmp"
	"slices"
	"time"

	"github.com/opd-ai/go-procstat/internal/config"
	"github.com/opd-ai/go-procstat/internal/monitor"
)

// Metric types returned by a Monitor.
type (
	// Reading is a value that may not have been readable.
	Reading[T any] = monitor.Reading[T]
	// CPUSample holds the ten cumulative jiffy buckets of a cpu line.
	CPUSample = monitor.CPUSample
	// MemInfo holds the /proc/meminfo figures, in kB.
	MemInfo = monitor.MemInfo
	// ProcessRecord describes one process.
	ProcessRecord = monitor.ProcessRecord
	// SystemSnapshot holds host-wide figures.
	SystemSnapshot = monitor.SystemSnapshot
	// Paths locates the procfs inputs relative to the source root.
	Paths = monitor.Paths
)

// SortKey selects the order of a process list.
type SortKey = config.SortKey

// Process list orderings.
const (
	SortByPID    = config.SortByPID
	SortByCPU    = config.SortByCPU
	SortByRAM    = config.SortByRAM
	SortByUptime = config.SortByUptime
)

// Snapshot is one consistent pass over the source.
type Snapshot struct {
	Time      time.Time       `json:"time"`
	Source    string          `json:"source"`
	System    SystemSnapshot  `json:"system"`
	Processes []ProcessRecord `json:"processes"`
}

// Settings are the presentation and pacing values from a configuration file.
// They do not change how metrics are read.
type Settings struct {
	Interval  time.Duration
	Count     int
	SortBy    SortKey
	Top       int
	JSON      bool
	LogLevel  string
	LogFormat string
}

func settingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Interval:  cfg.Sampling.Interval,
		Count:     cfg.Sampling.Count,
		SortBy:    cfg.Output.SortBy,
		Top:       cfg.Output.Top,
		JSON:      cfg.Output.Format == config.FormatJSON,
		LogLevel:  cfg.Log.Level,
		LogFormat: cfg.Log.Format,
	}
}

// SortProcesses orders records in place. CPU, RAM and uptime sort
// descending; ties and SortByPID sort by ascending PID. Processes whose CPU
// utilization is unavailable sort after those with one.
func SortProcesses(records []ProcessRecord, by SortKey) {
	slices.SortStableFunc(records, func(a, b ProcessRecord) int {
		var c int
		switch by {
		case SortByCPU:
			c = compareUtilization(a.CPUUtilization(), b.CPUUtilization())
		case SortByRAM:
			c = cmp.Compare(b.RAMMB, a.RAMMB)
		case SortByUptime:
			c = cmp.Compare(b.UptimeSeconds, a.UptimeSeconds)
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.PID, b.PID)
	})
}

func compareUtilization(a, b Reading[float64]) int {
	switch {
	case a.Valid && b.Valid:
		return cmp.Compare(b.Value, a.Value)
	case a.Valid:
		return -1
	case b.Valid:
		return 1
	}
	return 0
}

// Top returns the first n records, or all of them when n <= 0.
func Top(records []ProcessRecord, n int) []ProcessRecord {
	if n <= 0 || n >= len(records) {
		return records
	}
	return records[:n]
}

// Utilization returns the busy fraction of CPU time between two samples
// taken by the caller.
func Utilization(prev, cur CPUSample) Reading[float64] {
	return monitor.Utilization(prev, cur)
}
