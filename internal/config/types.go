// Package config provides configuration parsing for go-procstat.
//
// Configuration files are Lua scripts that assign a procstat.config table:
//
//	procstat.config = {
//	    remote = "monitor@db1.example.com",
//	    ssh_key = "${HOME}/.ssh/id_ed25519",
//	    update_interval = 2,
//	    workers = 8,
//	    sort_by = "cpu",
//	    top = 20,
//	}
//
// Every key is optional; missing keys keep the values from DefaultConfig.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete go-procstat configuration.
type Config struct {
	Source   SourceConfig
	Paths    PathConfig
	Sampling SamplingConfig
	Output   OutputConfig
	Log      LogConfig
}

// SourceConfig selects the host whose /proc is read.
type SourceConfig struct {
	// Root is the local directory standing in for "/". Ignored when Remote
	// is set.
	Root string
	// Remote reads over SSH when Remote.Target is set.
	Remote RemoteConfig
}

// RemoteConfig holds SSH settings for a remote source.
type RemoteConfig struct {
	// Target is "user@host[:port]".
	Target                string
	KeyFile               string
	Passphrase            string
	Password              string
	UseAgent              bool
	KnownHostsPath        string
	InsecureIgnoreHostKey bool
	CommandTimeout        time.Duration
}

// Enabled reports whether a remote target is configured.
func (r RemoteConfig) Enabled() bool {
	return r.Target != ""
}

// PathConfig overrides the procfs locations, relative to the source root.
type PathConfig struct {
	Proc      string
	OSRelease string
	Passwd    string
}

// SamplingConfig controls how often and how wide the reads go.
type SamplingConfig struct {
	// Interval between refreshes. Zero takes a single snapshot.
	Interval time.Duration
	// Count limits the number of refreshes; 0 means until interrupted.
	Count int
	// Workers bounds concurrent per-process reads.
	Workers int
	// ClockTicks overrides the kernel tick rate; 0 detects it.
	ClockTicks int64
}

// OutputConfig controls how snapshots are printed.
type OutputConfig struct {
	Format OutputFormat
	SortBy SortKey
	// Top limits the process table to the first N rows; 0 prints all.
	Top int
}

// LogConfig controls the logger built by the command.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string
	// Format is "console" or "json".
	Format string
}

// OutputFormat selects the snapshot encoding.
type OutputFormat int

const (
	// FormatTable prints an aligned text table.
	FormatTable OutputFormat = iota
	// FormatJSON prints one JSON document per snapshot.
	FormatJSON
)

var outputFormatNames = map[OutputFormat]string{
	FormatTable: "table",
	FormatJSON:  "json",
}

// String returns the string representation of an OutputFormat.
func (f OutputFormat) String() string {
	if name, ok := outputFormatNames[f]; ok {
		return name
	}
	return "unknown"
}

// ParseOutputFormat parses a string into an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	for f, name := range outputFormatNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return f, nil
		}
	}
	return FormatTable, fmt.Errorf("unknown output format: %q", s)
}

// SortKey selects the process table ordering.
type SortKey int

const (
	// SortByPID orders by ascending process ID.
	SortByPID SortKey = iota
	// SortByCPU orders by descending CPU utilization.
	SortByCPU
	// SortByRAM orders by descending virtual memory size.
	SortByRAM
	// SortByUptime orders by descending process uptime.
	SortByUptime
)

var sortKeyNames = map[SortKey]string{
	SortByPID:    "pid",
	SortByCPU:    "cpu",
	SortByRAM:    "ram",
	SortByUptime: "uptime",
}

// String returns the string representation of a SortKey.
func (k SortKey) String() string {
	if name, ok := sortKeyNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseSortKey parses a string into a SortKey.
func ParseSortKey(s string) (SortKey, error) {
	for k, name := range sortKeyNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return k, nil
		}
	}
	return SortByPID, fmt.Errorf("unknown sort key: %q", s)
}
