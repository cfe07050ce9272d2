package config

import (
	"time"
)

// Default values for configuration options.
const (
	// DefaultRoot is the local file system root.
	DefaultRoot = "/"
	// DefaultWorkers reads processes one at a time.
	DefaultWorkers = 1
	// DefaultCommandTimeout bounds a single remote read.
	DefaultCommandTimeout = 5 * time.Second
	// DefaultLogLevel is the minimum level the command logs.
	DefaultLogLevel = "info"
	// DefaultLogFormat is the human-readable console encoder.
	DefaultLogFormat = "console"
)

// DefaultConfig returns a Config that takes one local snapshot and prints
// it as a table.
func DefaultConfig() Config {
	return Config{
		Source: SourceConfig{
			Root: DefaultRoot,
			Remote: RemoteConfig{
				CommandTimeout: DefaultCommandTimeout,
			},
		},
		Paths: PathConfig{
			Proc:      "proc",
			OSRelease: "etc/os-release",
			Passwd:    "etc/passwd",
		},
		Sampling: SamplingConfig{
			Workers: DefaultWorkers,
		},
		Output: OutputConfig{
			Format: FormatTable,
			SortBy: SortByPID,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
