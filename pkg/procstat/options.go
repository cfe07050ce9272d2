package procstat

import (
	"io/fs"
	"time"

	"github.com/go-logr/logr"

	"github.com/opd-ai/go-procstat/internal/config"
)

// DefaultWatchDebounce is the default debounce interval for config file events.
const DefaultWatchDebounce = 500 * time.Millisecond

// RemoteOptions holds SSH settings for a remote source.
type RemoteOptions = config.RemoteConfig

// Options configures a Monitor.
type Options struct {
	// FS is the file system to read, rooted at the host's "/". When set,
	// Root and Remote are ignored and Close leaves FS alone.
	FS fs.FS

	// Root is the local directory standing in for "/". Empty means "/".
	Root string

	// Remote reads a host over SSH when Remote.Target is set.
	Remote RemoteOptions

	// Paths overrides procfs locations. Empty fields keep their defaults.
	Paths Paths

	// ClockTicks overrides the kernel tick rate. Zero detects it from
	// CLK_TCK, falling back to 100.
	ClockTicks int64

	// Workers bounds concurrent per-process reads. Zero or less reads one
	// process at a time.
	Workers int

	// Logger receives diagnostics about degraded reads. The zero value
	// discards them.
	Logger logr.Logger

	// Metrics collects operational counters. Nil creates a private set.
	Metrics *Metrics

	// WatchDebounce coalesces config file events. Zero means
	// DefaultWatchDebounce.
	WatchDebounce time.Duration
}

// withConfig returns o with every source and sampling field replaced by the
// values in cfg. FS, Logger, Metrics and WatchDebounce are kept.
func (o Options) withConfig(cfg *config.Config) Options {
	o.Root = cfg.Source.Root
	o.Remote = cfg.Source.Remote
	o.Paths = Paths{
		Proc:      cfg.Paths.Proc,
		OSRelease: cfg.Paths.OSRelease,
		Passwd:    cfg.Paths.Passwd,
	}
	o.ClockTicks = cfg.Sampling.ClockTicks
	o.Workers = cfg.Sampling.Workers
	return o
}

func (o Options) workers() int {
	if o.Workers < 1 {
		return 1
	}
	return o.Workers
}
