package monitor

import (
	"io/fs"
	"os"
	"path"
	"strconv"

	"github.com/go-logr/logr"
)

// DefaultClockTicks is USER_HZ on every Linux architecture.
const DefaultClockTicks = 100

// Paths locates the input files relative to the root of the Reader's fs.FS.
type Paths struct {
	// Proc is the procfs mount point, e.g. "proc".
	Proc string
	// OSRelease is the os-release file, e.g. "etc/os-release".
	OSRelease string
	// Passwd is the user database, e.g. "etc/passwd".
	Passwd string
}

// DefaultPaths returns the standard Linux layout relative to "/".
func DefaultPaths() Paths {
	return Paths{
		Proc:      "proc",
		OSRelease: "etc/os-release",
		Passwd:    "etc/passwd",
	}
}

// Reader answers metric queries against a procfs tree. It holds no mutable
// state, so a single Reader may be shared between goroutines.
type Reader struct {
	fsys       fs.FS
	paths      Paths
	clockTicks int64
	log        logr.Logger
}

// Option configures a Reader.
type Option func(*Reader)

// WithPaths overrides the input file locations. Empty fields keep their
// defaults.
func WithPaths(p Paths) Option {
	return func(r *Reader) {
		if p.Proc != "" {
			r.paths.Proc = p.Proc
		}
		if p.OSRelease != "" {
			r.paths.OSRelease = p.OSRelease
		}
		if p.Passwd != "" {
			r.paths.Passwd = p.Passwd
		}
	}
}

// WithClockTicks sets the clock tick rate used to convert jiffies to seconds.
// Non-positive values are ignored.
func WithClockTicks(hz int64) Option {
	return func(r *Reader) {
		if hz > 0 {
			r.clockTicks = hz
		}
	}
}

// WithLogger sets the logger that receives degraded-read diagnostics.
func WithLogger(log logr.Logger) Option {
	return func(r *Reader) {
		r.log = log
	}
}

// New creates a Reader over fsys. Use os.DirFS("/") for the local host.
func New(fsys fs.FS, opts ...Option) *Reader {
	r := &Reader{
		fsys:       fsys,
		paths:      DefaultPaths(),
		clockTicks: ClockTicks(),
		log:        logr.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Paths returns the file locations the Reader uses.
func (r *Reader) Paths() Paths {
	return r.paths
}

// ClockTicks reports the tick rate the Reader converts jiffies with.
func (r *Reader) ClockTicks() int64 {
	return r.clockTicks
}

// ClockTicks returns the kernel clock tick rate. The CLK_TCK environment
// variable takes precedence so tests and unusual kernels can override it.
func ClockTicks() int64 {
	if v, err := strconv.ParseInt(os.Getenv("CLK_TCK"), 10, 64); err == nil && v > 0 {
		return v
	}
	return DefaultClockTicks
}

func (r *Reader) procPath(elem ...string) string {
	return path.Join(append([]string{r.paths.Proc}, elem...)...)
}

func (r *Reader) pidPath(pid int, name string) string {
	return r.procPath(strconv.Itoa(pid), name)
}
