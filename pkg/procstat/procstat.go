package procstat

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/opd-ai/go-procstat/internal/config"
	"github.com/opd-ai/go-procstat/internal/monitor"
	"github.com/opd-ai/go-procstat/internal/platform"
)

// ErrClosed is returned by methods called after Close.
var ErrClosed = errors.New("procstat: monitor closed")

// Monitor reads metrics from one source. Create it with New or
// NewFromConfig and release it with Close.
type Monitor struct {
	ctx     context.Context
	log     logr.Logger
	metrics *Metrics

	mu         sync.RWMutex
	opts       Options
	st         *state
	configPath string
	settings   Settings
	watcher    *configWatcher
	closed     bool
}

// state is everything a reload swaps at once. inflight counts calls still
// reading through it; its source is closed only after they finish.
type state struct {
	reader   *monitor.Reader
	source   platform.Source // nil when Options.FS was supplied
	name     string
	workers  int
	inflight sync.WaitGroup
}

// New opens the source described by opts. ctx bounds the lifetime of a remote
// connection, so it should outlive the Monitor.
func New(ctx context.Context, opts Options) (*Monitor, error) {
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	m := &Monitor{
		ctx:     ctx,
		log:     opts.Logger,
		metrics: opts.Metrics,
		opts:    opts,
	}
	st, err := m.open(opts)
	if err != nil {
		return nil, err
	}
	m.st = st
	return m, nil
}

// NewFromConfig loads the Lua configuration at path and opens the source it
// names. FS, Logger, Metrics and WatchDebounce are taken from opts; every
// other field comes from the file.
func NewFromConfig(ctx context.Context, path string, opts Options) (*Monitor, error) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	m, err := New(ctx, opts.withConfig(cfg))
	if err != nil {
		return nil, err
	}
	m.configPath = path
	m.settings = settingsFromConfig(cfg)
	return m, nil
}

func (m *Monitor) open(opts Options) (*state, error) {
	var (
		fsys fs.FS
		src  platform.Source
		name string
	)
	switch {
	case opts.FS != nil:
		fsys, name = opts.FS, "fs"
	case opts.Remote.Enabled():
		rc, err := remoteConfig(opts.Remote)
		if err != nil {
			return nil, err
		}
		src, err = platform.NewRemote(m.ctx, rc, m.log)
		if err != nil {
			return nil, fmt.Errorf("open remote source: %w", err)
		}
		fsys, name = src, src.Name()
	default:
		src = platform.NewLocal(opts.Root)
		fsys, name = src, src.Name()
	}

	readerOpts := []monitor.Option{
		monitor.WithPaths(opts.Paths),
		monitor.WithLogger(m.log.WithValues("source", name)),
	}
	if opts.ClockTicks > 0 {
		readerOpts = append(readerOpts, monitor.WithClockTicks(opts.ClockTicks))
	}

	return &state{
		reader:  monitor.New(fsys, readerOpts...),
		source:  src,
		name:    name,
		workers: opts.workers(),
	}, nil
}

func remoteConfig(r RemoteOptions) (platform.RemoteConfig, error) {
	user, host, port, err := platform.ParseTarget(r.Target)
	if err != nil {
		return platform.RemoteConfig{}, err
	}
	rc := platform.RemoteConfig{
		Host:                  host,
		Port:                  port,
		User:                  user,
		KnownHostsPath:        r.KnownHostsPath,
		InsecureIgnoreHostKey: r.InsecureIgnoreHostKey,
		CommandTimeout:        r.CommandTimeout,
	}
	switch {
	case r.KeyFile != "":
		rc.AuthMethod = platform.KeyAuth{PrivateKeyPath: r.KeyFile, Passphrase: r.Passphrase}
	case r.Password != "":
		rc.AuthMethod = platform.PasswordAuth{Password: r.Password}
	default:
		rc.AuthMethod = platform.AgentAuth{}
	}
	return rc, nil
}

// acquire returns the active state and registers the caller as a reader of
// it. The caller must call release when done.
func (m *Monitor) acquire() (st *state, release func(), err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, nil, ErrClosed
	}
	st = m.st
	st.inflight.Add(1)
	return st, st.inflight.Done, nil
}

// Source names the host being read, e.g. "local:/" or "ssh:ops@db1:22".
func (m *Monitor) Source() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.name
}

// Settings returns the presentation settings of the loaded configuration.
// Monitors created with New return the zero value.
func (m *Monitor) Settings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// Metrics returns the operational counters for this Monitor.
func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

// System reads the host-wide figures.
func (m *Monitor) System() (SystemSnapshot, error) {
	st, release, err := m.acquire()
	if err != nil {
		return SystemSnapshot{}, err
	}
	defer release()
	return st.reader.System(), nil
}

// MemInfo reads the full /proc/meminfo figures.
func (m *Monitor) MemInfo() (Reading[MemInfo], error) {
	st, release, err := m.acquire()
	if err != nil {
		return Reading[MemInfo]{}, err
	}
	defer release()
	return st.reader.MemInfo(), nil
}

// CoreCPUs reads the per-core cpu lines of /proc/stat.
func (m *Monitor) CoreCPUs() ([]CPUSample, error) {
	st, release, err := m.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return st.reader.CoreCPUs(), nil
}

// Process reads one process. A process that has exited yields a record
// holding only its PID.
func (m *Monitor) Process(pid int) (ProcessRecord, error) {
	st, release, err := m.acquire()
	if err != nil {
		return ProcessRecord{}, err
	}
	defer release()
	return st.reader.Process(pid), nil
}

// Processes reads every live process, sorted by PID. Up to Options.Workers
// processes are read concurrently. The only error is ctx's.
func (m *Monitor) Processes(ctx context.Context) ([]ProcessRecord, error) {
	st, release, err := m.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return m.processes(ctx, st)
}

func (m *Monitor) processes(ctx context.Context, st *state) ([]ProcessRecord, error) {
	pids := st.reader.Pids()
	slices.Sort(pids)
	users := st.reader.Users()
	records := make([]ProcessRecord, len(pids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(st.workers)
	for i, pid := range pids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records[i] = st.reader.ProcessWithUsers(pid, users)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vanished := 0
	for _, rec := range records {
		if rec == (ProcessRecord{PID: rec.PID}) {
			vanished++
		}
	}
	m.metrics.addProcesses(len(records), vanished)
	if vanished > 0 {
		m.log.V(1).Info("processes exited during enumeration", "count", vanished)
	}
	return records, nil
}

// Snapshot reads the system figures and every process in one pass.
func (m *Monitor) Snapshot(ctx context.Context) (Snapshot, error) {
	st, release, err := m.acquire()
	if err != nil {
		return Snapshot{}, err
	}
	defer release()

	start := time.Now()
	sys := st.reader.System()
	procs, err := m.processes(ctx, st)
	if err != nil {
		m.metrics.incSnapshotErrors()
		return Snapshot{}, err
	}
	m.metrics.recordSnapshot(time.Since(start))

	return Snapshot{
		Time:      start,
		Source:    st.name,
		System:    sys,
		Processes: procs,
	}, nil
}

// ReloadConfig re-reads the configuration file and reopens the source with
// the new settings. On error the previous configuration stays active. The
// previous source is closed once calls already reading from it return.
func (m *Monitor) ReloadConfig() error {
	m.mu.RLock()
	path, opts, closed := m.configPath, m.opts, m.closed
	m.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if path == "" {
		return errors.New("procstat: monitor has no configuration file")
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		m.metrics.incConfigReloadErrors()
		return fmt.Errorf("reload config: %w", err)
	}
	opts = opts.withConfig(cfg)
	st, err := m.open(opts)
	if err != nil {
		m.metrics.incConfigReloadErrors()
		return fmt.Errorf("reload config: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		closeSource(st)
		return ErrClosed
	}
	old := m.st
	m.st, m.opts, m.settings = st, opts, settingsFromConfig(cfg)
	m.mu.Unlock()

	old.inflight.Wait()
	closeSource(old)
	m.metrics.incConfigReloads()
	m.log.Info("configuration reloaded", "path", path, "source", st.name)
	return nil
}

// Close stops any config watcher, waits for in-flight reads and closes the
// source. It is safe to call more than once.
func (m *Monitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	w := m.watcher
	m.watcher = nil
	st := m.st
	m.mu.Unlock()

	if w != nil {
		w.Stop()
	}
	st.inflight.Wait()
	return closeSource(st)
}

func closeSource(st *state) error {
	if st == nil || st.source == nil {
		return nil
	}
	return st.source.Close()
}
