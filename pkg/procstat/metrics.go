package procstat

import (
	"expvar"
	"sync/atomic"
	"time"
)

// Metrics counts what a Monitor has done. It is safe for concurrent use.
//
// Expose it on /debug/vars with RegisterExpvar:
//
//	m, _ := procstat.New(ctx, procstat.Options{})
//	m.Metrics().RegisterExpvar()
type Metrics struct {
	snapshots          atomic.Int64
	snapshotErrors     atomic.Int64
	processesRead      atomic.Int64
	processesVanished  atomic.Int64
	configReloads      atomic.Int64
	configReloadErrors atomic.Int64

	snapshotLatencyNs    atomic.Int64
	snapshotLatencyCount atomic.Int64
	lastProcessCount     atomic.Int64

	registered atomic.Bool
}

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot struct {
	Snapshots          int64
	SnapshotErrors     int64
	ProcessesRead      int64
	ProcessesVanished  int64
	ConfigReloads      int64
	ConfigReloadErrors int64
	LastProcessCount   int64
	SnapshotLatencyAvg time.Duration
}

// NewMetrics creates a zeroed Metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RegisterExpvar publishes the counters under procstat_* names. expvar names
// are process-global, so only one Metrics per process can be registered;
// later calls on the same Metrics are no-ops.
func (m *Metrics) RegisterExpvar() {
	if m.registered.Swap(true) {
		return
	}

	expvar.Publish("procstat_snapshots_total", expvar.Func(func() any { return m.snapshots.Load() }))
	expvar.Publish("procstat_snapshot_errors_total", expvar.Func(func() any { return m.snapshotErrors.Load() }))
	expvar.Publish("procstat_processes_read_total", expvar.Func(func() any { return m.processesRead.Load() }))
	expvar.Publish("procstat_processes_vanished_total", expvar.Func(func() any { return m.processesVanished.Load() }))
	expvar.Publish("procstat_config_reloads_total", expvar.Func(func() any { return m.configReloads.Load() }))
	expvar.Publish("procstat_config_reload_errors_total", expvar.Func(func() any { return m.configReloadErrors.Load() }))
	expvar.Publish("procstat_processes", expvar.Func(func() any { return m.lastProcessCount.Load() }))
	expvar.Publish("procstat_snapshot_latency_avg_ms", expvar.Func(func() any {
		return float64(m.snapshotLatencyAvg()) / float64(time.Millisecond)
	}))
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Snapshots:          m.snapshots.Load(),
		SnapshotErrors:     m.snapshotErrors.Load(),
		ProcessesRead:      m.processesRead.Load(),
		ProcessesVanished:  m.processesVanished.Load(),
		ConfigReloads:      m.configReloads.Load(),
		ConfigReloadErrors: m.configReloadErrors.Load(),
		LastProcessCount:   m.lastProcessCount.Load(),
		SnapshotLatencyAvg: m.snapshotLatencyAvg(),
	}
}

// Reset zeroes every counter. Expvar registration is kept.
func (m *Metrics) Reset() {
	m.snapshots.Store(0)
	m.snapshotErrors.Store(0)
	m.processesRead.Store(0)
	m.processesVanished.Store(0)
	m.configReloads.Store(0)
	m.configReloadErrors.Store(0)
	m.snapshotLatencyNs.Store(0)
	m.snapshotLatencyCount.Store(0)
	m.lastProcessCount.Store(0)
}

func (m *Metrics) addProcesses(read, vanished int) {
	m.processesRead.Add(int64(read))
	m.processesVanished.Add(int64(vanished))
	m.lastProcessCount.Store(int64(read - vanished))
}

func (m *Metrics) recordSnapshot(d time.Duration) {
	m.snapshots.Add(1)
	m.snapshotLatencyNs.Add(int64(d))
	m.snapshotLatencyCount.Add(1)
}

func (m *Metrics) incSnapshotErrors()     { m.snapshotErrors.Add(1) }
func (m *Metrics) incConfigReloads()      { m.configReloads.Add(1) }
func (m *Metrics) incConfigReloadErrors() { m.configReloadErrors.Add(1) }

func (m *Metrics) snapshotLatencyAvg() time.Duration {
	count := m.snapshotLatencyCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(m.snapshotLatencyNs.Load() / count)
}
