package monitor

import (
	"strconv"
	"strings"
)

// minCPUFields is the number of counters every kernel since 2.6 reports on a
// cpu line (user through softirq).
const minCPUFields = 7

// CPU returns the aggregate counters from the first line of /proc/stat.
func (r *Reader) CPU() Reading[CPUSample] {
	line := r.firstLine(r.procPath("stat"))
	if !line.Valid {
		return Unavailable[CPUSample]()
	}
	fields := strings.Fields(line.Value)
	if len(fields) == 0 || fields[0] != "cpu" {
		r.log.V(1).Info("unexpected first line in stat", "line", line.Value)
		return Unavailable[CPUSample]()
	}
	sample, ok := parseCPUSample(fields[1:])
	if !ok {
		r.log.V(1).Info("malformed cpu line", "line", line.Value)
		return Unavailable[CPUSample]()
	}
	return Available(sample)
}

// CoreCPUs returns the per-core counters (cpu0, cpu1, ...) in file order.
// Malformed core lines are skipped.
func (r *Reader) CoreCPUs() []CPUSample {
	lines, err := readLines(r.fsys, r.procPath("stat"))
	if err != nil {
		r.log.V(2).Info("read failed", "path", r.procPath("stat"), "error", err)
		return nil
	}
	var cores []CPUSample
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] == "cpu" || !strings.HasPrefix(fields[0], "cpu") {
			continue
		}
		if sample, ok := parseCPUSample(fields[1:]); ok {
			cores = append(cores, sample)
		}
	}
	return cores
}

// parseCPUSample decodes the counters of a cpu line, label removed. Buckets
// newer kernels add (steal, guest, guest_nice) read as zero when absent.
func parseCPUSample(fields []string) (CPUSample, bool) {
	var s CPUSample
	if len(fields) < minCPUFields {
		return s, false
	}
	for i := 0; i < len(s) && i < len(fields); i++ {
		v, err := strconv.ParseUint(fields[i], 10, 64)
		if err != nil {
			return CPUSample{}, false
		}
		s[i] = v
	}
	return s, true
}

// ActiveJiffies returns the system-wide active jiffies since boot.
func (r *Reader) ActiveJiffies() Reading[uint64] {
	return mapReading(r.CPU(), CPUSample.ActiveJiffies)
}

// IdleJiffies returns the system-wide idle jiffies since boot.
func (r *Reader) IdleJiffies() Reading[uint64] {
	return mapReading(r.CPU(), CPUSample.IdleJiffies)
}

// Jiffies returns active plus idle jiffies since boot.
func (r *Reader) Jiffies() Reading[uint64] {
	return mapReading(r.CPU(), CPUSample.TotalJiffies)
}

// TotalProcesses returns the number of forks since boot ("processes").
func (r *Reader) TotalProcesses() Reading[int] {
	return mapReading(r.lookupInt(r.procPath("stat"), "processes", noNormalize), toInt)
}

// RunningProcesses returns the number of runnable tasks ("procs_running").
func (r *Reader) RunningProcesses() Reading[int] {
	return mapReading(r.lookupInt(r.procPath("stat"), "procs_running", noNormalize), toInt)
}

// Utilization returns the share of active time between two samples taken by
// the caller, in [0,1]. It is invalid when any counter in cur is lower than
// in prev (the samples are swapped or the counters were reset) or when no
// time elapsed.
func Utilization(prev, cur CPUSample) Reading[float64] {
	for i := range cur {
		if cur[i] < prev[i] {
			return Unavailable[float64]()
		}
	}
	total := cur.TotalJiffies() - prev.TotalJiffies()
	if total == 0 {
		return Unavailable[float64]()
	}
	active := cur.ActiveJiffies() - prev.ActiveJiffies()
	return Available(float64(active) / float64(total))
}

func mapReading[T, U any](r Reading[T], fn func(T) U) Reading[U] {
	if !r.Valid {
		return Unavailable[U]()
	}
	return Available(fn(r.Value))
}

func toInt(v int64) int { return int(v) }
