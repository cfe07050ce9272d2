package monitor

import (
	"io/fs"
	"strconv"
)

const kbPerMB = 1024

// Pids lists the numeric directories under /proc. The order follows the
// directory listing and is not stable between calls.
func (r *Reader) Pids() []int {
	entries, err := fs.ReadDir(r.fsys, r.paths.Proc)
	if err != nil {
		r.log.V(1).Info("listing processes failed", "path", r.paths.Proc, "error", err)
		return nil
	}

	pids := make([]int, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || !isDigits(entry.Name()) {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	return pids
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Command returns the raw first line of /proc/[pid]/cmdline. Arguments stay
// NUL-separated; kernel threads have an empty command line.
func (r *Reader) Command(pid int) Reading[string] {
	return r.firstLine(r.pidPath(pid, "cmdline"))
}

// RAM returns the VmSize of a process in megabytes.
func (r *Reader) RAM(pid int) Reading[int64] {
	kb := r.lookupInt(r.pidPath(pid, "status"), "VmSize:", noNormalize)
	return mapReading(kb, func(v int64) int64 { return v / kbPerMB })
}

// UpTimeOf returns the start time of a process in seconds since boot.
func (r *Reader) UpTimeOf(pid int) Reading[int64] {
	return mapReading(r.procStat(pid), func(s procStat) int64 {
		return int64(s.Starttime) / r.clockTicks
	})
}

// ActiveSeconds returns the CPU time a process and its waited-for children
// have consumed, in seconds.
func (r *Reader) ActiveSeconds(pid int) Reading[float64] {
	return mapReading(r.procStat(pid), func(s procStat) float64 {
		return float64(s.activeTicks()) / float64(r.clockTicks)
	})
}

// ElapsedSeconds returns how long a process has existed: system uptime minus
// its start time. Clock skew between the two reads is clamped to zero.
func (r *Reader) ElapsedSeconds(pid int) Reading[int64] {
	start := r.UpTimeOf(pid)
	if !start.Valid {
		return Unavailable[int64]()
	}
	up := r.UpTime()
	if !up.Valid {
		return Unavailable[int64]()
	}
	return Available(max(up.Value-start.Value, 0))
}

// CPUUtilization returns ActiveSeconds/ElapsedSeconds.
func (r *Reader) CPUUtilization(pid int) Reading[float64] {
	active := r.ActiveSeconds(pid)
	elapsed := r.ElapsedSeconds(pid)
	if !active.Valid || !elapsed.Valid || elapsed.Value == 0 {
		return Unavailable[float64]()
	}
	return Available(active.Value / float64(elapsed.Value))
}

// Process reads every per-process metric for pid. Each field is read
// independently, so a process exiting mid-read yields a partial record.
func (r *Reader) Process(pid int) ProcessRecord {
	return r.process(pid, r.LookupUser)
}

// ProcessWithUsers is Process with user names resolved from a table read
// once by the caller, so reading many processes costs one passwd read.
func (r *Reader) ProcessWithUsers(pid int, users Users) ProcessRecord {
	return r.process(pid, users.Lookup)
}

func (r *Reader) process(pid int, lookup func(uid string) Reading[string]) ProcessRecord {
	rec := ProcessRecord{
		PID:     pid,
		Command: r.Command(pid).Value,
		User:    r.userOf(pid, lookup).Value,
		RAMMB:   r.RAM(pid).Value,
	}

	st := r.procStat(pid)
	if !st.Valid {
		return rec
	}
	rec.UptimeSeconds = int64(st.Value.Starttime) / r.clockTicks
	rec.CPUSeconds = float64(st.Value.activeTicks()) / float64(r.clockTicks)
	if up := r.UpTime(); up.Valid {
		rec.ElapsedSeconds = max(up.Value-rec.UptimeSeconds, 0)
	}
	return rec
}

// Processes enumerates /proc and reads a record for every process found.
func (r *Reader) Processes() []ProcessRecord {
	pids := r.Pids()
	users := r.Users()
	records := make([]ProcessRecord, 0, len(pids))
	for _, pid := range pids {
		records = append(records, r.ProcessWithUsers(pid, users))
	}
	return records
}

// System reads the system-wide figures.
func (r *Reader) System() SystemSnapshot {
	return SystemSnapshot{
		OSName:            r.OperatingSystem().Value,
		Kernel:            r.Kernel().Value,
		MemoryUtilization: r.MemoryUtilization(),
		UptimeSeconds:     r.UpTime().Value,
		TotalProcesses:    r.TotalProcesses().Value,
		RunningProcesses:  r.RunningProcesses().Value,
		CPU:               r.CPU(),
	}
}
