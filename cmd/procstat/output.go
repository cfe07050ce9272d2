package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/opd-ai/go-procstat/pkg/procstat"
)

// jsonSnapshot adds the CPU utilization since the previous sample.
type jsonSnapshot struct {
	procstat.Snapshot
	CPUUtilization procstat.Reading[float64] `json:"cpu_utilization"`
}

func write(w io.Writer, snap procstat.Snapshot, prev procstat.Reading[procstat.CPUSample], s procstat.Settings) error {
	procstat.SortProcesses(snap.Processes, s.SortBy)
	snap.Processes = procstat.Top(snap.Processes, s.Top)
	util := cpuUtilization(prev, snap.System.CPU)

	if s.JSON {
		return json.NewEncoder(w).Encode(jsonSnapshot{Snapshot: snap, CPUUtilization: util})
	}
	return writeTable(w, snap, util)
}

func cpuUtilization(prev, cur procstat.Reading[procstat.CPUSample]) procstat.Reading[float64] {
	if !prev.Valid || !cur.Valid {
		return procstat.Reading[float64]{}
	}
	return procstat.Utilization(prev.Value, cur.Value)
}

func writeTable(w io.Writer, snap procstat.Snapshot, util procstat.Reading[float64]) error {
	sys := snap.System
	fmt.Fprintf(w, "%s  %s  kernel %s  up %s\n",
		snap.Time.Format("15:04:05"), orNA(sys.OSName), orNA(sys.Kernel), formatDuration(sys.UptimeSeconds))
	fmt.Fprintf(w, "source %s  cpu %s  mem %s  procs %d total, %d running\n",
		snap.Source, formatPercent(util), formatPercent(sys.MemoryUtilization),
		sys.TotalProcesses, sys.RunningProcesses)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "PID\tUSER\tRAM(MB)\tUPTIME\tCPU%\tCOMMAND\t")
	for _, p := range snap.Processes {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t\n",
			p.PID, orNA(p.User), p.RAMMB, formatDuration(p.UptimeSeconds),
			formatPercent(p.CPUUtilization()), displayCommand(p.Command))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}

// displayCommand turns the NUL-separated cmdline into a single line.
func displayCommand(cmd string) string {
	return strings.TrimSpace(strings.ReplaceAll(cmd, "\x00", " "))
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}

func formatPercent(r procstat.Reading[float64]) string {
	if !r.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", r.Value*100)
}

// formatDuration renders seconds as [Nd ]HH:MM:SS.
func formatDuration(secs int64) string {
	if secs < 0 {
		secs = 0
	}
	days := secs / 86400
	h, m, s := secs/3600%24, secs/60%60, secs%60
	if days > 0 {
		return fmt.Sprintf("%dd %02d:%02d:%02d", days, h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
