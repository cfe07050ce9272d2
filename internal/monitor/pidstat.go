package monitor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Indices into the whitespace-split /proc/[pid]/stat line, 0-based, as
// documented in proc(5) (field N in the man page is index N-1 here).
const (
	statFieldUtime     = 13
	statFieldStime     = 14
	statFieldCutime    = 15
	statFieldCstime    = 16
	statFieldStarttime = 21

	// statMinFields is the field count needed to reach starttime.
	statMinFields = statFieldStarttime + 1
)

var errShortStat = errors.New("stat line too short")

// procStat holds the /proc/[pid]/stat fields the process reader needs, in
// clock ticks.
type procStat struct {
	Utime     uint64
	Stime     uint64
	Cutime    uint64
	Cstime    uint64
	Starttime uint64
}

// activeTicks returns utime+stime+cutime+cstime.
func (s procStat) activeTicks() uint64 {
	return s.Utime + s.Stime + s.Cutime + s.Cstime
}

// statFields splits a stat line into positional fields. The comm field (index
// 1) is taken as everything between the first '(' and the last ')', so a
// command name containing spaces or parentheses does not shift later fields.
func statFields(line string) []string {
	open := strings.IndexByte(line, '(')
	closing := strings.LastIndexByte(line, ')')
	if open < 0 || closing < open {
		return strings.Fields(line)
	}
	fields := make([]string, 0, 52)
	fields = append(fields, strings.TrimSpace(line[:open]), line[open:closing+1])
	return append(fields, strings.Fields(line[closing+1:])...)
}

// parseProcStat decodes a /proc/[pid]/stat line. It checks the field count
// before indexing and fails on any non-numeric counter it needs.
func parseProcStat(line string) (procStat, error) {
	fields := statFields(line)
	if len(fields) < statMinFields {
		return procStat{}, fmt.Errorf("%w: got %d fields, need %d", errShortStat, len(fields), statMinFields)
	}

	var s procStat
	targets := []struct {
		index int
		dst   *uint64
	}{
		{statFieldUtime, &s.Utime},
		{statFieldStime, &s.Stime},
		{statFieldCutime, &s.Cutime},
		{statFieldCstime, &s.Cstime},
		{statFieldStarttime, &s.Starttime},
	}
	for _, t := range targets {
		v, err := strconv.ParseUint(fields[t.index], 10, 64)
		if err != nil {
			return procStat{}, fmt.Errorf("parsing field %d: %w", t.index, err)
		}
		*t.dst = v
	}
	return s, nil
}

// procStat reads and decodes /proc/[pid]/stat.
func (r *Reader) procStat(pid int) Reading[procStat] {
	line := r.firstLine(r.pidPath(pid, "stat"))
	if !line.Valid {
		return Unavailable[procStat]()
	}
	s, err := parseProcStat(line.Value)
	if err != nil {
		r.log.V(1).Info("malformed process stat", "pid", pid, "error", err)
		return Unavailable[procStat]()
	}
	return Available(s)
}
