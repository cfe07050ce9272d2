package monitor

import (
	"strconv"
	"strings"
)

// UpTime returns the whole seconds since boot from the first token of
// /proc/uptime.
func (r *Reader) UpTime() Reading[int64] {
	line := r.firstLine(r.procPath("uptime"))
	if !line.Valid {
		return Unavailable[int64]()
	}
	fields := strings.Fields(line.Value)
	if len(fields) == 0 {
		return Unavailable[int64]()
	}
	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || secs < 0 {
		r.log.V(1).Info("malformed uptime", "line", line.Value)
		return Unavailable[int64]()
	}
	return Available(int64(secs))
}
