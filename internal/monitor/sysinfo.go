package monitor

import "strings"

// OperatingSystem returns PRETTY_NAME from os-release, e.g.
// "Ubuntu 22.04.3 LTS".
func (r *Reader) OperatingSystem() Reading[string] {
	name := r.lookupString(r.paths.OSRelease, "PRETTY_NAME", quotedAssignment)
	if !name.Valid {
		return name
	}
	return Available(strings.ReplaceAll(name.Value, "_", " "))
}

// Kernel returns the kernel release from the third token of /proc/version
// ("Linux version 6.5.0-14-generic ...").
func (r *Reader) Kernel() Reading[string] {
	line := r.firstLine(r.procPath("version"))
	if !line.Valid {
		return line
	}
	fields := strings.Fields(line.Value)
	if len(fields) < 3 {
		r.log.V(1).Info("malformed version line", "line", line.Value)
		return Unavailable[string]()
	}
	return Available(fields[2])
}
