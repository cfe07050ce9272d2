package monitor

import "strings"

// passwd record layout: name:password:uid:gid:gecos:home:shell
const (
	passwdFieldName = 0
	passwdFieldUID  = 2
)

// UID returns the real UID of a process from the Uid line of
// /proc/[pid]/status.
func (r *Reader) UID(pid int) Reading[string] {
	return r.lookupString(r.pidPath(pid, "status"), "Uid", colonToSpace)
}

// Users is a parsed user database mapping UID to name. The zero value
// resolves nothing. It is read-only and safe for concurrent use.
type Users struct {
	byUID map[string]string
}

// Lookup returns the name of the first record with the given UID.
func (u Users) Lookup(uid string) Reading[string] {
	name, ok := u.byUID[uid]
	if !ok {
		return Unavailable[string]()
	}
	return Available(name)
}

// Users reads the passwd file once. An unreadable file yields an empty table.
func (r *Reader) Users() Users {
	lines, err := readLines(r.fsys, r.paths.Passwd)
	if err != nil {
		r.log.V(2).Info("read failed", "path", r.paths.Passwd, "error", err)
		return Users{}
	}
	byUID := make(map[string]string)
	for _, line := range lines {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) <= passwdFieldUID || fields[passwdFieldName] == "" {
			continue
		}
		if _, seen := byUID[fields[passwdFieldUID]]; !seen {
			byUID[fields[passwdFieldUID]] = fields[passwdFieldName]
		}
	}
	return Users{byUID: byUID}
}

// LookupUser returns the name of the first passwd record with the given UID.
func (r *Reader) LookupUser(uid string) Reading[string] {
	return r.Users().Lookup(uid)
}

// User returns the name owning a process, falling back to the numeric UID
// when the user database has no matching record.
func (r *Reader) User(pid int) Reading[string] {
	return r.userOf(pid, r.LookupUser)
}

func (r *Reader) userOf(pid int, lookup func(uid string) Reading[string]) Reading[string] {
	uid := r.UID(pid)
	if !uid.Valid {
		return uid
	}
	if name := lookup(uid.Value); name.Valid {
		return name
	}
	return uid
}
