package monitor

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"strconv"
	"strings"
)

// normalizer rewrites a raw line before it is split into key and value.
type normalizer func(string) string

func noNormalize(line string) string { return line }

// colonToSpace turns "Key:\tvalue" records into "Key value".
func colonToSpace(line string) string {
	return strings.ReplaceAll(line, ":", " ")
}

// quotedAssignment turns KEY="some value" into "KEY some_value" so the value
// survives whitespace tokenization as a single token.
var quotedAssignment = strings.NewReplacer(" ", "_", "=", " ", `"`, " ").Replace

// scanKeyed reads name line by line and calls fn with the first two
// whitespace-separated tokens of each normalized line until fn returns false.
// It returns false when the file could not be opened.
func (r *Reader) scanKeyed(name string, norm normalizer, fn func(key, value string) bool) bool {
	f, err := r.fsys.Open(name)
	if err != nil {
		r.log.V(2).Info("open failed", "path", name, "error", err)
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(norm(scanner.Text()))
		if len(fields) < 2 {
			continue
		}
		if !fn(fields[0], fields[1]) {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		r.log.V(2).Info("scan failed", "path", name, "error", err)
	}
	return true
}

// lookupString returns the value token of the first line whose key matches.
func (r *Reader) lookupString(name, key string, norm normalizer) Reading[string] {
	result := Unavailable[string]()
	r.scanKeyed(name, norm, func(k, v string) bool {
		if k != key {
			return true
		}
		result = Available(v)
		return false
	})
	if !result.Valid {
		r.log.V(2).Info("key not found", "path", name, "key", key)
	}
	return result
}

// lookupInt is lookupString parsed as a base-10 integer.
func (r *Reader) lookupInt(name, key string, norm normalizer) Reading[int64] {
	return parseReading(r.lookupString(name, key, norm), func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	})
}

// lookupUint is lookupString parsed as an unsigned base-10 integer.
func (r *Reader) lookupUint(name, key string, norm normalizer) Reading[uint64] {
	return parseReading(r.lookupString(name, key, norm), func(s string) (uint64, error) {
		return strconv.ParseUint(s, 10, 64)
	})
}

func parseReading[T any](s Reading[string], parse func(string) (T, error)) Reading[T] {
	if !s.Valid {
		return Unavailable[T]()
	}
	v, err := parse(s.Value)
	if err != nil {
		return Unavailable[T]()
	}
	return Available(v)
}

// firstLine returns the first line of name without its trailing newline.
func (r *Reader) firstLine(name string) Reading[string] {
	f, err := r.fsys.Open(name)
	if err != nil {
		r.log.V(2).Info("open failed", "path", name, "error", err)
		return Unavailable[string]()
	}
	defer f.Close()

	// No length cap: a cmdline may exceed any fixed scanner buffer.
	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		r.log.V(2).Info("read failed", "path", name, "error", err)
		return Unavailable[string]()
	}
	return Available(strings.TrimSuffix(line, "\n"))
}

// readLines returns every line of name.
func readLines(fsys fs.FS, name string) ([]string, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
