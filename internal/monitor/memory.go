package monitor

import "strconv"

// MemInfo reads the main /proc/meminfo counters. The reading is invalid when
// the file cannot be opened, MemTotal is missing, zero or malformed, or
// MemFree is missing or malformed. The remaining counters are optional and
// read as zero when absent.
func (r *Reader) MemInfo() Reading[MemInfo] {
	var info MemInfo
	fields := map[string]*uint64{
		"MemTotal":     &info.TotalKB,
		"MemFree":      &info.FreeKB,
		"MemAvailable": &info.AvailableKB,
		"Buffers":      &info.BuffersKB,
		"Cached":       &info.CachedKB,
	}
	parsed := make(map[string]bool, len(fields))
	opened := r.scanKeyed(r.procPath("meminfo"), colonToSpace, func(key, value string) bool {
		dst, ok := fields[key]
		if !ok {
			return true
		}
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			*dst = v
			parsed[key] = true
		} else {
			r.log.V(1).Info("malformed meminfo value", "key", key, "value", value)
		}
		delete(fields, key)
		return len(fields) > 0
	})
	if !opened || !parsed["MemTotal"] || !parsed["MemFree"] || info.TotalKB == 0 {
		return Unavailable[MemInfo]()
	}
	return Available(info)
}

// MemoryUtilization returns (MemTotal-MemFree)/MemTotal in [0,1]. It is
// invalid whenever MemInfo is, so an unreadable MemFree never reads as 100%.
func (r *Reader) MemoryUtilization() Reading[float64] {
	info := r.MemInfo()
	if !info.Valid {
		return Unavailable[float64]()
	}
	return Available(memoryRatio(info.Value.TotalKB, info.Value.FreeKB))
}

func memoryRatio(total, free uint64) float64 {
	if free >= total {
		return 0
	}
	return float64(total-free) / float64(total)
}
