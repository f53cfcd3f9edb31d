//go:build linux

package cgroup

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/cgwatch/cgwatch/pkg/types"
)

// ParsedCPUStats holds the throttling counters from cpu.stat, normalized to
// one unit contract regardless of cgroup version: throttled time is always
// nanoseconds. All values are cumulative since cgroup creation.
//
// The usage fields are exposed by the v2 unified cpu.stat only; they are nil
// on v1, where cumulative usage lives in a different controller (cpuacct)
// outside this tool's scope.
type ParsedCPUStats struct {
	NrPeriods      uint64
	NrThrottled    uint64
	ThrottledNanos uint64

	UsageNanos  *uint64
	UserNanos   *uint64
	SystemNanos *uint64
}

// CPULimit is the configured CPU quota expressed in cores.
type CPULimit struct {
	Cores     float64
	Unlimited bool
}

// ParsedMemoryStats holds the memory controller fields. Limit may carry the
// types.Unlimited sentinel; nil pointers mark fields the kernel or cgroup
// version does not expose, which is distinct from a measured zero.
type ParsedMemoryStats struct {
	Usage types.Bytes
	Limit *types.Bytes
	Peak  *types.Bytes

	OOMKills *uint64
	Events   map[string]uint64
}

// v1MemoryUnlimitedFloor: cgroup v1 reports "no limit" as a huge
// page-rounded number (PAGE_COUNTER_MAX) instead of the literal "max".
const v1MemoryUnlimitedFloor = uint64(1) << 62

// ParseCPUStat decodes a cpu.stat blob for the given version.
//
// v1 spells the fields nr_periods / nr_throttled / throttled_time (ns);
// v2 spells them nr_periods / nr_throttled / throttled_usec (µs). Seeing the
// other version's spelling is a version mismatch and fails with ErrMalformed
// rather than being silently misread. A v2 cpu.stat that carries only the
// usage fields (cpu controller not enabled for the group) is ErrUnsupported.
func ParseCPUStat(content []byte, v Version) (*ParsedCPUStats, error) {
	var (
		stats    ParsedCPUStats
		sawTrio  int
		sawUsage bool
	)

	throttledKey := "throttled_time"
	mismatchKey := "throttled_usec"
	if v == V2 {
		throttledKey, mismatchKey = mismatchKey, throttledKey
	}

	sc := bufio.NewScanner(bytes.NewReader(content))
	for sc.Scan() {
		key, raw, ok := strings.Cut(sc.Text(), " ")
		if !ok {
			return nil, fmt.Errorf("cpu.stat line %q: %w", sc.Text(), ErrMalformed)
		}
		if key == mismatchKey {
			return nil, fmt.Errorf("cpu.stat has %s, wrong shape for %s: %w", key, v, ErrMalformed)
		}

		switch key {
		case "nr_periods", "nr_throttled", throttledKey:
			val, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("cpu.stat %s=%q: %w", key, raw, ErrMalformed)
			}
			sawTrio++
			switch key {
			case "nr_periods":
				stats.NrPeriods = val
			case "nr_throttled":
				stats.NrThrottled = val
			default:
				if v == V2 {
					val *= 1000 // µs -> ns
				}
				stats.ThrottledNanos = val
			}
		case "usage_usec", "user_usec", "system_usec":
			val, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("cpu.stat %s=%q: %w", key, raw, ErrMalformed)
			}
			sawUsage = true
			nanos := val * 1000
			switch key {
			case "usage_usec":
				stats.UsageNanos = &nanos
			case "user_usec":
				stats.UserNanos = &nanos
			default:
				stats.SystemNanos = &nanos
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan cpu.stat: %w", err)
	}

	switch sawTrio {
	case 3:
		return &stats, nil
	case 0:
		if sawUsage {
			// cpu controller not enabled for this group
			return nil, fmt.Errorf("cpu.stat has no throttling fields: %w", ErrUnsupported)
		}
		return nil, fmt.Errorf("cpu.stat empty: %w", ErrMalformed)
	default:
		return nil, fmt.Errorf("cpu.stat has %d of 3 throttling fields: %w", sawTrio, ErrMalformed)
	}
}

// ParseCPUMax decodes the v2 cpu.max file: "max 100000" or "<quota> <period>".
func ParseCPUMax(content []byte) (*CPULimit, error) {
	fields := strings.Fields(string(content))
	if len(fields) == 0 || len(fields) > 2 {
		return nil, fmt.Errorf("cpu.max %q: %w", bytes.TrimSpace(content), ErrMalformed)
	}
	if fields[0] == "max" {
		return &CPULimit{Unlimited: true}, nil
	}

	quota, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cpu.max quota %q: %w", fields[0], ErrMalformed)
	}
	period := uint64(100000)
	if len(fields) == 2 {
		if period, err = strconv.ParseUint(fields[1], 10, 64); err != nil || period == 0 {
			return nil, fmt.Errorf("cpu.max period %q: %w", fields[1], ErrMalformed)
		}
	}
	return &CPULimit{Cores: float64(quota) / float64(period)}, nil
}

// ParseCPUQuota decodes the v1 pair cpu.cfs_quota_us / cpu.cfs_period_us.
// A negative quota means no limit.
func ParseCPUQuota(quota, period []byte) (*CPULimit, error) {
	q, err := strconv.ParseInt(string(bytes.TrimSpace(quota)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cpu.cfs_quota_us %q: %w", bytes.TrimSpace(quota), ErrMalformed)
	}
	if q < 0 {
		return &CPULimit{Unlimited: true}, nil
	}
	p, err := strconv.ParseInt(string(bytes.TrimSpace(period)), 10, 64)
	if err != nil || p <= 0 {
		return nil, fmt.Errorf("cpu.cfs_period_us %q: %w", bytes.TrimSpace(period), ErrMalformed)
	}
	return &CPULimit{Cores: float64(q) / float64(p)}, nil
}

// ParseMemoryValue decodes a single-integer memory file (usage, limit,
// peak). The kernel's "max" sentinel and the v1 huge no-limit value both map
// to types.Unlimited, never to zero and never to a parse error.
func ParseMemoryValue(content []byte) (types.Bytes, error) {
	s := string(bytes.TrimSpace(content))
	if s == "max" {
		return types.Unlimited, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("memory value %q: %w", s, ErrMalformed)
	}
	if v >= v1MemoryUnlimitedFloor {
		return types.Unlimited, nil
	}
	return types.Bytes(v), nil
}

// ParseMemoryEvents decodes the v2 memory.events flat key/value blob.
func ParseMemoryEvents(content []byte) (map[string]uint64, error) {
	events := make(map[string]uint64)
	sc := bufio.NewScanner(bytes.NewReader(content))
	for sc.Scan() {
		key, raw, ok := strings.Cut(sc.Text(), " ")
		if !ok {
			return nil, fmt.Errorf("memory.events line %q: %w", sc.Text(), ErrMalformed)
		}
		val, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("memory.events %s=%q: %w", key, raw, ErrMalformed)
		}
		events[key] = val
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan memory.events: %w", err)
	}
	return events, nil
}

// ParseCPU assembles the CPU controller blobs into parsed throttling stats
// and the configured limit. Failures are scoped per field: a malformed limit
// does not discard valid throttling stats and vice versa. The returned error
// reports the first failure for logging; the non-nil results are usable
// regardless.
func ParseCPU(blobs []RawStatBlob, v Version) (*ParsedCPUStats, *CPULimit, error) {
	var firstErr error

	var stats *ParsedCPUStats
	if b, ok := Blob(blobs, "cpu.stat"); ok {
		var err error
		if stats, err = ParseCPUStat(b.Content, v); err != nil {
			stats = nil
			firstErr = err
		}
	}

	var limit *CPULimit
	switch v {
	case V1:
		q, qok := Blob(blobs, "cpu.cfs_quota_us")
		p, pok := Blob(blobs, "cpu.cfs_period_us")
		if qok && pok {
			var err error
			if limit, err = ParseCPUQuota(q.Content, p.Content); err != nil {
				limit = nil
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	case V2:
		if b, ok := Blob(blobs, "cpu.max"); ok {
			var err error
			if limit, err = ParseCPUMax(b.Content); err != nil {
				limit = nil
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}

	return stats, limit, firstErr
}

// ParseMemory assembles the memory controller blobs. The usage file is the
// one required input; everything else degrades to an explicit "not exposed"
// nil, per the absence-is-not-zero rule.
func ParseMemory(blobs []RawStatBlob, v Version) (*ParsedMemoryStats, error) {
	usageName, limitName := "memory.current", "memory.max"
	if v == V1 {
		usageName, limitName = "memory.usage_in_bytes", "memory.limit_in_bytes"
	}

	b, ok := Blob(blobs, usageName)
	if !ok {
		return nil, fmt.Errorf("%s missing: %w", usageName, ErrUnsupported)
	}
	usage, err := ParseMemoryValue(b.Content)
	if err != nil {
		return nil, err
	}
	stats := &ParsedMemoryStats{Usage: usage}

	var firstErr error
	if b, ok := Blob(blobs, limitName); ok {
		if limit, err := ParseMemoryValue(b.Content); err != nil {
			firstErr = err
		} else {
			stats.Limit = &limit
		}
	}

	if v != V2 {
		return stats, firstErr
	}

	if b, ok := Blob(blobs, "memory.peak"); ok {
		if peak, err := ParseMemoryValue(b.Content); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			stats.Peak = &peak
		}
	}
	if b, ok := Blob(blobs, "memory.events"); ok {
		if events, err := ParseMemoryEvents(b.Content); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			stats.Events = events
			if kills, ok := events["oom_kill"]; ok {
				stats.OOMKills = &kills
			}
		}
	}
	return stats, firstErr
}
