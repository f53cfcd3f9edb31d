//go:build linux

// Package snapshot turns parsed cgroup stats into a flat, version-independent
// set of metric samples. One snapshot is built per scrape and never retained.
package snapshot

import (
	"math"
	"sort"
	"strconv"

	"github.com/cgwatch/cgwatch/pkg/system/cgroup"
)

// Kind tells the exposition layer how a sample should be typed.
type Kind int

const (
	Gauge Kind = iota
	Counter
)

// MetricSample is one named value with its label set. Values are cumulative
// kernel counters or point-in-time gauges; no deltas, no rates.
type MetricSample struct {
	Name   string
	Help   string
	Kind   Kind
	Labels map[string]string
	Value  float64
}

// Snapshot is the complete output of one scrape, immutable once built.
type Snapshot []MetricSample

const nanos = 1e9

// Build assembles samples from whichever controller stats this scrape could
// produce. Either stats argument may be nil (controller unreadable this
// scrape) and any optional field may be absent; missing data is omitted
// entirely rather than emitted as zero, so a scraper can tell "not measured"
// from "measured as zero". The target PID is attached as a label to every
// sample so one exporter's output stays self-describing next to others.
func Build(pid int, prefix string, cpu *cgroup.ParsedCPUStats, limit *cgroup.CPULimit, mem *cgroup.ParsedMemoryStats) Snapshot {
	b := builder{prefix: prefix, pid: strconv.Itoa(pid)}

	if cpu != nil {
		b.counter("cpu_periods_total",
			"Number of enforcement periods the cgroup's CPU controller has seen.",
			float64(cpu.NrPeriods), nil)
		b.counter("cpu_throttled_periods_total",
			"Number of periods in which the cgroup was throttled.",
			float64(cpu.NrThrottled), nil)
		b.counter("cpu_throttled_seconds_total",
			"Total time the cgroup spent throttled.",
			float64(cpu.ThrottledNanos)/nanos, nil)

		if cpu.UsageNanos != nil {
			b.counter("cpu_usage_seconds_total",
				"Total CPU time consumed by the cgroup.",
				float64(*cpu.UsageNanos)/nanos, nil)
		}
		if cpu.UserNanos != nil {
			b.counter("cpu_user_seconds_total",
				"CPU time consumed in user mode.",
				float64(*cpu.UserNanos)/nanos, nil)
		}
		if cpu.SystemNanos != nil {
			b.counter("cpu_system_seconds_total",
				"CPU time consumed in kernel mode.",
				float64(*cpu.SystemNanos)/nanos, nil)
		}
	}
	if limit != nil {
		cores := limit.Cores
		if limit.Unlimited {
			cores = math.Inf(1)
		}
		b.gauge("cpu_limit_cores",
			"Configured CPU quota in cores; +Inf when unlimited.",
			cores, nil)
	}

	if mem != nil {
		b.gauge("memory_usage_bytes",
			"Current memory usage of the cgroup.",
			mem.Usage.Float64(), nil)
		if mem.Limit != nil {
			b.gauge("memory_limit_bytes",
				"Configured memory limit; +Inf when unlimited.",
				mem.Limit.Float64(), nil)
		}
		if mem.Peak != nil {
			b.gauge("memory_peak_bytes",
				"Historical maximum memory usage of the cgroup.",
				mem.Peak.Float64(), nil)
		}
		if mem.OOMKills != nil {
			b.counter("memory_oom_kills_total",
				"Number of processes in the cgroup killed by the OOM killer.",
				float64(*mem.OOMKills), nil)
		}
		if mem.Events != nil {
			// stable ordering for idempotent snapshots
			keys := make([]string, 0, len(mem.Events))
			for k := range mem.Events {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				b.counter("memory_events_total",
					"Memory event counters from memory.events.",
					float64(mem.Events[k]), map[string]string{"event": k})
			}
		}
	}

	return b.samples
}

type builder struct {
	prefix  string
	pid     string
	samples Snapshot
}

func (b *builder) add(kind Kind, suffix, help string, value float64, extra map[string]string) {
	labels := map[string]string{"pid": b.pid}
	for k, v := range extra {
		labels[k] = v
	}
	b.samples = append(b.samples, MetricSample{
		Name:   b.prefix + "_" + suffix,
		Help:   help,
		Kind:   kind,
		Labels: labels,
		Value:  value,
	})
}

func (b *builder) gauge(suffix, help string, value float64, extra map[string]string) {
	b.add(Gauge, suffix, help, value, extra)
}

func (b *builder) counter(suffix, help string, value float64, extra map[string]string) {
	b.add(Counter, suffix, help, value, extra)
}
