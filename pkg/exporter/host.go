//go:build linux

package exporter

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/procfs"
)

// HostCollector reports node-level CPU and memory from /proc/stat and
// /proc/meminfo, so the target's numbers can be read in context.
type HostCollector struct {
	fs     procfs.FS
	logger *slog.Logger

	cpuSeconds *prometheus.Desc

	memTotal     *prometheus.Desc
	memFree      *prometheus.Desc
	memAvailable *prometheus.Desc
	memCached    *prometheus.Desc
	memBuffers   *prometheus.Desc
	swapTotal    *prometheus.Desc
	swapFree     *prometheus.Desc
}

func NewHostCollector(procRoot, prefix string, constLabels prometheus.Labels, logger *slog.Logger) (*HostCollector, error) {
	fs, err := procfs.NewFS(procRoot)
	if err != nil {
		return nil, err
	}
	desc := func(suffix, help string) *prometheus.Desc {
		return prometheus.NewDesc(prefix+"_host_"+suffix, help, nil, constLabels)
	}
	return &HostCollector{
		fs:     fs,
		logger: logger,

		cpuSeconds: prometheus.NewDesc(prefix+"_host_cpu_seconds_total",
			"Aggregate host CPU time per mode.", []string{"cpu", "mode"}, constLabels),

		memTotal:     desc("memory_total_bytes", "Total usable host memory."),
		memFree:      desc("memory_free_bytes", "Unused host memory."),
		memAvailable: desc("memory_available_bytes", "Memory available for new workloads without swapping."),
		memCached:    desc("memory_cached_bytes", "Page cache memory."),
		memBuffers:   desc("memory_buffers_bytes", "Raw block device buffers."),
		swapTotal:    desc("swap_total_bytes", "Total swap space."),
		swapFree:     desc("swap_free_bytes", "Unused swap space."),
	}, nil
}

func (c *HostCollector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

func (c *HostCollector) Collect(ch chan<- prometheus.Metric) {
	if stat, err := c.fs.Stat(); err != nil {
		c.logger.Warn("read /proc/stat failed", "err", err)
	} else {
		cpu := stat.CPUTotal
		for mode, secs := range map[string]float64{
			"user":       cpu.User,
			"nice":       cpu.Nice,
			"system":     cpu.System,
			"idle":       cpu.Idle,
			"iowait":     cpu.Iowait,
			"irq":        cpu.IRQ,
			"softirq":    cpu.SoftIRQ,
			"steal":      cpu.Steal,
			"guest":      cpu.Guest,
			"guest_nice": cpu.GuestNice,
		} {
			ch <- prometheus.MustNewConstMetric(c.cpuSeconds, prometheus.CounterValue, secs, "all", mode)
		}
	}

	mem, err := c.fs.Meminfo()
	if err != nil {
		c.logger.Warn("read /proc/meminfo failed", "err", err)
		return
	}
	kb := func(d *prometheus.Desc, v *uint64) {
		if v != nil {
			ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(*v)*1024)
		}
	}
	kb(c.memTotal, mem.MemTotal)
	kb(c.memFree, mem.MemFree)
	kb(c.memAvailable, mem.MemAvailable)
	kb(c.memCached, mem.Cached)
	kb(c.memBuffers, mem.Buffers)
	kb(c.swapTotal, mem.SwapTotal)
	kb(c.swapFree, mem.SwapFree)
}
