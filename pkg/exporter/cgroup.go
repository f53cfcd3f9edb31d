//go:build linux

package exporter

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cgwatch/cgwatch/pkg/snapshot"
	"github.com/cgwatch/cgwatch/pkg/system/cgroup"
)

// CgroupCollector runs the locate/read/parse/build pipeline for the target
// PID on every scrape. Failures shrink the sample set instead of failing the
// scrape: a scrape that can resolve nothing still produces a valid, empty
// snapshot and the exporter keeps running.
type CgroupCollector struct {
	locator *cgroup.Locator
	reader  *cgroup.Reader

	pid         int
	prefix      string
	constLabels prometheus.Labels
	logger      *slog.Logger
}

func NewCgroupCollector(locator *cgroup.Locator, pid int, prefix string, constLabels prometheus.Labels, logger *slog.Logger) *CgroupCollector {
	return &CgroupCollector{
		locator:     locator,
		reader:      cgroup.NewReader(),
		pid:         pid,
		prefix:      prefix,
		constLabels: constLabels,
		logger:      logger,
	}
}

func (c *CgroupCollector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

func (c *CgroupCollector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.Scrape() {
		keys, vals := labelPairs(s.Labels)
		vt := prometheus.GaugeValue
		if s.Kind == snapshot.Counter {
			vt = prometheus.CounterValue
		}
		desc := prometheus.NewDesc(s.Name, s.Help, keys, c.constLabels)
		ch <- prometheus.MustNewConstMetric(desc, vt, s.Value, vals...)
	}
}

// Scrape produces a fresh snapshot. A stale resolved path (ENOENT) triggers
// at most one re-resolution per scrape; sustained target absence therefore
// costs one resolution attempt per scrape interval and nothing more.
func (c *CgroupCollector) Scrape() snapshot.Snapshot {
	res, err := c.locator.Resolve(c.pid)
	if err != nil {
		c.logger.Debug("target unavailable", "pid", c.pid, "err", err)
		return nil
	}

	var (
		cpuStats *cgroup.ParsedCPUStats
		cpuLimit *cgroup.CPULimit
		memStats *cgroup.ParsedMemoryStats
		retried  bool
	)
	for _, want := range []cgroup.Controller{cgroup.CPU, cgroup.Memory} {
		cp, ok := res.Path(want)
		if !ok {
			c.logger.Debug("controller not in any hierarchy", "controller", want.String(), "pid", c.pid)
			continue
		}

		blobs, err := c.reader.Read(cp)
		if cgroup.IsStale(err) && !retried {
			// process migrated or re-exec'd; re-resolve once and retry
			retried = true
			c.locator.Invalidate()
			if fresh, rerr := c.locator.Resolve(c.pid); rerr == nil {
				res = fresh
				if cp, ok = res.Path(want); ok {
					blobs, err = c.reader.Read(cp)
				}
			} else {
				c.logger.Debug("re-resolution failed", "pid", c.pid, "err", rerr)
				break
			}
		}
		if err != nil {
			c.logger.Warn("controller read failed", "controller", want.String(), "dir", cp.Dir, "err", err)
			continue
		}

		switch want {
		case cgroup.CPU:
			var perr error
			if cpuStats, cpuLimit, perr = cgroup.ParseCPU(blobs, cp.Version); perr != nil {
				c.logger.Warn("cpu stats partially unparsable", "dir", cp.Dir, "err", perr)
			}
		case cgroup.Memory:
			var perr error
			if memStats, perr = cgroup.ParseMemory(blobs, cp.Version); perr != nil {
				c.logger.Warn("memory stats partially unparsable", "dir", cp.Dir, "err", perr)
			}
			if memStats != nil {
				c.logger.Debug("memory read", "usage", memStats.Usage.Humanized())
			}
		}
	}

	return snapshot.Build(c.pid, c.prefix, cpuStats, cpuLimit, memStats)
}
