//go:build linux

package exporter

import (
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/procfs"
)

// Target selects the processes the process collector reports on: the
// exporter's target PID, optionally widened by a regexp matched against each
// process's cmdline and comm on every scrape.
type Target struct {
	PID   int
	Regex *regexp.Regexp
}

// ProcessCollector aggregates per-PID /proc accounting over the target set.
// CPU and I/O counters sum across matched processes; memory values sum;
// start time is the oldest of the set.
type ProcessCollector struct {
	fs     procfs.FS
	target Target
	clkTck float64
	logger *slog.Logger

	pids      *prometheus.Desc
	cpuUser   *prometheus.Desc
	cpuSystem *prometheus.Desc
	startTime *prometheus.Desc
	uptime    *prometheus.Desc

	memRSS  *prometheus.Desc
	memVMS  *prometheus.Desc
	memSwap *prometheus.Desc

	ioRChar     *prometheus.Desc
	ioWChar     *prometheus.Desc
	ioSyscR     *prometheus.Desc
	ioSyscW     *prometheus.Desc
	ioRead      *prometheus.Desc
	ioWrite     *prometheus.Desc
	ioCancelled *prometheus.Desc
}

func NewProcessCollector(procRoot string, target Target, prefix string, constLabels prometheus.Labels, logger *slog.Logger) (*ProcessCollector, error) {
	fs, err := procfs.NewFS(procRoot)
	if err != nil {
		return nil, err
	}

	desc := func(suffix, help string) *prometheus.Desc {
		return prometheus.NewDesc(prefix+"_process_"+suffix, help, nil, constLabels)
	}
	return &ProcessCollector{
		fs:     fs,
		target: target,
		clkTck: float64(clockTicks()),
		logger: logger,

		pids:      desc("pids", "Number of processes currently matched by the target."),
		cpuUser:   desc("cpu_user_seconds_total", "User CPU time consumed by the matched processes."),
		cpuSystem: desc("cpu_system_seconds_total", "System CPU time consumed by the matched processes."),
		startTime: desc("start_time_seconds", "Unix start time of the oldest matched process."),
		uptime:    desc("uptime_seconds", "Time since the oldest matched process started."),

		memRSS:  desc("memory_rss_bytes", "Resident set size summed over the matched processes."),
		memVMS:  desc("memory_vms_bytes", "Virtual memory size summed over the matched processes."),
		memSwap: desc("memory_swap_bytes", "Swapped-out memory summed over the matched processes."),

		ioRChar:     desc("io_rchar_bytes_total", "Bytes read via read-like syscalls."),
		ioWChar:     desc("io_wchar_bytes_total", "Bytes written via write-like syscalls."),
		ioSyscR:     desc("io_syscalls_read_total", "Read-like syscalls issued."),
		ioSyscW:     desc("io_syscalls_write_total", "Write-like syscalls issued."),
		ioRead:      desc("io_read_bytes_total", "Bytes fetched from the storage layer."),
		ioWrite:     desc("io_write_bytes_total", "Bytes sent to the storage layer."),
		ioCancelled: desc("io_cancelled_write_bytes_total", "Write bytes cancelled by truncation."),
	}, nil
}

func (c *ProcessCollector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

func (c *ProcessCollector) Collect(ch chan<- prometheus.Metric) {
	pids := c.resolvePIDs()
	ch <- prometheus.MustNewConstMetric(c.pids, prometheus.GaugeValue, float64(len(pids)))
	if len(pids) == 0 {
		return
	}

	var (
		user, system         float64
		rss, vms, swap       float64
		rchar, wchar         float64
		syscr, syscw         float64
		read, write, cancel  float64
		oldestStart          float64
		haveStart, haveStats bool
	)
	for _, pid := range pids {
		p, err := c.fs.Proc(pid)
		if err != nil {
			continue // exited between resolve and read
		}

		if stat, err := p.Stat(); err == nil {
			haveStats = true
			user += float64(stat.UTime) / c.clkTck
			system += float64(stat.STime) / c.clkTck
			if st, err := stat.StartTime(); err == nil {
				if !haveStart || st < oldestStart {
					oldestStart = st
					haveStart = true
				}
			}
		}
		if status, err := p.NewStatus(); err == nil {
			haveStats = true
			rss += float64(status.VmRSS)
			vms += float64(status.VmSize)
			swap += float64(status.VmSwap)
		}
		if io, err := p.IO(); err == nil {
			// /proc/<pid>/io needs privilege; skip quietly without it
			haveStats = true
			rchar += float64(io.RChar)
			wchar += float64(io.WChar)
			syscr += float64(io.SyscR)
			syscw += float64(io.SyscW)
			read += float64(io.ReadBytes)
			write += float64(io.WriteBytes)
			cancel += float64(io.CancelledWriteBytes)
		}
	}
	if !haveStats {
		c.logger.Debug("no matched process was readable", "pids", len(pids))
		return
	}

	ch <- prometheus.MustNewConstMetric(c.cpuUser, prometheus.CounterValue, user)
	ch <- prometheus.MustNewConstMetric(c.cpuSystem, prometheus.CounterValue, system)
	if haveStart {
		ch <- prometheus.MustNewConstMetric(c.startTime, prometheus.GaugeValue, oldestStart)
		ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue,
			float64(time.Now().UnixNano())/1e9-oldestStart)
	}

	ch <- prometheus.MustNewConstMetric(c.memRSS, prometheus.GaugeValue, rss)
	ch <- prometheus.MustNewConstMetric(c.memVMS, prometheus.GaugeValue, vms)
	ch <- prometheus.MustNewConstMetric(c.memSwap, prometheus.GaugeValue, swap)

	ch <- prometheus.MustNewConstMetric(c.ioRChar, prometheus.CounterValue, rchar)
	ch <- prometheus.MustNewConstMetric(c.ioWChar, prometheus.CounterValue, wchar)
	ch <- prometheus.MustNewConstMetric(c.ioSyscR, prometheus.CounterValue, syscr)
	ch <- prometheus.MustNewConstMetric(c.ioSyscW, prometheus.CounterValue, syscw)
	ch <- prometheus.MustNewConstMetric(c.ioRead, prometheus.CounterValue, read)
	ch <- prometheus.MustNewConstMetric(c.ioWrite, prometheus.CounterValue, write)
	ch <- prometheus.MustNewConstMetric(c.ioCancelled, prometheus.CounterValue, cancel)
}

// resolvePIDs re-evaluates the target set for this scrape. The fixed PID is
// always included when alive; the regexp widens the set by scanning /proc,
// matching cmdline first and falling back to comm.
func (c *ProcessCollector) resolvePIDs() []int {
	set := make(map[int]struct{})
	if c.target.PID > 0 {
		if _, err := c.fs.Proc(c.target.PID); err == nil {
			set[c.target.PID] = struct{}{}
		}
	}

	if c.target.Regex != nil {
		procs, err := c.fs.AllProcs()
		if err != nil {
			c.logger.Warn("scan /proc failed", "err", err)
		}
		for _, p := range procs {
			if args, err := p.CmdLine(); err == nil && c.target.Regex.MatchString(strings.Join(args, " ")) {
				set[p.PID] = struct{}{}
				continue
			}
			if comm, err := p.Comm(); err == nil && c.target.Regex.MatchString(comm) {
				set[p.PID] = struct{}{}
			}
		}
	}

	pids := make([]int, 0, len(set))
	for pid := range set {
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	return pids
}

// clockTicks returns jiffies per second. The CLK_TCK env override eases
// testing; 100 is the near-universal default without cgo's sysconf.
func clockTicks() int {
	v, _ := strconv.Atoi(os.Getenv("CLK_TCK"))
	if v > 0 {
		return v
	}
	return 100
}
