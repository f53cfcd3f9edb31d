//go:build linux

package exporter

import (
	"log/slog"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/procfs"
)

// tcpStateNames maps the kernel's numeric socket states from
// /proc/net/tcp{,6} to their familiar names.
var tcpStateNames = map[uint64]string{
	1:  "ESTABLISHED",
	2:  "SYN_SENT",
	3:  "SYN_RECV",
	4:  "FIN_WAIT1",
	5:  "FIN_WAIT2",
	6:  "TIME_WAIT",
	7:  "CLOSE",
	8:  "CLOSE_WAIT",
	9:  "LAST_ACK",
	10: "LISTEN",
	11: "CLOSING",
	12: "NEW_SYN_RECV",
}

// TCPCollector counts TCP connections by state and IP version.
//
// IPv4 connections carried over IPv6 sockets appear in /proc/net/tcp6 as
// IPv4-mapped addresses (::ffff:W.X.Y.Z); those are counted as ip_version
// "4" so the split reflects actual address families.
type TCPCollector struct {
	fs     procfs.FS
	logger *slog.Logger

	connections *prometheus.Desc
}

func NewTCPCollector(procRoot, prefix string, constLabels prometheus.Labels, logger *slog.Logger) (*TCPCollector, error) {
	fs, err := procfs.NewFS(procRoot)
	if err != nil {
		return nil, err
	}
	return &TCPCollector{
		fs:     fs,
		logger: logger,
		connections: prometheus.NewDesc(prefix+"_tcp_connections",
			"TCP connections by state and IP version.",
			[]string{"state", "ip_version"}, constLabels),
	}, nil
}

func (c *TCPCollector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

func (c *TCPCollector) Collect(ch chan<- prometheus.Metric) {
	type key struct {
		state uint64
		ipVer string
	}
	counts := make(map[key]float64)

	if lines, err := c.fs.NetTCP(); err != nil {
		c.logger.Warn("read /proc/net/tcp failed", "err", err)
		return
	} else {
		for _, l := range lines {
			counts[key{l.St, "4"}]++
		}
	}

	// IPv6 may be disabled; a missing tcp6 is not an error.
	if lines, err := c.fs.NetTCP6(); err == nil {
		for _, l := range lines {
			ver := "6"
			if isIPv4Mapped(l.LocalAddr) || isIPv4Mapped(l.RemAddr) {
				ver = "4"
			}
			counts[key{l.St, ver}]++
		}
	}

	// full state grid, zero-filled, so dashboards see stable series
	for state, name := range tcpStateNames {
		for _, ver := range []string{"4", "6"} {
			ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue,
				counts[key{state, ver}], name, ver)
		}
	}
}

func isIPv4Mapped(ip net.IP) bool {
	return ip.To4() != nil
}
