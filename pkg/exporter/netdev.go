//go:build linux

package exporter

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/procfs"
)

// NetdevCollector reports rx/tx counters for one configured interface. An
// interface that does not exist in this network namespace yields no samples.
type NetdevCollector struct {
	fs     procfs.FS
	iface  string
	logger *slog.Logger

	rxBytes   *prometheus.Desc
	rxPackets *prometheus.Desc
	rxErrors  *prometheus.Desc
	rxDropped *prometheus.Desc
	txBytes   *prometheus.Desc
	txPackets *prometheus.Desc
	txErrors  *prometheus.Desc
	txDropped *prometheus.Desc
}

func NewNetdevCollector(procRoot, iface, prefix string, constLabels prometheus.Labels, logger *slog.Logger) (*NetdevCollector, error) {
	fs, err := procfs.NewFS(procRoot)
	if err != nil {
		return nil, err
	}
	desc := func(suffix, help string) *prometheus.Desc {
		return prometheus.NewDesc(prefix+"_net_"+suffix, help, []string{"device"}, constLabels)
	}
	return &NetdevCollector{
		fs:     fs,
		iface:  iface,
		logger: logger,

		rxBytes:   desc("receive_bytes_total", "Bytes received on the interface."),
		rxPackets: desc("receive_packets_total", "Packets received on the interface."),
		rxErrors:  desc("receive_errors_total", "Receive errors on the interface."),
		rxDropped: desc("receive_dropped_total", "Inbound packets dropped on the interface."),
		txBytes:   desc("transmit_bytes_total", "Bytes transmitted on the interface."),
		txPackets: desc("transmit_packets_total", "Packets transmitted on the interface."),
		txErrors:  desc("transmit_errors_total", "Transmit errors on the interface."),
		txDropped: desc("transmit_dropped_total", "Outbound packets dropped on the interface."),
	}, nil
}

func (c *NetdevCollector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

func (c *NetdevCollector) Collect(ch chan<- prometheus.Metric) {
	dev, err := c.fs.NetDev()
	if err != nil {
		c.logger.Warn("read /proc/net/dev failed", "err", err)
		return
	}
	line, ok := dev[c.iface]
	if !ok {
		// interface not present in this namespace; stay quiet like a
		// disabled collector
		return
	}

	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), c.iface)
	}
	counter(c.rxBytes, line.RxBytes)
	counter(c.rxPackets, line.RxPackets)
	counter(c.rxErrors, line.RxErrors)
	counter(c.rxDropped, line.RxDropped)
	counter(c.txBytes, line.TxBytes)
	counter(c.txPackets, line.TxPackets)
	counter(c.txErrors, line.TxErrors)
	counter(c.txDropped, line.TxDropped)
}
