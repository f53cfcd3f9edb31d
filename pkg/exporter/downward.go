//go:build linux

package exporter

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// DownwardCollector renders a Kubernetes Downward API volume as an info
// metric: one `..._downward_info{field,value} 1` sample per file, where the
// field is the file's path relative to the volume root.
type DownwardCollector struct {
	dir    string
	logger *slog.Logger

	info *prometheus.Desc
}

func NewDownwardCollector(dir, prefix string, constLabels prometheus.Labels, logger *slog.Logger) *DownwardCollector {
	return &DownwardCollector{
		dir:    dir,
		logger: logger,
		info: prometheus.NewDesc(prefix+"_downward_info",
			"Downward API fields exposed to this pod; value is always 1.",
			[]string{"field", "value"}, constLabels),
	}
}

func (c *DownwardCollector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

func (c *DownwardCollector) Collect(ch chan<- prometheus.Metric) {
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			// Downward API volumes use dot-dir symlink tricks; skip what
			// cannot be read instead of failing the walk.
			return nil
		}
		rel, err := filepath.Rel(c.dir, path)
		if err != nil {
			rel = path
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		ch <- prometheus.MustNewConstMetric(c.info, prometheus.GaugeValue, 1,
			filepath.ToSlash(rel), strings.TrimSpace(string(content)))
		return nil
	})
	if err != nil {
		c.logger.Warn("walk downward dir failed", "dir", c.dir, "err", err)
	}
}
