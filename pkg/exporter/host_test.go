//go:build linux

package exporter

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestHostCollector(t *testing.T) {
	procRoot := t.TempDir()
	write(t, procRoot, "stat",
		"cpu  1000 200 300 4000 500 60 70 80 90 10\n"+
			"btime 1600000000\n")
	write(t, procRoot, "meminfo",
		"MemTotal:       16384 kB\n"+
			"MemFree:        8192 kB\n"+
			"MemAvailable:   12288 kB\n"+
			"Buffers:        1024 kB\n"+
			"Cached:         2048 kB\n"+
			"SwapTotal:      4096 kB\n"+
			"SwapFree:       4096 kB\n")

	c, err := NewHostCollector(procRoot, "app", nil, discard())
	require.NoError(t, err)

	// /proc/stat counts jiffies at USER_HZ=100
	expected := `
# HELP app_host_cpu_seconds_total Aggregate host CPU time per mode.
# TYPE app_host_cpu_seconds_total counter
app_host_cpu_seconds_total{cpu="all",mode="user"} 10
app_host_cpu_seconds_total{cpu="all",mode="nice"} 2
app_host_cpu_seconds_total{cpu="all",mode="system"} 3
app_host_cpu_seconds_total{cpu="all",mode="idle"} 40
app_host_cpu_seconds_total{cpu="all",mode="iowait"} 5
app_host_cpu_seconds_total{cpu="all",mode="irq"} 0.6
app_host_cpu_seconds_total{cpu="all",mode="softirq"} 0.7
app_host_cpu_seconds_total{cpu="all",mode="steal"} 0.8
app_host_cpu_seconds_total{cpu="all",mode="guest"} 0.9
app_host_cpu_seconds_total{cpu="all",mode="guest_nice"} 0.1
# HELP app_host_memory_total_bytes Total usable host memory.
# TYPE app_host_memory_total_bytes gauge
app_host_memory_total_bytes 16777216
# HELP app_host_memory_free_bytes Unused host memory.
# TYPE app_host_memory_free_bytes gauge
app_host_memory_free_bytes 8388608
# HELP app_host_memory_available_bytes Memory available for new workloads without swapping.
# TYPE app_host_memory_available_bytes gauge
app_host_memory_available_bytes 12582912
# HELP app_host_memory_cached_bytes Page cache memory.
# TYPE app_host_memory_cached_bytes gauge
app_host_memory_cached_bytes 2097152
# HELP app_host_memory_buffers_bytes Raw block device buffers.
# TYPE app_host_memory_buffers_bytes gauge
app_host_memory_buffers_bytes 1048576
# HELP app_host_swap_total_bytes Total swap space.
# TYPE app_host_swap_total_bytes gauge
app_host_swap_total_bytes 4194304
# HELP app_host_swap_free_bytes Unused swap space.
# TYPE app_host_swap_free_bytes gauge
app_host_swap_free_bytes 4194304
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
}

func TestHostCollector_PartialMeminfo(t *testing.T) {
	procRoot := t.TempDir()
	write(t, procRoot, "stat", "cpu  100 0 0 0 0 0 0 0 0 0\nbtime 1600000000\n")
	// an old kernel without MemAvailable must not emit a zero for it
	write(t, procRoot, "meminfo",
		"MemTotal:       16384 kB\n"+
			"MemFree:        8192 kB\n")

	c, err := NewHostCollector(procRoot, "app", nil, discard())
	require.NoError(t, err)

	expected := `
# HELP app_host_memory_total_bytes Total usable host memory.
# TYPE app_host_memory_total_bytes gauge
app_host_memory_total_bytes 16777216
# HELP app_host_memory_free_bytes Unused host memory.
# TYPE app_host_memory_free_bytes gauge
app_host_memory_free_bytes 8388608
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"app_host_memory_total_bytes",
		"app_host_memory_free_bytes",
		"app_host_memory_available_bytes",
		"app_host_swap_total_bytes",
	))
}
