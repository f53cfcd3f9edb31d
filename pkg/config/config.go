// Package config loads the exporter configuration from the environment,
// the way the tool is deployed (container env vars), with flag overrides
// applied by the CLI layer.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
)

type Config struct {
	// ListenAddr is the HTTP bind address for /metrics. EXPORTER_LISTEN,
	// default ":9100".
	ListenAddr string

	// TargetPID is the process whose cgroup is inspected. TARGET_PID,
	// required.
	TargetPID int

	// TargetRegexp optionally widens the process collector to every PID
	// whose cmdline or comm matches. TARGET_PID_REGEXP.
	TargetRegexp *regexp.Regexp

	// MetricsPrefix is prepended to every metric name, normalized to carry
	// no trailing underscore. METRICS_PREFIX, required.
	MetricsPrefix string

	// StaticLabels are attached to every metric as const labels.
	// METRICS_STATIC_LABELS, "k=v,k2=v2".
	StaticLabels map[string]string

	// ProcRoot and CgroupRoot point at alternate kernel filesystem mounts,
	// mainly for tests and unusual container layouts. PROC_ROOT default
	// "/proc"; CGROUP_ROOT empty means discover from mountinfo.
	ProcRoot   string
	CgroupRoot string

	// NetInterface selects the interface for network counters; empty
	// disables them. NET_INTERFACE, default "eth0".
	NetInterface string

	// DownwardDir is an optional Kubernetes Downward API volume rendered as
	// an info metric. DOWNWARD_API_DIR.
	DownwardDir string

	// LogLevel from LOG_LEVEL (debug/info/warn/error), default info.
	LogLevel slog.Level
}

// FromEnv builds a Config from the process environment and validates the
// required values.
func FromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr:   envOr("EXPORTER_LISTEN", ":9100"),
		ProcRoot:     envOr("PROC_ROOT", "/proc"),
		CgroupRoot:   os.Getenv("CGROUP_ROOT"),
		NetInterface: envOr("NET_INTERFACE", "eth0"),
		DownwardDir:  os.Getenv("DOWNWARD_API_DIR"),
	}

	labels, err := parseStaticLabels(os.Getenv("METRICS_STATIC_LABELS"))
	if err != nil {
		return nil, err
	}
	cfg.StaticLabels = labels

	pidStr := os.Getenv("TARGET_PID")
	if pidStr == "" {
		return nil, fmt.Errorf("TARGET_PID is required")
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return nil, fmt.Errorf("TARGET_PID %q: must be a positive integer", pidStr)
	}
	cfg.TargetPID = pid

	if expr := os.Getenv("TARGET_PID_REGEXP"); expr != "" {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("TARGET_PID_REGEXP: %w", err)
		}
		cfg.TargetRegexp = re
	}

	prefix, ok := normalizePrefix(os.Getenv("METRICS_PREFIX"))
	if !ok {
		return nil, fmt.Errorf("METRICS_PREFIX is required and must be non-empty")
	}
	cfg.MetricsPrefix = prefix

	cfg.LogLevel, err = parseLogLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// normalizePrefix trims whitespace and any trailing underscores so that name
// assembly always inserts exactly one separator.
func normalizePrefix(raw string) (string, bool) {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "_")
	return trimmed, trimmed != ""
}

// labelNameRE is the prometheus label name charset; an invalid key would
// panic inside the collectors on every scrape, so it is rejected up front.
var labelNameRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func parseStaticLabels(s string) (map[string]string, error) {
	labels := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if !labelNameRE.MatchString(k) {
			return nil, fmt.Errorf("METRICS_STATIC_LABELS key %q: not a valid label name", k)
		}
		labels[k] = strings.TrimSpace(v)
	}
	return labels, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("LOG_LEVEL %q: expected debug, info, warn or error", s)
	}
}
