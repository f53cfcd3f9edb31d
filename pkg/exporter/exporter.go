//go:build linux

// Package exporter contains the prometheus collectors served on /metrics.
// Every collector reads the kernel on each scrape and emits const metrics;
// nothing is cached between scrapes, so concurrent scrapes are independent.
package exporter

import "sort"

// labelPairs splits a label map into parallel key/value slices with a stable
// key order, the shape MustNewConstMetric wants.
func labelPairs(labels map[string]string) ([]string, []string) {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals := make([]string, len(keys))
	for i, k := range keys {
		vals[i] = labels[k]
	}
	return keys, vals
}
