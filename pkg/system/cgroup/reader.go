//go:build linux

package cgroup

import (
	"errors"
	"os"
	"path/filepath"
	"time"
)

// RawStatBlob is the raw content of one kernel accounting file, produced per
// scrape and discarded after parsing.
type RawStatBlob struct {
	Controller Controller
	Name       string // base file name, e.g. "cpu.stat"
	Path       string
	Content    []byte
	ReadAt     time.Time
}

// statFiles lists the files read per controller and version. The first entry
// is the controller's primary file: if it is gone, the cgroup directory
// itself is treated as gone and the caller should re-resolve. The remaining
// files are optional; kernels that do not expose them simply yield fewer
// parsed fields.
func statFiles(c Controller, v Version) []string {
	switch {
	case c == CPU && v == V1:
		return []string{"cpu.stat", "cpu.cfs_quota_us", "cpu.cfs_period_us"}
	case c == CPU && v == V2:
		return []string{"cpu.stat", "cpu.max"}
	case c == Memory && v == V1:
		return []string{"memory.usage_in_bytes", "memory.limit_in_bytes"}
	case c == Memory && v == V2:
		return []string{"memory.current", "memory.max", "memory.peak", "memory.events"}
	default:
		return nil
	}
}

// Reader performs the per-scrape filesystem reads for one controller path.
// All I/O failures are localized here; a failed read for one controller
// never blocks metrics for the other.
type Reader struct{}

func NewReader() *Reader { return &Reader{} }

// Read reads the file set for cp and returns one blob per file that could be
// read. A missing or unreadable primary file returns an error from the
// package taxonomy (ErrNotFound on a vanished path, which signals the
// locator cache is stale); missing optional files are skipped silently.
// There are no retries within a single scrape.
func (r *Reader) Read(cp ControllerPath) ([]RawStatBlob, error) {
	files := statFiles(cp.Controller, cp.Version)
	if files == nil {
		return nil, ErrUnsupported
	}

	blobs := make([]RawStatBlob, 0, len(files))
	for i, name := range files {
		path := filepath.Join(cp.Dir, name)
		content, err := os.ReadFile(path)
		if err != nil {
			if i == 0 {
				return nil, classify(path, err)
			}
			continue
		}
		blobs = append(blobs, RawStatBlob{
			Controller: cp.Controller,
			Name:       name,
			Path:       path,
			Content:    content,
			ReadAt:     time.Now(),
		})
	}
	return blobs, nil
}

// Blob returns the blob for a file name, or false when the kernel did not
// expose it.
func Blob(blobs []RawStatBlob, name string) (RawStatBlob, bool) {
	for _, b := range blobs {
		if b.Name == name {
			return b, true
		}
	}
	return RawStatBlob{}, false
}

// IsStale reports whether a read failure means the resolved path no longer
// exists and the locator should re-resolve.
func IsStale(err error) bool {
	return errors.Is(err, ErrNotFound)
}
