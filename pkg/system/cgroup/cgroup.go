//go:build linux

package cgroup

import (
	"fmt"
	"strings"

	"github.com/prometheus/procfs"
)

type Version int

const (
	Unsupported Version = iota // non-Linux or no cgroup mounts
	V1                         // legacy multi-hierarchy cgroup v1
	V2                         // unified cgroup v2
	Hybrid                     // both v1 and v2 mounted
)

func (v Version) String() string {
	switch v {
	case V1:
		return "cgroup v1"
	case V2:
		return "cgroup v2"
	case Hybrid:
		return "cgroup hybrid"
	default:
		return "unsupported"
	}
}

// Controller is a cgroup resource subsystem tracked by this package.
type Controller int

const (
	CPU Controller = iota
	Memory
)

func (c Controller) String() string {
	switch c {
	case CPU:
		return "cpu"
	case Memory:
		return "memory"
	default:
		return fmt.Sprintf("controller(%d)", int(c))
	}
}

// Detect returns the host cgroup mode and a human-readable detail string.
// It inspects the current process's mountinfo for cgroup filesystems.
func Detect(procRoot string) (Version, string, error) {
	fs, err := procfs.NewFS(procRoot)
	if err != nil {
		return Unsupported, "", fmt.Errorf("open procfs: %w", err)
	}
	self, err := fs.Self()
	if err != nil {
		return Unsupported, "", fmt.Errorf("open self: %w", err)
	}
	mounts, err := self.MountInfo()
	if err != nil {
		return Unsupported, "", fmt.Errorf("read mountinfo: %w", err)
	}

	var v1Pts, v2Pts []string
	for _, m := range mounts {
		switch m.FSType {
		case "cgroup2":
			v2Pts = append(v2Pts, m.MountPoint)
		case "cgroup":
			v1Pts = append(v1Pts, m.MountPoint)
		}
	}

	switch {
	case len(v1Pts) > 0 && len(v2Pts) > 0:
		return Hybrid, fmt.Sprintf("cgroup2 on %s; cgroup v1 on %s",
			strings.Join(v2Pts, ","), strings.Join(v1Pts, ",")), nil
	case len(v2Pts) > 0:
		return V2, fmt.Sprintf("cgroup2 on %s", strings.Join(v2Pts, ",")), nil
	case len(v1Pts) > 0:
		return V1, fmt.Sprintf("cgroup v1 on %s", strings.Join(v1Pts, ",")), nil
	default:
		return Unsupported, "no cgroup mounts found", nil
	}
}
