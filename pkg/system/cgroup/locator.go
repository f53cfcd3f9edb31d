//go:build linux

package cgroup

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/procfs"
)

// ControllerPath is the resolved on-disk location of one controller's
// accounting files for a given PID. Immutable once resolved.
type ControllerPath struct {
	Controller Controller
	Dir        string
	Version    Version
}

// Resolution is the complete locator result for one PID. It is swapped
// wholesale under re-resolution so concurrent readers never observe a
// half-updated path set.
type Resolution struct {
	PID        int
	Paths      []ControllerPath
	ResolvedAt time.Time
}

// Path returns the resolved path for a controller, or false when the
// controller was not present in any hierarchy the PID belongs to.
func (r *Resolution) Path(c Controller) (ControllerPath, bool) {
	for _, p := range r.Paths {
		if p.Controller == c {
			return p, true
		}
	}
	return ControllerPath{}, false
}

// LocatorOption configures a Locator.
type LocatorOption func(*Locator)

// WithProcRoot points the locator at an alternate procfs mount
// (useful for testing with a fake /proc tree).
func WithProcRoot(path string) LocatorOption {
	return func(l *Locator) { l.procRoot = path }
}

// WithCgroupRoot overrides the unified-hierarchy mount point instead of
// discovering it from mountinfo. Matches the CGROUP_ROOT environment knob.
func WithCgroupRoot(path string) LocatorOption {
	return func(l *Locator) { l.cgroupRoot = path }
}

// Locator maps a PID to its per-controller cgroup directories, branching
// between the v1 per-controller hierarchies and the v2 unified hierarchy.
//
// The result is cached in a single atomically swapped cell. Invalidate drops
// it; the next Resolve pays one filesystem walk. Readers trigger
// invalidation when a resolved path starts returning ErrNotFound, so the
// re-resolution cost is bounded by actual topology changes.
type Locator struct {
	procRoot   string
	cgroupRoot string

	cached atomic.Pointer[Resolution]
}

func NewLocator(opts ...LocatorOption) *Locator {
	l := &Locator{procRoot: "/proc"}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Resolve returns the cached resolution for pid, resolving it on first use
// or after Invalidate. A missing PID or unreadable cgroup descriptor yields
// ErrNotFound; the caller is expected to keep serving and retry later.
func (l *Locator) Resolve(pid int) (*Resolution, error) {
	if res := l.cached.Load(); res != nil && res.PID == pid {
		return res, nil
	}
	res, err := l.resolve(pid)
	if err != nil {
		return nil, err
	}
	l.cached.Store(res)
	return res, nil
}

// Invalidate drops the cached resolution so the next Resolve re-reads the
// PID's cgroup membership.
func (l *Locator) Invalidate() {
	l.cached.Store(nil)
}

func (l *Locator) resolve(pid int) (*Resolution, error) {
	pfs, err := procfs.NewFS(l.procRoot)
	if err != nil {
		return nil, fmt.Errorf("open procfs %s: %w", l.procRoot, err)
	}
	proc, err := pfs.Proc(pid)
	if err != nil {
		return nil, fmt.Errorf("pid %d: %w", pid, ErrNotFound)
	}
	cgs, err := proc.Cgroups()
	if err != nil {
		return nil, fmt.Errorf("pid %d cgroup descriptor: %w", pid, ErrNotFound)
	}
	mounts, err := proc.MountInfo()
	if err != nil {
		return nil, fmt.Errorf("pid %d mountinfo: %w", pid, ErrNotFound)
	}

	res := &Resolution{PID: pid, ResolvedAt: time.Now()}
	for _, c := range []Controller{CPU, Memory} {
		if cp, ok := l.locate(c, cgs, mounts); ok {
			res.Paths = append(res.Paths, cp)
		}
	}
	return res, nil
}

// locate picks the hierarchy for one controller. A v1 membership line naming
// the controller wins; the unified v2 line is the fallback. On hybrid hosts
// this follows where the PID is actually accounted.
func (l *Locator) locate(c Controller, cgs []procfs.Cgroup, mounts []*procfs.MountInfo) (ControllerPath, bool) {
	var unifiedPath string
	for _, cg := range cgs {
		if cg.HierarchyID == 0 && len(cg.Controllers) == 0 {
			unifiedPath = cg.Path
			continue
		}
		if !memberOf(cg.Controllers, c) {
			continue
		}
		if mp, ok := v1Mount(mounts, c); ok {
			return ControllerPath{
				Controller: c,
				Dir:        joinHierarchy(mp, cg.Path),
				Version:    V1,
			}, true
		}
	}

	if unifiedPath == "" {
		return ControllerPath{}, false
	}
	mp := v2Mount(mounts)
	if l.cgroupRoot != "" {
		mp = &procfs.MountInfo{MountPoint: l.cgroupRoot, Root: "/"}
	}
	if mp == nil {
		return ControllerPath{}, false
	}
	return ControllerPath{
		Controller: c,
		Dir:        joinHierarchy(mp, unifiedPath),
		Version:    V2,
	}, true
}

func memberOf(controllers []string, c Controller) bool {
	for _, name := range controllers {
		if name == c.String() {
			return true
		}
		// The v1 cpu controller is usually co-mounted as "cpu,cpuacct";
		// a cpuacct-only hierarchy still carries the throttling stats.
		if c == CPU && name == "cpuacct" {
			return true
		}
	}
	return false
}

func v1Mount(mounts []*procfs.MountInfo, c Controller) (*procfs.MountInfo, bool) {
	for _, m := range mounts {
		if m.FSType != "cgroup" {
			continue
		}
		if _, ok := m.SuperOptions[c.String()]; ok {
			return m, true
		}
		if c == CPU {
			if _, ok := m.SuperOptions["cpuacct"]; ok {
				return m, true
			}
		}
	}
	return nil, false
}

func v2Mount(mounts []*procfs.MountInfo) *procfs.MountInfo {
	for _, m := range mounts {
		if m.FSType == "cgroup2" {
			return m
		}
	}
	return nil
}

// joinHierarchy maps a hierarchy-relative cgroup path onto a mount point.
// The mount's own root may be a subtree of the hierarchy (containers bind a
// child group), in which case the overlapping prefix is stripped.
func joinHierarchy(m *procfs.MountInfo, cgPath string) string {
	rel := cgPath
	if m.Root != "" && m.Root != "/" && strings.HasPrefix(rel, m.Root) {
		rel = strings.TrimPrefix(rel, m.Root)
	}
	return filepath.Join(m.MountPoint, rel)
}
