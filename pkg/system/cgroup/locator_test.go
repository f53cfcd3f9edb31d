//go:build linux

package cgroup

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProc builds a minimal procfs tree for one PID. The mountinfo lines use
// the kernel's 10-field format with no optional fields.
func fakeProc(t *testing.T, pid int, cgroupContent, mountinfoContent string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, fmt.Sprintf("%d", pid))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cgroup"), []byte(cgroupContent), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mountinfo"), []byte(mountinfoContent), 0o644))
	return root
}

func v2MountLine(mountPoint string) string {
	return fmt.Sprintf("30 23 0:26 / %s rw - cgroup2 cgroup2 rw\n", mountPoint)
}

func v1MountLine(mountPoint, superOpts string) string {
	return fmt.Sprintf("31 23 0:27 / %s rw - cgroup cgroup rw,%s\n", mountPoint, superOpts)
}

func TestLocator_ResolveV2(t *testing.T) {
	mp := t.TempDir()
	proc := fakeProc(t, 42, "0::/payload\n", v2MountLine(mp))

	l := NewLocator(WithProcRoot(proc))
	res, err := l.Resolve(42)
	require.NoError(t, err)
	assert.Equal(t, 42, res.PID)

	cp, ok := res.Path(CPU)
	require.True(t, ok)
	assert.Equal(t, V2, cp.Version)
	assert.Equal(t, filepath.Join(mp, "payload"), cp.Dir)

	cp, ok = res.Path(Memory)
	require.True(t, ok)
	assert.Equal(t, V2, cp.Version)
	assert.Equal(t, filepath.Join(mp, "payload"), cp.Dir)
}

func TestLocator_ResolveV1(t *testing.T) {
	cpuMP := t.TempDir()
	memMP := t.TempDir()
	mountinfo := fmt.Sprintf("31 23 0:27 / %s rw - cgroup cgroup rw,cpu,cpuacct\n", cpuMP) +
		fmt.Sprintf("32 23 0:28 / %s rw - cgroup cgroup rw,memory\n", memMP)
	proc := fakeProc(t, 42, "4:cpu,cpuacct:/svc\n3:memory:/svc\n", mountinfo)

	l := NewLocator(WithProcRoot(proc))
	res, err := l.Resolve(42)
	require.NoError(t, err)

	cp, ok := res.Path(CPU)
	require.True(t, ok)
	assert.Equal(t, V1, cp.Version)
	assert.Equal(t, filepath.Join(cpuMP, "svc"), cp.Dir)

	cp, ok = res.Path(Memory)
	require.True(t, ok)
	assert.Equal(t, V1, cp.Version)
	assert.Equal(t, filepath.Join(memMP, "svc"), cp.Dir)
}

func TestLocator_ResolveV1_CpuacctOnlyHierarchy(t *testing.T) {
	mp := t.TempDir()
	proc := fakeProc(t, 42, "4:cpuacct:/svc\n", v1MountLine(mp, "cpuacct"))

	l := NewLocator(WithProcRoot(proc))
	res, err := l.Resolve(42)
	require.NoError(t, err)

	cp, ok := res.Path(CPU)
	require.True(t, ok)
	assert.Equal(t, V1, cp.Version)
	assert.Equal(t, filepath.Join(mp, "svc"), cp.Dir)
}

func TestLocator_ResolveHybrid(t *testing.T) {
	// memory lives in a v1 hierarchy, cpu only in the unified one; each
	// controller follows where the pid is actually accounted
	memMP := t.TempDir()
	v2MP := t.TempDir()
	mountinfo := fmt.Sprintf("32 23 0:28 / %s rw - cgroup cgroup rw,memory\n", memMP) +
		v2MountLine(v2MP)
	proc := fakeProc(t, 42, "3:memory:/legacy\n0::/unified\n", mountinfo)

	l := NewLocator(WithProcRoot(proc))
	res, err := l.Resolve(42)
	require.NoError(t, err)

	cp, ok := res.Path(Memory)
	require.True(t, ok)
	assert.Equal(t, V1, cp.Version)
	assert.Equal(t, filepath.Join(memMP, "legacy"), cp.Dir)

	cp, ok = res.Path(CPU)
	require.True(t, ok)
	assert.Equal(t, V2, cp.Version)
	assert.Equal(t, filepath.Join(v2MP, "unified"), cp.Dir)
}

func TestLocator_ContainerRootStripping(t *testing.T) {
	// inside a container the cgroup2 mount's root is the container's own
	// subtree; the overlapping prefix must not be doubled
	mp := t.TempDir()
	mountinfo := fmt.Sprintf("30 23 0:26 /payload %s rw - cgroup2 cgroup2 rw\n", mp)
	proc := fakeProc(t, 42, "0::/payload/child\n", mountinfo)

	l := NewLocator(WithProcRoot(proc))
	res, err := l.Resolve(42)
	require.NoError(t, err)

	cp, ok := res.Path(CPU)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(mp, "child"), cp.Dir)
}

func TestLocator_WithCgroupRoot(t *testing.T) {
	// no cgroup2 line in mountinfo at all; the explicit root takes over
	override := t.TempDir()
	proc := fakeProc(t, 42, "0::/payload\n", "20 23 0:20 / /sys rw - sysfs sysfs rw\n")

	l := NewLocator(WithProcRoot(proc), WithCgroupRoot(override))
	res, err := l.Resolve(42)
	require.NoError(t, err)

	cp, ok := res.Path(CPU)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(override, "payload"), cp.Dir)
}

func TestLocator_MissingPID(t *testing.T) {
	proc := t.TempDir()

	l := NewLocator(WithProcRoot(proc))
	_, err := l.Resolve(4242)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocator_NoCgroupMounts(t *testing.T) {
	proc := fakeProc(t, 42, "0::/payload\n", "20 23 0:20 / /sys rw - sysfs sysfs rw\n")

	l := NewLocator(WithProcRoot(proc))
	res, err := l.Resolve(42)
	require.NoError(t, err)
	assert.Empty(t, res.Paths)
}

func TestLocator_CachesAndInvalidates(t *testing.T) {
	mp := t.TempDir()
	proc := fakeProc(t, 42, "0::/old\n", v2MountLine(mp))

	l := NewLocator(WithProcRoot(proc))
	first, err := l.Resolve(42)
	require.NoError(t, err)

	again, err := l.Resolve(42)
	require.NoError(t, err)
	assert.Same(t, first, again)

	// the pid migrated; the cache keeps serving the old path until dropped
	cgroupFile := filepath.Join(proc, "42", "cgroup")
	require.NoError(t, os.WriteFile(cgroupFile, []byte("0::/new\n"), 0o644))

	cached, err := l.Resolve(42)
	require.NoError(t, err)
	cp, _ := cached.Path(CPU)
	assert.Equal(t, filepath.Join(mp, "old"), cp.Dir)

	l.Invalidate()
	fresh, err := l.Resolve(42)
	require.NoError(t, err)
	cp, ok := fresh.Path(CPU)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(mp, "new"), cp.Dir)
}
