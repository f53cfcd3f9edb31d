// Package cgroup resolves a PID's cgroup membership and reads the kernel's
// CPU and memory accounting for it, tolerating both cgroup interfaces.
//
// The pipeline is three small pieces used per scrape:
//
//   - Locator: /proc/<pid>/cgroup + /proc/<pid>/mountinfo -> one directory
//     per controller. cgroup v1 maps each controller onto its own hierarchy
//     mount; v2 maps both onto the unified hierarchy. The result is cached
//     in an atomically swapped cell and re-resolved only when a read reports
//     the path gone (process re-exec, cgroup migration, group removal).
//
//   - Reader: one independent file read per accounting file. A failure is
//     scoped to that file; partial results are the normal case, not an
//     error.
//
//   - Parsers: decode the version-specific file shapes into one
//     version-independent contract. Throttled time is always nanoseconds
//     (v2 reports µs and is converted); "max" limits become the
//     types.Unlimited sentinel; fields a kernel does not expose stay nil so
//     that "not measured" never reads as zero.
//
// Counters are passed through cumulatively as the kernel reports them; this
// package never computes deltas or rates.
//
// Errors follow a small taxonomy: ErrNotFound (target or path gone,
// re-resolve and retry next scrape), ErrPermission, ErrMalformed (content
// does not match the version's shape, including v1/v2 spelling mismatches),
// and ErrUnsupported (a first-class "no data" marker, not a failure).
package cgroup
