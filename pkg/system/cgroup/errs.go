package cgroup

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrNotFound indicates that the target PID, its cgroup descriptor, or a
	// previously resolved cgroup path no longer exists. Callers should
	// re-resolve rather than treat this as fatal.
	ErrNotFound = errors.New("cgroup: not found")

	// ErrPermission indicates insufficient privilege to read a kernel
	// accounting file.
	ErrPermission = errors.New("cgroup: permission denied")

	// ErrMalformed indicates that a kernel file's content did not match the
	// expected shape for the detected cgroup version.
	ErrMalformed = errors.New("cgroup: malformed stat content")

	// ErrUnsupported marks a controller or field that this kernel or cgroup
	// version does not expose. It is a "no data" marker, not a failure.
	ErrUnsupported = errors.New("cgroup: not supported")
)

// classify maps a filesystem error onto the package taxonomy, keeping the
// offending path in the message.
func classify(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%s: %w", path, ErrPermission)
	default:
		return fmt.Errorf("%s: %w", path, err)
	}
}
