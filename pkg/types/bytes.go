package types

import (
	"fmt"
	"math"
)

// Bytes is a uint64 wrapper representing a size in bytes.
type Bytes uint64

// Unlimited is the sentinel for a cgroup limit file that reports no limit
// (the kernel's "max" value, or the page-rounded maximum on cgroup v1).
const Unlimited = Bytes(math.MaxUint64)

// Humanized returns a human-readable string with automatic unit (B, KB, MB, GB, TB).
func (b Bytes) Humanized() string {
	if b == Unlimited {
		return "unlimited"
	}
	v := float64(b)
	switch {
	case b >= 1<<40:
		return fmt.Sprintf("%.2f TB", v/(1<<40))
	case b >= 1<<30:
		return fmt.Sprintf("%.2f GB", v/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.2f MB", v/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.2f KB", v/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// Float64 converts to a metric value; Unlimited maps to +Inf so that
// "no limit" is distinguishable from any real byte count.
func (b Bytes) Float64() float64 {
	if b == Unlimited {
		return math.Inf(1)
	}
	return float64(b)
}
