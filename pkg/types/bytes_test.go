package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytes_Humanized(t *testing.T) {
	assert.Equal(t, "512 B", Bytes(512).Humanized())
	assert.Equal(t, "1.00 KB", Bytes(1024).Humanized())
	assert.Equal(t, "1.50 MB", Bytes(3<<20/2).Humanized())
	assert.Equal(t, "2.00 GB", Bytes(2<<30).Humanized())
	assert.Equal(t, "1.00 TB", Bytes(1<<40).Humanized())
	assert.Equal(t, "unlimited", Unlimited.Humanized())
}

func TestBytes_Float64(t *testing.T) {
	assert.Equal(t, float64(4096), Bytes(4096).Float64())
	assert.True(t, math.IsInf(Unlimited.Float64(), 1))

	// The sentinel must never collapse to zero.
	assert.NotEqual(t, 0.0, Unlimited.Float64())
}
