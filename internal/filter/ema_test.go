package filter

import (
	"math"
	"testing"

	"github.com/banshee-data/headtrack/internal/pose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEMA_Validates(t *testing.T) {
	for _, a := range [][2]float64{{0, 0.5}, {0.5, 1.5}, {math.NaN(), 0.5}, {-1, 1}} {
		_, err := NewEMA(a[0], a[1])
		assert.Error(t, err, "%v", a)
	}
	_, err := NewEMA(1, 1)
	assert.NoError(t, err)
}

func TestEMA_Smooths(t *testing.T) {
	f, err := NewEMA(0.5, 0.25)
	require.NoError(t, err)

	assert.Equal(t, pose.Pose{}, f.Filter(pose.Pose{}))
	out := f.Filter(pose.Pose{10, 0, 0, 40, 0, 0})
	assert.InDelta(t, 5, out[pose.TX], 1e-12)
	assert.InDelta(t, 10, out[pose.Yaw], 1e-12)

	out = f.Filter(pose.Pose{10, 0, 0, 40, 0, 0})
	assert.InDelta(t, 7.5, out[pose.TX], 1e-12)
	assert.InDelta(t, 17.5, out[pose.Yaw], 1e-12)
}

func TestEMA_WrapsAngles(t *testing.T) {
	f, err := NewEMA(1, 0.5)
	require.NoError(t, err)

	f.Filter(pose.Pose{0, 0, 0, 170, 0, 0})
	out := f.Filter(pose.Pose{0, 0, 0, -170, 0, 0})
	assert.InDelta(t, 180, math.Abs(out[pose.Yaw]), 1e-9, "takes the short way round")

	out = f.Filter(pose.Pose{0, 0, 0, -170, 0, 0})
	assert.InDelta(t, -175, out[pose.Yaw], 1e-9)
}

func TestEMA_CenterResets(t *testing.T) {
	f, err := NewEMA(0.1, 0.1)
	require.NoError(t, err)
	f.Filter(pose.Pose{100, 100, 100, 100, 50, 50})

	f.Center()
	in := pose.Pose{1, 2, 3, 4, 5, 6}
	assert.Equal(t, in, f.Filter(in))
}

func TestEMA_IdentityAtAlphaOne(t *testing.T) {
	f, err := NewEMA(1, 1)
	require.NoError(t, err)
	f.Filter(pose.Pose{5, 5, 5, 5, 5, 5})
	in := pose.Pose{-1, 2, -3, 179, -89, 30}
	got := f.Filter(in)
	for i := range in {
		assert.InDelta(t, in[i], got[i], 1e-12)
	}
}
