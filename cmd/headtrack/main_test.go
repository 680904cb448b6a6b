package main

import (
	"testing"

	"github.com/banshee-data/headtrack/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTracker(t *testing.T) {
	orig, origPcap := *source, *pcapFile
	t.Cleanup(func() { *source, *pcapFile = orig, origPcap })

	*source = "synthetic"
	trk, err := newTracker()
	require.NoError(t, err)
	assert.IsType(t, &tracker.Synthetic{}, trk)

	*source = "udp"
	trk, err = newTracker()
	require.NoError(t, err)
	assert.IsType(t, &tracker.UDP{}, trk)

	*source = "pcap"
	*pcapFile = ""
	_, err = newTracker()
	assert.Error(t, err, "pcap tracker needs a file")

	*pcapFile = "capture.pcap"
	trk, err = newTracker()
	require.NoError(t, err)
	assert.IsType(t, &tracker.Replay{}, trk)

	*source = "joystick"
	_, err = newTracker()
	assert.ErrorContains(t, err, "joystick")
}
