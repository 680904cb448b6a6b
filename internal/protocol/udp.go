// Package protocol holds output plugins that receive the final pose each
// cycle.
package protocol

import (
	"context"
	"time"

	"github.com/banshee-data/headtrack/internal/network"
	"github.com/banshee-data/headtrack/internal/pose"
)

// UDP sends each pose as a 48-byte datagram to a game or another tracker
// instance. Poses are queued and written off the pipeline goroutine; if
// the socket falls behind, poses are dropped rather than delayed.
type UDP struct {
	sender *network.Sender
	cancel context.CancelFunc
	buf    []byte
	unsent bool // the last pose was dropped
}

// finalPoseWait bounds how long Close waits to queue a dropped last pose.
const finalPoseWait = 250 * time.Millisecond

// DialUDP connects to addr and starts the send loop.
func DialUDP(addr string) (*UDP, error) {
	s, err := network.DialSender(addr, 16, time.Minute)
	if err != nil {
		return nil, err
	}
	return newUDP(s), nil
}

func newUDP(s *network.Sender) *UDP {
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	return &UDP{sender: s, cancel: cancel, buf: make([]byte, 0, pose.WireSize)}
}

// Pose queues p. It is called from the pipeline goroutine only.
func (u *UDP) Pose(p pose.Pose) {
	u.buf = p.AppendWire(u.buf[:0])
	u.unsent = !u.sender.SendAsync(u.buf)
}

// Dropped returns the number of poses dropped because the socket fell
// behind, since the last periodic log summary.
func (u *UDP) Dropped() uint64 { return u.sender.Dropped() }

// Failed returns the number of poses whose write failed.
func (u *UDP) Failed() uint64 { return u.sender.Failed() }

// Close flushes queued poses and closes the socket. Call it after the
// pipeline has stopped so the final neutral pose is delivered; if that
// pose found the queue full, Close waits up to finalPoseWait to queue it.
func (u *UDP) Close() error {
	if u.unsent {
		ctx, cancel := context.WithTimeout(context.Background(), finalPoseWait)
		u.unsent = !u.sender.SendWait(ctx, u.buf)
		cancel()
	}
	u.cancel()
	u.sender.Wait()
	return u.sender.Close()
}

// Nop discards poses.
type Nop struct{}

func (Nop) Pose(pose.Pose) {}
