package tracker

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/banshee-data/headtrack/internal/monitoring"
	"github.com/banshee-data/headtrack/internal/network"
	"github.com/banshee-data/headtrack/internal/pose"
)

// UDP receives pose datagrams from another tracking application.
type UDP struct {
	listener *network.Listener
	last     latest
	bad      atomic.Uint64
	throttle *monitoring.Throttle
}

var udpLogf = monitoring.Prefixed("UDP tracker")

// UDPConfig configures a UDP tracker.
type UDPConfig struct {
	Address string
	RcvBuf  int
	// Factory is used by tests to inject a mock socket.
	Factory network.UDPSocketFactory
}

// NewUDP returns a tracker listening on cfg.Address once started.
func NewUDP(cfg UDPConfig) *UDP {
	u := &UDP{throttle: monitoring.NewThrottle(10 * time.Second)}
	u.listener = network.NewListener(network.ListenerConfig{
		Address: cfg.Address,
		RcvBuf:  cfg.RcvBuf,
		Factory: cfg.Factory,
		Handler: u.handle,
	})
	return u
}

// Start binds the socket and receives in the background until ctx is
// cancelled. The returned error covers setup only.
func (u *UDP) Start(ctx context.Context) error {
	conn, err := u.listener.Open()
	if err != nil {
		return err
	}
	udpLogf("listening on %s", conn.LocalAddr())
	go u.listener.Serve(ctx, conn)
	return nil
}

func (u *UDP) handle(packet []byte, from *net.UDPAddr) {
	p, err := pose.ParseWire(packet)
	if err != nil {
		u.bad.Add(1)
		if ok, n := u.throttle.Allow(); ok {
			udpLogf("%d-byte datagram from %v ignored: %v (%d similar suppressed)", len(packet), from, err, n)
		}
		return
	}
	u.last.store(p, time.Now())
}

// Data returns the most recent pose received.
func (u *UDP) Data() pose.Pose { return u.last.load() }

// Center reports false: the sender owns no centering state we can reach.
func (u *UDP) Center() bool { return false }

// Stats returns receive counters.
func (u *UDP) Stats() Stats { return u.last.stats() }

// Malformed returns how many datagrams were too short to decode.
func (u *UDP) Malformed() uint64 { return u.bad.Load() }
