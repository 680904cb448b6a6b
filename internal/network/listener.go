package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/banshee-data/headtrack/internal/monitoring"
)

// pollInterval bounds each read so cancellation is noticed promptly.
const pollInterval = 100 * time.Millisecond

// Handler receives each datagram. The slice is only valid for the call.
type Handler func(packet []byte, from *net.UDPAddr)

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	// Address is the local host:port to bind.
	Address string
	// RcvBuf is the OS receive buffer size; zero keeps the default.
	RcvBuf int
	// Factory opens the socket. Nil uses net.ListenUDP.
	Factory UDPSocketFactory
	Handler Handler
}

// Listener runs a UDP receive loop.
type Listener struct {
	cfg ListenerConfig
}

// NewListener returns a listener for cfg.
func NewListener(cfg ListenerConfig) *Listener {
	if cfg.Factory == nil {
		cfg.Factory = RealUDPSocketFactory{}
	}
	return &Listener{cfg: cfg}
}

// Open binds the socket. Errors are returned before any goroutine starts
// so callers can report bad addresses synchronously.
func (l *Listener) Open() (UDPSocket, error) {
	addr, err := net.ResolveUDPAddr("udp", l.cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address %q: %w", l.cfg.Address, err)
	}
	conn, err := l.cfg.Factory.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %q: %w", l.cfg.Address, err)
	}
	if l.cfg.RcvBuf > 0 {
		if err := conn.SetReadBuffer(l.cfg.RcvBuf); err != nil {
			monitoring.Logf("Warning: failed to set UDP receive buffer to %d: %v", l.cfg.RcvBuf, err)
		}
	}
	return conn, nil
}

// Serve reads from conn until ctx is cancelled, then closes it.
func (l *Listener) Serve(ctx context.Context, conn UDPSocket) error {
	defer conn.Close()

	buffer := make([]byte, 2048)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(pollInterval))

		n, addr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			monitoring.Logf("UDP read error on %s: %v", l.cfg.Address, err)
			continue
		}
		if l.cfg.Handler != nil {
			l.cfg.Handler(buffer[:n], addr)
		}
	}
}
