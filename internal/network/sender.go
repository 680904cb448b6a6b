package network

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/banshee-data/headtrack/internal/monitoring"
)

// Sender writes datagrams from a buffered queue on its own goroutine so
// the caller never blocks on the socket. When the queue is full the
// datagram is dropped and counted.
type Sender struct {
	conn        io.WriteCloser
	queue       chan []byte
	logInterval time.Duration
	address     string

	dropped atomic.Uint64
	failed  atomic.Uint64
	done    chan struct{}
}

// DialSender connects a UDP sender to addr.
func DialSender(addr string, queueLen int, logInterval time.Duration) (*Sender, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve send address %q: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create send connection: %w", err)
	}
	return NewSender(conn, addr, queueLen, logInterval), nil
}

// NewSender wraps an already connected writer.
func NewSender(conn io.WriteCloser, addr string, queueLen int, logInterval time.Duration) *Sender {
	if queueLen <= 0 {
		queueLen = 64
	}
	if logInterval <= 0 {
		logInterval = time.Minute
	}
	return &Sender{
		conn:        conn,
		queue:       make(chan []byte, queueLen),
		logInterval: logInterval,
		address:     addr,
		done:        make(chan struct{}),
	}
}

// Start runs the write loop until ctx is cancelled, then flushes the
// queue. Write errors and drops are summarized once per log interval.
func (s *Sender) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		errCount := 0
		var lastErr error
		ticker := time.NewTicker(s.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.drain()
				return
			case pkt := <-s.queue:
				if _, err := s.conn.Write(pkt); err != nil {
					s.failed.Add(1)
					errCount++
					lastErr = err
				}
			case <-ticker.C:
				if errCount > 0 {
					monitoring.Logf("%d datagrams to %s failed (latest: %v)", errCount, s.address, lastErr)
					errCount = 0
					lastErr = nil
				}
				if d := s.dropped.Swap(0); d > 0 {
					monitoring.Logf("dropped %d datagrams to %s, queue full", d, s.address)
				}
			}
		}
	}()
	monitoring.Logf("sending poses to %s", s.address)
}

// drain writes whatever is still queued, so a final pose sent just before
// shutdown is not lost.
func (s *Sender) drain() {
	for {
		select {
		case pkt := <-s.queue:
			if _, err := s.conn.Write(pkt); err != nil {
				s.failed.Add(1)
			}
		default:
			return
		}
	}
}

// SendAsync queues a copy of pkt without blocking. It reports false when
// the queue was full and the datagram was dropped.
func (s *Sender) SendAsync(pkt []byte) bool {
	cp := make([]byte, len(pkt))
	copy(cp, pkt)
	select {
	case s.queue <- cp:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// SendWait queues a copy of pkt, waiting for room until ctx is done.
func (s *Sender) SendWait(ctx context.Context, pkt []byte) bool {
	cp := make([]byte, len(pkt))
	copy(cp, pkt)
	select {
	case s.queue <- cp:
		return true
	case <-ctx.Done():
		s.dropped.Add(1)
		return false
	}
}

// Failed returns the number of datagrams whose write returned an error.
func (s *Sender) Failed() uint64 { return s.failed.Load() }

// Dropped returns the number of datagrams dropped since the last log
// summary.
func (s *Sender) Dropped() uint64 { return s.dropped.Load() }

// Wait blocks until the write loop started by Start has returned.
func (s *Sender) Wait() { <-s.done }

// Close closes the connection. Call it after the Start context is
// cancelled.
func (s *Sender) Close() error {
	return s.conn.Close()
}
