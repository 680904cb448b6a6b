package network

import (
	"net"
	"sync"
	"time"
)

// MockUDPSocket implements UDPSocket for testing. Reads return the queued
// packets in order and then time out until more are pushed.
type MockUDPSocket struct {
	mu sync.Mutex

	packets        []MockUDPPacket
	readIndex      int
	closed         bool
	readBufferSize int
	readError      error

	// LocalAddress is returned by LocalAddr.
	LocalAddress *net.UDPAddr
	// SetReadBufferError is returned by SetReadBuffer if set.
	SetReadBufferError error
}

// MockUDPPacket is a datagram returned by MockUDPSocket.
type MockUDPPacket struct {
	Data []byte
	Addr *net.UDPAddr
}

// NewMockUDPSocket creates a socket that will deliver packets in order.
func NewMockUDPSocket(packets ...MockUDPPacket) *MockUDPSocket {
	return &MockUDPSocket{
		packets: packets,
		LocalAddress: &net.UDPAddr{
			IP:   net.ParseIP("127.0.0.1"),
			Port: 4242,
		},
	}
}

// Push queues a datagram.
func (m *MockUDPSocket) Push(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packets = append(m.packets, MockUDPPacket{Data: data, Addr: m.LocalAddress})
}

// FailNextRead makes the next ReadFromUDP return err.
func (m *MockUDPSocket) FailNextRead(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readError = err
}

// Delivered returns how many packets have been read.
func (m *MockUDPSocket) Delivered() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readIndex
}

// Closed reports whether Close was called.
func (m *MockUDPSocket) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// ReadBufferSize returns the value passed to SetReadBuffer.
func (m *MockUDPSocket) ReadBufferSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readBufferSize
}

func (m *MockUDPSocket) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, nil, net.ErrClosed
	}
	if m.readError != nil {
		err := m.readError
		m.readError = nil
		m.mu.Unlock()
		return 0, nil, err
	}
	if m.readIndex >= len(m.packets) {
		m.mu.Unlock()
		// let the caller poll its context like a real deadline would
		time.Sleep(time.Millisecond)
		return 0, nil, &net.OpError{Op: "read", Net: "udp", Err: timeoutError{}}
	}
	pkt := m.packets[m.readIndex]
	m.readIndex++
	m.mu.Unlock()
	return copy(b, pkt.Data), pkt.Addr, nil
}

func (m *MockUDPSocket) SetReadBuffer(bytes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetReadBufferError != nil {
		return m.SetReadBufferError
	}
	m.readBufferSize = bytes
	return nil
}

func (m *MockUDPSocket) SetReadDeadline(time.Time) error { return nil }

func (m *MockUDPSocket) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockUDPSocket) LocalAddr() net.Addr { return m.LocalAddress }

// MockUDPSocketFactory implements UDPSocketFactory for testing.
type MockUDPSocketFactory struct {
	// Socket is returned from ListenUDP.
	Socket *MockUDPSocket
	// Error is returned by ListenUDP if set.
	Error error
	// ListenCalls records the addresses passed to ListenUDP.
	ListenCalls []*net.UDPAddr
}

func (f *MockUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	f.ListenCalls = append(f.ListenCalls, laddr)
	if f.Error != nil {
		return nil, f.Error
	}
	return f.Socket, nil
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
