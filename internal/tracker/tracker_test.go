package tracker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/headtrack/internal/network"
	"github.com/banshee-data/headtrack/internal/pose"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestUDP_ReceivesPoses(t *testing.T) {
	sock := network.NewMockUDPSocket()
	u := NewUDP(UDPConfig{Address: "127.0.0.1:4242", Factory: &network.MockUDPSocketFactory{Socket: sock}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, u.Start(ctx))

	first := pose.Pose{1, 2, 3, 4, 5, 6}
	second := pose.Pose{-1, -2, -3, 90, 0, -45}
	sock.Push(first.AppendWire(nil))
	sock.Push([]byte{1, 2, 3})
	sock.Push(second.AppendWire(nil))

	require.Eventually(t, func() bool { return u.Stats().Samples == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, second, u.Data())
	assert.Equal(t, uint64(1), u.Malformed())
	assert.False(t, u.Center())
}

func TestUDP_StartError(t *testing.T) {
	u := NewUDP(UDPConfig{Address: "127.0.0.1:1", Factory: &network.MockUDPSocketFactory{Error: errors.New("in use")}})
	assert.ErrorContains(t, u.Start(context.Background()), "in use")
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		want    pose.Pose
		wantErr bool
	}{
		{line: "1,2,3,4,5,6", want: pose.Pose{1, 2, 3, 4, 5, 6}},
		{line: " 0.5, -1 ,2e1,180,-90,0 \r", want: pose.Pose{0.5, -1, 20, 180, -90, 0}},
		{line: "1,2,3", wantErr: true},
		{line: "1,2,3,4,5,x", wantErr: true},
		{line: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLine(tt.line)
		if tt.wantErr {
			assert.Error(t, err, tt.line)
			continue
		}
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, got)
	}
}

// pipePort is a SerialPorter fed through an io.Pipe.
type pipePort struct {
	*io.PipeReader
	mu      sync.Mutex
	written bytes.Buffer
	closed  bool
	err     error
}

func (p *pipePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, p.err
	}
	return p.written.Write(b)
}

func (p *pipePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.PipeReader.Close()
}

func TestSerial_Monitor(t *testing.T) {
	r, w := io.Pipe()
	port := &pipePort{PipeReader: r}
	s := NewSerial(port, false)

	done := make(chan error, 1)
	go func() { done <- s.Monitor(context.Background()) }()

	io.WriteString(w, "# boot v1.2\n")
	io.WriteString(w, "1,2,3,10,20,30\n")
	io.WriteString(w, "garbage\n")
	io.WriteString(w, "\n")
	io.WriteString(w, "4,5,6,40,50,60\n")
	w.Close()

	require.NoError(t, <-done)
	assert.Equal(t, pose.Pose{4, 5, 6, 40, 50, 60}, s.Data())
	assert.Equal(t, uint64(2), s.Stats().Samples)
	assert.True(t, port.closed)
}

func TestSerial_MonitorCancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	s := NewSerial(&pipePort{PipeReader: r}, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Monitor(ctx) }()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSerial_MonitorReadError(t *testing.T) {
	r, w := io.Pipe()
	s := NewSerial(&pipePort{PipeReader: r}, false)
	w.CloseWithError(errors.New("device unplugged"))
	assert.ErrorContains(t, s.Monitor(context.Background()), "device unplugged")
}

func TestSerial_Center(t *testing.T) {
	r, _ := io.Pipe()
	port := &pipePort{PipeReader: r}

	assert.False(t, NewSerial(port, false).Center())
	assert.Zero(t, port.written.Len())

	assert.True(t, NewSerial(port, true).Center())
	assert.Equal(t, "C\n", port.written.String())

	port.err = errors.New("write failed")
	assert.False(t, NewSerial(port, true).Center(), "falls back to pipeline centering")
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, &serial.Mode{BaudRate: 115200, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}, mode)

	mode, err = PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "even"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, serial.EvenParity, mode.Parity)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)

	for _, bad := range []PortOptions{{DataBits: 9}, {StopBits: 3}, {Parity: "mark"}} {
		_, err := bad.SerialMode()
		assert.Error(t, err, "%+v", bad)
	}
}

type capture struct {
	port    int
	payload []byte
	offset  time.Duration
}

func writePcap(t *testing.T, captures []capture) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	base := time.Unix(1700000000, 0)
	for _, c := range captures {
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
			DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IPv4(192, 168, 1, 10),
			DstIP:    net.IPv4(192, 168, 1, 20),
		}
		udp := &layers.UDP{SrcPort: 50000, DstPort: layers.UDPPort(c.port)}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(c.payload)))

		data := buf.Bytes()
		ci := gopacket.CaptureInfo{Timestamp: base.Add(c.offset), CaptureLength: len(data), Length: len(data)}
		require.NoError(t, w.WritePacket(ci, data))
	}
	return path
}

func TestReplay_Run(t *testing.T) {
	a := pose.Pose{1, 0, 0, 10, 0, 0}
	b := pose.Pose{2, 0, 0, 20, 0, 0}
	other := pose.Pose{9, 9, 9, 9, 9, 9}
	path := writePcap(t, []capture{
		{port: 4242, payload: a.AppendWire(nil)},
		{port: 5555, payload: other.AppendWire(nil), offset: time.Millisecond},
		{port: 4242, payload: []byte("short"), offset: 2 * time.Millisecond},
		{port: 4242, payload: b.AppendWire(nil), offset: 3 * time.Millisecond},
	})

	r := NewReplay(ReplayConfig{Path: path, Port: 4242})
	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, b, r.Data())
	assert.Equal(t, uint64(2), r.Stats().Samples)
	last := r.Stats().Last
	assert.True(t, time.Unix(1700000000, 0).Add(3*time.Millisecond).Equal(last), "capture time %v", last)

	all := NewReplay(ReplayConfig{Path: path})
	require.NoError(t, all.Run(context.Background()))
	assert.Equal(t, uint64(3), all.Stats().Samples)
}

func TestReplay_RealtimeAndLoop(t *testing.T) {
	a := pose.Pose{0, 0, 0, 1, 0, 0}
	path := writePcap(t, []capture{
		{port: 4242, payload: a.AppendWire(nil)},
		{port: 4242, payload: a.AppendWire(nil), offset: 5 * time.Millisecond},
	})

	ctx, cancel := context.WithCancel(context.Background())
	r := NewReplay(ReplayConfig{Path: path, Realtime: true, Loop: true})
	require.NoError(t, r.Start(ctx))
	require.Eventually(t, func() bool { return r.Stats().Samples >= 4 }, 2*time.Second, time.Millisecond)
	cancel()
	assert.Equal(t, a, r.Data())
}

func TestReplay_StartErrors(t *testing.T) {
	err := NewReplay(ReplayConfig{Path: filepath.Join(t.TempDir(), "missing.pcap")}).Start(context.Background())
	assert.Error(t, err)

	junk := filepath.Join(t.TempDir(), "junk.pcap")
	require.NoError(t, os.WriteFile(junk, []byte("not a pcap file at all"), 0o644))
	err = NewReplay(ReplayConfig{Path: junk}).Start(context.Background())
	assert.ErrorContains(t, err, "pcap header")
}

func TestSynthetic(t *testing.T) {
	now := time.Unix(0, 0)
	s := NewSynthetic(func() time.Time { return now })
	assert.Equal(t, pose.Pose{}, s.Data())

	now = now.Add(s.Period / 4)
	p := s.Data()
	assert.InDelta(t, 60, p[pose.Yaw], 1e-9)
	for i, v := range p {
		assert.LessOrEqual(t, v, s.Amplitude[i]+1e-9)
	}

	assert.True(t, s.Center())
	assert.Equal(t, pose.Pose{}, s.Data())
}
