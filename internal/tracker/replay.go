package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/banshee-data/headtrack/internal/monitoring"
	"github.com/banshee-data/headtrack/internal/pose"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

var replayLogf = monitoring.Prefixed("pcap replay")

// ReplayConfig configures a pcap replay.
type ReplayConfig struct {
	// Path is a classic pcap file.
	Path string
	// Port keeps only UDP datagrams sent to this port. Zero keeps all.
	Port int
	// Realtime paces samples by their capture timestamps; otherwise the
	// file is read as fast as possible.
	Realtime bool
	// Loop restarts from the beginning at end of file.
	Loop bool
}

// Replay feeds pose datagrams captured in a pcap file, for reproducing a
// session without the original tracker.
type Replay struct {
	cfg  ReplayConfig
	last latest
}

// NewReplay returns a replay tracker for cfg.
func NewReplay(cfg ReplayConfig) *Replay {
	return &Replay{cfg: cfg}
}

// Start checks the file can be read and replays it in the background.
func (r *Replay) Start(ctx context.Context) error {
	f, err := os.Open(r.cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open pcap file %s: %w", r.cfg.Path, err)
	}
	if _, err := pcapgo.NewReader(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to read pcap header from %s: %w", r.cfg.Path, err)
	}
	f.Close()

	go func() {
		if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			replayLogf("stopped: %v", err)
		}
	}()
	return nil
}

// Run replays the file until it ends, or until ctx is cancelled when
// looping.
func (r *Replay) Run(ctx context.Context) error {
	for {
		n, err := r.replayOnce(ctx)
		if err != nil {
			return err
		}
		replayLogf("%s complete: %d poses", r.cfg.Path, n)
		if !r.cfg.Loop || n == 0 {
			return nil
		}
	}
}

func (r *Replay) replayOnce(ctx context.Context) (int, error) {
	f, err := os.Open(r.cfg.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to open pcap file %s: %w", r.cfg.Path, err)
	}
	defer f.Close()

	reader, err := pcapgo.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("failed to read pcap header: %w", err)
	}
	src := gopacket.NewPacketSource(reader, reader.LinkType())

	var first time.Time
	start := time.Now()
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		packet, err := src.NextPacket()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("failed to read packet: %w", err)
		}

		payload, ok := r.payload(packet)
		if !ok {
			continue
		}
		p, err := pose.ParseWire(payload)
		if err != nil {
			continue
		}

		ts := packet.Metadata().Timestamp
		if first.IsZero() {
			first = ts
		}
		if r.cfg.Realtime {
			wait := time.Until(start.Add(ts.Sub(first)))
			if wait > 0 {
				t := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					t.Stop()
					return count, ctx.Err()
				case <-t.C:
				}
			}
		}

		r.last.store(p, ts)
		count++
	}
}

func (r *Replay) payload(packet gopacket.Packet) ([]byte, bool) {
	udpLayer := packet.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return nil, false
	}
	udp, ok := udpLayer.(*layers.UDP)
	if !ok {
		return nil, false
	}
	if r.cfg.Port != 0 && int(udp.DstPort) != r.cfg.Port {
		return nil, false
	}
	return udp.Payload, len(udp.Payload) > 0
}

// Data returns the most recently replayed pose.
func (r *Replay) Data() pose.Pose { return r.last.load() }

// Center reports false.
func (r *Replay) Center() bool { return false }

// Stats returns the number of poses replayed and the capture time of the
// last one.
func (r *Replay) Stats() Stats { return r.last.stats() }
