package pose

import (
	"encoding/binary"
	"errors"
	"math"
)

// WireSize is the length of a pose datagram: six little-endian float64
// values in axis order.
const WireSize = NumAxes * 8

// ErrShortDatagram is returned when a datagram is smaller than WireSize.
var ErrShortDatagram = errors.New("pose: datagram shorter than 48 bytes")

// AppendWire appends the wire encoding of p to b.
func (p Pose) AppendWire(b []byte) []byte {
	for _, v := range p {
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
	}
	return b
}

// ParseWire decodes a pose datagram. Trailing bytes are ignored.
func ParseWire(b []byte) (Pose, error) {
	var p Pose
	if len(b) < WireSize {
		return p, ErrShortDatagram
	}
	for i := range p {
		p[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return p, nil
}
