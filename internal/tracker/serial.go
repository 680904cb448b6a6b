package tracker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/headtrack/internal/monitoring"
	"github.com/banshee-data/headtrack/internal/pose"
	"go.bug.st/serial"
)

// SerialPorter is the minimal port surface used by the serial tracker.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

var serialLogf = monitoring.Prefixed("serial tracker")

// PortOptions describes the serial line settings.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// Normalize validates the options and applies defaults for unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o
	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch strings.TrimSpace(strings.ToUpper(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	return opts, nil
}

// SerialMode converts the options for go.bug.st/serial.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode, nil
}

// OpenSerialPort opens a real serial device.
func OpenSerialPort(path string, opts PortOptions) (SerialPorter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	return port, nil
}

// ErrWriteFailed is returned when a command was only partially written.
var ErrWriteFailed = errors.New("short write to serial port")

// centerCommand asks the device to re-zero its own orientation.
const centerCommand = "C\n"

// Serial reads comma-separated poses, one per line, from a serial device
// such as a microcontroller IMU:
//
//	tx,ty,tz,yaw,pitch,roll
//
// Lines starting with '#' are device chatter and are ignored.
type Serial struct {
	port SerialPorter
	// deviceCenter makes Center send a re-zero command to the device.
	deviceCenter bool

	last     latest
	writeMu  sync.Mutex
	throttle *monitoring.Throttle
}

// NewSerial wraps an open port.
func NewSerial(port SerialPorter, deviceCenter bool) *Serial {
	return &Serial{
		port:         port,
		deviceCenter: deviceCenter,
		throttle:     monitoring.NewThrottle(10 * time.Second),
	}
}

// ParseLine decodes one pose line.
func ParseLine(line string) (pose.Pose, error) {
	var p pose.Pose
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != pose.NumAxes {
		return p, fmt.Errorf("expected %d fields, got %d", pose.NumAxes, len(fields))
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return p, fmt.Errorf("field %s: %w", pose.Axis(i), err)
		}
		p[i] = v
	}
	return p, nil
}

// Monitor reads lines until ctx is cancelled or the port fails. It closes
// the port when done.
func (s *Serial) Monitor(ctx context.Context) error {
	defer s.port.Close()

	scan := bufio.NewScanner(s.port)
	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// scan.Scan blocks on the port; running it apart lets the loop below
	// observe cancellation
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			scanErrChan <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErrChan:
			return err
		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					return err
				default:
					return nil
				}
			}
			s.handleLine(line)
		}
	}
}

func (s *Serial) handleLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	p, err := ParseLine(line)
	if err != nil {
		if ok, n := s.throttle.Allow(); ok {
			serialLogf("bad line %q: %v (%d similar suppressed)", line, err, n)
		}
		return
	}
	s.last.store(p, time.Now())
}

// SendCommand writes a newline-terminated command to the device.
func (s *Serial) SendCommand(command string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := s.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Data returns the most recent pose read.
func (s *Serial) Data() pose.Pose { return s.last.load() }

// Center asks the device to re-zero when device centering is enabled.
// It reports false if the command could not be sent so the pipeline
// captures its own reference instead.
func (s *Serial) Center() bool {
	if !s.deviceCenter {
		return false
	}
	if err := s.SendCommand(centerCommand); err != nil {
		serialLogf("center command failed: %v", err)
		return false
	}
	return true
}

// Stats returns receive counters.
func (s *Serial) Stats() Stats { return s.last.stats() }
