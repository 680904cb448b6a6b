package pipeline

import (
	"io"
	"log"
)

// stream selects one of the package's log destinations.
type stream int

const (
	opsStream   stream = iota // lifecycle and scheduler overflow
	diagStream                // numerical faults and centering
	traceStream               // per-cycle timing
	numStreams
)

var streams [numStreams]*log.Logger

// SetLogWriters configures the ops, diag and trace streams. A nil writer
// disables that stream; all three are disabled until this is called.
func SetLogWriters(ops, diag, trace io.Writer) {
	for s, w := range [numStreams]io.Writer{ops, diag, trace} {
		streams[s] = nil
		if w != nil {
			streams[s] = log.New(w, "[pipeline] ", log.LstdFlags|log.Lmicroseconds)
		}
	}
}

func logTo(s stream, format string, args ...interface{}) {
	if l := streams[s]; l != nil {
		l.Printf(format, args...)
	}
}

func opsf(format string, args ...interface{})   { logTo(opsStream, format, args...) }
func diagf(format string, args ...interface{})  { logTo(diagStream, format, args...) }
func tracef(format string, args ...interface{}) { logTo(traceStream, format, args...) }
