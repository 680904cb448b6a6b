package tracklog

import "github.com/banshee-data/headtrack/internal/pose"

// Logger is the per-cycle track logger interface.
type Logger interface {
	Write(label string)
	WriteDt()
	ResetDt()
	WritePose(p pose.Pose)
	NextLine()
}

// Multi duplicates every call to each logger.
type Multi []Logger

func (m Multi) Write(label string) {
	for _, l := range m {
		l.Write(label)
	}
}

func (m Multi) WriteDt() {
	for _, l := range m {
		l.WriteDt()
	}
}

func (m Multi) ResetDt() {
	for _, l := range m {
		l.ResetDt()
	}
}

func (m Multi) WritePose(p pose.Pose) {
	for _, l := range m {
		l.WritePose(p)
	}
}

func (m Multi) NextLine() {
	for _, l := range m {
		l.NextLine()
	}
}
