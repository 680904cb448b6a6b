package tracklog

import (
	"time"

	"github.com/banshee-data/headtrack/internal/pose"
)

// rowBuilder accumulates the fields of the current row and measures the
// cycle interval.
type rowBuilder struct {
	now    func() time.Time
	mark   time.Time
	labels []string
	values []float64
}

func newRowBuilder(now func() time.Time) rowBuilder {
	if now == nil {
		now = time.Now
	}
	return rowBuilder{now: now, mark: now()}
}

func (b *rowBuilder) Write(label string) { b.labels = append(b.labels, label) }

// WriteDt appends the seconds elapsed since the last ResetDt.
func (b *rowBuilder) WriteDt() {
	b.values = append(b.values, b.now().Sub(b.mark).Seconds())
}

func (b *rowBuilder) ResetDt() { b.mark = b.now() }

func (b *rowBuilder) WritePose(p pose.Pose) { b.values = append(b.values, p[:]...) }

// take returns the completed row and starts a new one.
func (b *rowBuilder) take() (labels []string, values []float64) {
	labels, values = b.labels, b.values
	b.labels, b.values = nil, nil
	return labels, values
}
