package tracklog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// CSV writes rows as comma-separated values. The header row holds the
// labels; data rows hold numbers.
type CSV struct {
	rowBuilder
	w      *csv.Writer
	closer io.Closer
	err    error
}

// NewCSV writes to w. now may be nil.
func NewCSV(w io.Writer, now func() time.Time) *CSV {
	c := &CSV{rowBuilder: newRowBuilder(now), w: csv.NewWriter(w)}
	if cl, ok := w.(io.Closer); ok {
		c.closer = cl
	}
	return c
}

// CreateCSV creates or truncates the file at path.
func CreateCSV(path string) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create track log %s: %w", path, err)
	}
	return NewCSV(f, nil), nil
}

// NextLine terminates the current row. The first write error is kept and
// later rows are discarded.
func (c *CSV) NextLine() {
	labels, values := c.take()
	if c.err != nil {
		return
	}
	record := labels
	for _, v := range values {
		record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
	}
	if err := c.w.Write(record); err != nil {
		c.err = err
		return
	}
	c.w.Flush()
	c.err = c.w.Error()
}

// Err returns the first write error.
func (c *CSV) Err() error { return c.err }

// Close flushes and closes the underlying file, if any.
func (c *CSV) Close() error {
	c.w.Flush()
	if c.closer != nil {
		if err := c.closer.Close(); err != nil {
			return err
		}
	}
	if c.err != nil {
		return c.err
	}
	return c.w.Error()
}
