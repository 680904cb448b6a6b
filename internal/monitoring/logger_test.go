package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureLogf(t *testing.T) *[]string {
	t.Helper()
	original := Logf
	t.Cleanup(func() { Logf = original })

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := captureLogf(t)
	Logf("tracker %s", "up")
	assert.Equal(t, []string{"tracker up"}, *lines)

	SetLogger(nil)
	assert.NotPanics(t, func() { Logf("muted") })
	assert.Len(t, *lines, 1)
}

func TestPrefixed(t *testing.T) {
	lines := captureLogf(t)
	logf := Prefixed("serial tracker")

	logf("bad line %q", "x")
	assert.Equal(t, []string{`serial tracker: bad line "x"`}, *lines)

	// late binding: a logger swapped after Prefixed is still honoured
	SetLogger(nil)
	logf("dropped")
	assert.Len(t, *lines, 1)
}
