package monitoring

import (
	"fmt"
	"log"
)

// Logf is the shared diagnostic logger of the tracker, protocol and
// tracklog plugins. Replace it with SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces Logf. A nil f mutes plugin diagnostics.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Prefixed returns a logger that tags each line with the plugin name and
// forwards to whatever Logf is at call time.
func Prefixed(name string) func(format string, v ...interface{}) {
	return func(format string, v ...interface{}) {
		Logf("%s: %s", name, fmt.Sprintf(format, v...))
	}
}
