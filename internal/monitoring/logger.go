// Package monitoring holds the process-wide diagnostic logger.
package monitoring

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but
// may be replaced by SetLogger. Tests or production code can redirect or
// mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetupStageLog points Logf at "<stage>_debug.log" (truncated on start) and
// returns a closer. The file is the per-worker debug log every stage binary
// writes.
func SetupStageLog(stage string) (io.Closer, error) {
	f, err := os.Create(fmt.Sprintf("%s_debug.log", stage))
	if err != nil {
		return nil, fmt.Errorf("open stage log: %w", err)
	}
	l := log.New(f, "", log.Ltime|log.Lmicroseconds)
	Logf = l.Printf
	return f, nil
}
