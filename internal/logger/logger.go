// Package logger is loom's verbose trace output.
//
// Nothing is written unless --verbose turned it on. Lines go to stderr so
// they never mix with context text or generated prose on stdout.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose toggles trace output.
func SetVerbose(v bool) {
	mu.Lock()
	verbose = v
	mu.Unlock()
}

// IsVerbose reports whether trace output is on.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput redirects trace output. Tests point it at a buffer.
func SetOutput(w io.Writer) {
	mu.Lock()
	output = w
	mu.Unlock()
}

// emit writes one already-formatted line when verbose.
func emit(line string) {
	mu.RLock()
	defer mu.RUnlock()
	if !verbose {
		return
	}
	fmt.Fprint(output, line)
}

func tagged(tag, format string, args []any) {
	if !IsVerbose() {
		return
	}
	emit(tag + " " + fmt.Sprintf(format, args...) + "\n")
}

// Debug traces pipeline internals such as candidate counts and scores.
func Debug(format string, args ...any) { tagged("[DEBUG]", format, args) }

// Info traces coarse progress, one line per indexed entity or request.
func Info(format string, args ...any) { tagged("[INFO]", format, args) }

// Warn traces a degraded step that did not fail the operation.
func Warn(format string, args ...any) { tagged("[WARN]", format, args) }

// Section starts a titled block in the trace.
func Section(name string) {
	emit("\n=== " + name + " ===\n")
}

// Since logs how long a step took at debug level.
//
//	defer logger.Since("rank", time.Now())
func Since(step string, start time.Time) {
	Debug("%s took %s", step, time.Since(start).Round(time.Millisecond))
}
