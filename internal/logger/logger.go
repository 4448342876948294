// Package logger wraps charm.land/log/v2 as a single injectable collaborator
// rather than a package-level global the compiler/validate types depend on
// directly: callers get a *log.Logger via Default() and may replace it with
// SetDefault, but internal/compiler takes a logger as an explicit argument
// to compiler.New (using Default only when given nil). internal/validate does
// no logging.
package logger

import (
	"os"
	"sync"

	"charm.land/log/v2"
)

var (
	mu      sync.RWMutex
	current = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
		Prefix:          "yasl",
	})
)

// Default returns the process-wide logger used when a caller doesn't supply
// its own (e.g. library consumers who call yasl.CompileSchema directly).
func Default() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// SetDefault replaces the process-wide logger, e.g. so cmd/yasl can raise the
// level for -verbose or silence it for -quiet.
func SetDefault(l *log.Logger) {
	mu.Lock()
	defer mu.Unlock()
	current = l
}
