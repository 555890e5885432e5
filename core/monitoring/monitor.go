// Package monitoring reports unexpected errors and panics to an external
// tracker. The process wide monitor defaults to a no-op.
package monitoring

import (
	"sync"
	"time"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	// Report records a recovered panic value.
	Report(v any)
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Report(any)                                {}
func (NopMonitor) Flush(time.Duration)                       {}

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init sets the process wide monitor. A nil monitor restores the no-op.
func Init(m Monitor) {
	if m == nil {
		m = NopMonitor{}
	}
	mu.Lock()
	current = m
	mu.Unlock()
}

func get() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureException records err with optional tags. Nil errors are ignored.
func CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	get().CaptureException(err, tags)
}

// Recover reports a panic to the installed monitor and re-raises it. It must
// be deferred directly by the goroutine it protects.
func Recover() {
	if r := recover(); r != nil {
		m := get()
		m.Report(r)
		m.Flush(2 * time.Second)
		panic(r)
	}
}

// Flush waits up to d for buffered reports to be sent.
func Flush(d time.Duration) { get().Flush(d) }
