// internal/recovery/recovery.go
// Package recovery turns panics into logged, controlled failures.
package recovery

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/rs/zerolog/log"
)

// HandlePanic should be deferred at the top of main().
// It prints panic details to stderr and exits with code 1.
func HandlePanic() {
	if r := recover(); r != nil {
		fatal(r, debug.Stack())
		os.Exit(1)
	}
}

// HandlePanicFunc prints panic details, calls cleanup and exits with code 1.
// Use it where terminal or process state must be restored before exit.
func HandlePanicFunc(cleanup func()) {
	if r := recover(); r != nil {
		fatal(r, debug.Stack())
		if cleanup != nil {
			cleanup()
		}
		os.Exit(1)
	}
}

// Guard runs fn and recovers a panic from it. The panic is logged with its
// stack under the component name and reported as panicked; the process keeps
// running. Worker goroutines wrap each unit of work with it:
//
//	go func() {
//		for job := range queue {
//			recovery.Guard("actuator", func() { deliver(job) })
//		}
//	}()
func Guard(component string, fn func()) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			log.Error().
				Str("component", component).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("recovered from panic")
		}
	}()
	fn()
	return false
}

func fatal(r any, stack []byte) {
	_, _ = fmt.Fprintf(os.Stderr, "FATAL: %v\n\nStack trace:\n%s\n", r, stack)
}
