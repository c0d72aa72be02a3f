package llm

import (
	"log"
	"sync/atomic"
)

var verbose atomic.Bool

// SetVerbose turns prompt/response debug lines on or off.
func SetVerbose(v bool) { verbose.Store(v) }

func Verbose() bool { return verbose.Load() }

// VerboseLog logs only when verbose mode is enabled.
func VerboseLog(format string, v ...any) {
	if verbose.Load() {
		log.Printf(format, v...)
	}
}
