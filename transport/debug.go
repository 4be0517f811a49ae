package transport

import (
	"fmt"
	"log"
	"os"
)

// debugEnabled gates the package's verbose packet/frame trace, in the
// same spirit as golang.org/x/net/http2's http2debug build flag: this
// is a hot-path, per-packet trace that would be wasteful to route
// through the structured process logger on every call, so it stays a
// cheap, independently-toggled switch. Set QUIC_DEBUG=1 to enable.
var debugEnabled = os.Getenv("QUIC_DEBUG") != ""

var debugLog = log.New(os.Stderr, "quic: ", log.Lmicroseconds)

func debug(format string, args ...interface{}) {
	if debugEnabled {
		debugLog.Output(2, fmt.Sprintf(format, args...))
	}
}

// sprint is fmt.Sprint renamed for call-site brevity in hot paths that
// build an error reason from mixed-type arguments.
func sprint(args ...interface{}) string {
	return fmt.Sprint(args...)
}
