package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/diode"
)

// NewAsyncWriter wraps w in a bounded, non-blocking writer. Log calls from
// the pinned loops copy into a ring and return; a background goroutine
// drains to w. Under overload entries are dropped and counted through
// onMissed rather than ever stalling a producer.
func NewAsyncWriter(w io.Writer, size int, onMissed func(missed int)) diode.Writer {
	if size <= 0 {
		size = 8192
	}
	return diode.NewWriter(w, size, 10*time.Millisecond, onMissed)
}

// NewLogger creates a structured JSON logger for one component, writing
// through the given sink (normally the shared async writer). Level comes
// from MD_LOG_LEVEL; production default is info.
func NewLogger(component string, sink io.Writer) zerolog.Logger {
	level := parseLogLevel(os.Getenv("MD_LOG_LEVEL"))

	return zerolog.New(sink).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

func parseLogLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
