package signalgraph

import (
	"log/slog"
	"sync/atomic"

	"github.com/joeycumines/logiface"
	logifaceslog "github.com/joeycumines/logiface-slog"
)

// Event is the logiface event type used throughout this package. Pinning
// it to *slog.Event (via logiface-slog) rather than inventing a bespoke
// event keeps every log call compatible with stdlib log/slog handlers,
// the way logiface's own slog adapter does.
type Event = logifaceslog.Event

// Logger is the concrete logger type every internal call site uses.
type Logger = logiface.Logger[*Event]

// defaultLogger is a package-level, swappable sink. It starts out backed
// by slog.Default(), so the library is never silent by accident, but
// never configures its own handler: callers own handler configuration.
var defaultLogger atomic.Pointer[Logger]

func init() {
	SetLogger(newLoggerFromHandler(slog.Default().Handler()))
}

func newLoggerFromHandler(h slog.Handler) *Logger {
	return logiface.New[*Event](logifaceslog.NewLogger(h))
}

// SetLogger replaces the package-level logger used by every Signal created
// without an explicit WithStageLogger StageOption. Safe for concurrent use.
func SetLogger(l *Logger) {
	if l == nil {
		l = newLoggerFromHandler(slog.Default().Handler())
	}
	defaultLogger.Store(l)
}

// SetSlogHandler is a convenience wrapper around SetLogger for callers who
// just want to point this package's logging at a particular slog.Handler.
func SetSlogHandler(h slog.Handler) {
	SetLogger(newLoggerFromHandler(h))
}

func packageLogger() *Logger {
	return defaultLogger.Load()
}

func logPanicRecovered(component string, recovered any) {
	packageLogger().Err().
		Str("component", component).
		Any("recovered", recovered).
		Log("recovered panic")
}

func logStageError(l *Logger, stageName string, err error) {
	l.Err().
		Str("stage", stageName).
		Err(err).
		Log("stage ended with error")
}

func logStageActivation(l *Logger, stageName string, from, to ActivationState) {
	l.Debug().
		Str("stage", stageName).
		Str("from", from.String()).
		Str("to", to.String()).
		Log("activation state transition")
}
