package starmap

import (
	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the structured logging handle threaded through an Engine and
// every component it constructs. It is the facade itself, not any one
// backend: a nil *Logger is valid and silently discards everything, the
// same way a zero-value sink would.
type Logger = logiface.Logger[logiface.Event]

// NewZerologLogger adapts a zerolog.Logger into a Logger, via the
// github.com/joeycumines/izerolog binding. Callers that already have a
// logiface.Logger from a different backend (slog, logrus, ...) can pass it
// to WithLogger directly instead of going through this constructor.
func NewZerologLogger(z zerolog.Logger) *Logger {
	return logiface.New[*izerolog.Event](izerolog.WithZerolog(z)).Logger()
}
