package scope

import (
	"time"

	"github.com/rs/zerolog"
)

// HandlerLogEvent describes one expression handler invocation.
type HandlerLogEvent struct {
	Engine   string
	Expr     string
	Method   string
	Args     int
	Duration time.Duration
	Err      error
}

// HandlerLogger records expression handler invocations.
type HandlerLogger interface {
	LogHandler(HandlerLogEvent)
}

// HandlerLoggerFunc adapts a function to HandlerLogger.
type HandlerLoggerFunc func(HandlerLogEvent)

// LogHandler implements HandlerLogger.
func (f HandlerLoggerFunc) LogHandler(event HandlerLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopHandlerLogger struct{}

func (noopHandlerLogger) LogHandler(HandlerLogEvent) {}

// ZerologHandlerLogger writes invocations at debug level and failures at
// warn level.
func ZerologHandlerLogger(logger zerolog.Logger) HandlerLogger {
	return HandlerLoggerFunc(func(event HandlerLogEvent) {
		entry := logger.Debug()
		if event.Err != nil {
			entry = logger.Warn().Err(event.Err)
		}
		entry.
			Str("engine", event.Engine).
			Str("expr", event.Expr).
			Str("method", event.Method).
			Int("args", event.Args).
			Dur("duration", event.Duration).
			Msg("handler evaluated")
	})
}
