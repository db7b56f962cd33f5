package logger

import "github.com/nithinbasa/SmartGrid/internal/errors"

// Logger defines the interface for component-scoped logging.
type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	ErrorWithCode(err errors.Error) *LogEvent
}
