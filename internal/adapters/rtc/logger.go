package rtc

import (
	"fmt"

	"github.com/pion/logging"
	"github.com/rs/zerolog"
)

type loggerFactory struct {
	base zerolog.Logger
}

// NewLoggerFactory bridges pion's scoped loggers onto zerolog.
func NewLoggerFactory(base zerolog.Logger) logging.LoggerFactory {
	return loggerFactory{base: base}
}

func (f loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &leveledLogger{l: f.base.With().Str("module", "pion").Str("scope", scope).Logger()}
}

type leveledLogger struct {
	l zerolog.Logger
}

func (l *leveledLogger) Trace(msg string) { l.l.Trace().Msg(msg) }
func (l *leveledLogger) Tracef(format string, args ...any) {
	l.l.Trace().Msg(fmt.Sprintf(format, args...))
}
func (l *leveledLogger) Debug(msg string) { l.l.Debug().Msg(msg) }
func (l *leveledLogger) Debugf(format string, args ...any) {
	l.l.Debug().Msg(fmt.Sprintf(format, args...))
}
func (l *leveledLogger) Info(msg string) { l.l.Info().Msg(msg) }
func (l *leveledLogger) Infof(format string, args ...any) {
	l.l.Info().Msg(fmt.Sprintf(format, args...))
}
func (l *leveledLogger) Warn(msg string) { l.l.Warn().Msg(msg) }
func (l *leveledLogger) Warnf(format string, args ...any) {
	l.l.Warn().Msg(fmt.Sprintf(format, args...))
}
func (l *leveledLogger) Error(msg string) { l.l.Error().Msg(msg) }
func (l *leveledLogger) Errorf(format string, args ...any) {
	l.l.Error().Msg(fmt.Sprintf(format, args...))
}
