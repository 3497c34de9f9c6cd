package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger implements Interface using zerolog.
type ZerologLogger struct {
	Logger                    zerolog.Logger
	LogLevel                  LogLevel
	SlowThreshold             time.Duration
	IgnoreRecordNotFoundError bool
}

// NewZerologLogger creates a new logger using zerolog.
func NewZerologLogger(logger zerolog.Logger, config Config) Interface {
	return &ZerologLogger{
		Logger:                    logger,
		LogLevel:                  config.LogLevel,
		SlowThreshold:             config.SlowThreshold,
		IgnoreRecordNotFoundError: config.IgnoreRecordNotFoundError,
	}
}

// NewZerologLoggerWithConfig creates a new zerolog logger with custom
// configuration.
func NewZerologLoggerWithConfig(config Config, output ...zerolog.Context) Interface {
	var logger zerolog.Logger

	if len(output) > 0 {
		logger = output[0].Logger()
	} else {
		consoleWriter := zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stdout
			w.TimeFormat = time.RFC3339
		})
		logger = zerolog.New(consoleWriter).
			Level(ZerologLevel(config.LogLevel)).
			With().
			Timestamp().
			Logger()
	}

	return NewZerologLogger(logger, config)
}

// LogMode sets the log level
func (l *ZerologLogger) LogMode(level LogLevel) Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

// Info logs info messages
func (l *ZerologLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Info {
		event := l.Logger.Info().Str("file", fileWithLineNum())
		if ctx != nil {
			event = event.Ctx(ctx)
		}
		event.Msg(format(msg, data))
	}
}

// Warn logs warning messages
func (l *ZerologLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Warn {
		event := l.Logger.Warn().Str("file", fileWithLineNum())
		if ctx != nil {
			event = event.Ctx(ctx)
		}
		event.Msg(format(msg, data))
	}
}

// Error logs error messages
func (l *ZerologLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Error {
		event := l.Logger.Error().Str("file", fileWithLineNum())
		if ctx != nil {
			event = event.Ctx(ctx)
		}
		event.Msg(format(msg, data))
	}
}

// Trace logs statement dispatches, flagging slow ones once they pass the
// configured threshold.
func (l *ZerologLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && l.LogLevel >= Error && !traceSuppressed(err, l.IgnoreRecordNotFoundError):
		stmt, rows := fc()
		l.Logger.Error().
			Err(err).
			Str("file", fileWithLineNum()).
			Dur("elapsed", elapsed).
			Int64("rows", rows).
			Msg(stmt)
	case l.SlowThreshold != 0 && elapsed > l.SlowThreshold && l.LogLevel >= Warn:
		stmt, rows := fc()
		l.Logger.Warn().
			Str("file", fileWithLineNum()).
			Dur("elapsed", elapsed).
			Dur("threshold", l.SlowThreshold).
			Int64("rows", rows).
			Msg(stmt)
	case l.LogLevel == Info:
		stmt, rows := fc()
		l.Logger.Info().
			Str("file", fileWithLineNum()).
			Dur("elapsed", elapsed).
			Int64("rows", rows).
			Msg(stmt)
	}
}

// ZerologLevel maps a LogLevel onto zerolog's levels.
func ZerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case Silent:
		return zerolog.Disabled
	case Error:
		return zerolog.ErrorLevel
	case Warn:
		return zerolog.WarnLevel
	case Info:
		return zerolog.InfoLevel
	default:
		return zerolog.WarnLevel
	}
}
