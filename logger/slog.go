package logger

import (
	"context"
	"log/slog"
	"time"
)

type slogLogger struct {
	Logger                    *slog.Logger
	LogLevel                  LogLevel
	SlowThreshold             time.Duration
	IgnoreRecordNotFoundError bool
}

// NewSlogLogger creates a new logger backed by log/slog.
func NewSlogLogger(logger *slog.Logger, config Config) Interface {
	return &slogLogger{
		Logger:                    logger,
		LogLevel:                  config.LogLevel,
		SlowThreshold:             config.SlowThreshold,
		IgnoreRecordNotFoundError: config.IgnoreRecordNotFoundError,
	}
}

func (l *slogLogger) LogMode(level LogLevel) Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *slogLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Info {
		l.log(ctx, slog.LevelInfo, format(msg, data))
	}
}

func (l *slogLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Warn {
		l.log(ctx, slog.LevelWarn, format(msg, data))
	}
}

func (l *slogLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Error {
		l.log(ctx, slog.LevelError, format(msg, data))
	}
}

func (l *slogLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && l.LogLevel >= Error && !traceSuppressed(err, l.IgnoreRecordNotFoundError):
		stmt, rows := fc()
		l.log(ctx, slog.LevelError, stmt,
			slog.Any("error", err), slog.Duration("elapsed", elapsed), slog.Int64("rows", rows))
	case l.SlowThreshold != 0 && elapsed > l.SlowThreshold && l.LogLevel >= Warn:
		stmt, rows := fc()
		l.log(ctx, slog.LevelWarn, stmt,
			slog.Duration("elapsed", elapsed), slog.Duration("threshold", l.SlowThreshold), slog.Int64("rows", rows))
	case l.LogLevel == Info:
		stmt, rows := fc()
		l.log(ctx, slog.LevelInfo, stmt,
			slog.Duration("elapsed", elapsed), slog.Int64("rows", rows))
	}
}

func (l *slogLogger) log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	args := make([]any, 0, len(attrs)+1)
	args = append(args, slog.String("file", fileWithLineNum()))
	for _, a := range attrs {
		args = append(args, a)
	}
	l.Logger.Log(ctx, level, msg, args...)
}

// SlogLevel maps a LogLevel onto slog's levels.
func SlogLevel(level LogLevel) slog.Level {
	switch level {
	case Error:
		return slog.LevelError
	case Warn:
		return slog.LevelWarn
	case Info:
		return slog.LevelInfo
	default:
		return slog.LevelError
	}
}
