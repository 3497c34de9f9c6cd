package logger

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// LogrusLogger implements Interface using logrus.
type LogrusLogger struct {
	Logger                    *logrus.Logger
	LogLevel                  LogLevel
	SlowThreshold             time.Duration
	IgnoreRecordNotFoundError bool
}

// NewLogrusLogger creates a new logger using logrus.
func NewLogrusLogger(logger *logrus.Logger, config Config) Interface {
	return &LogrusLogger{
		Logger:                    logger,
		LogLevel:                  config.LogLevel,
		SlowThreshold:             config.SlowThreshold,
		IgnoreRecordNotFoundError: config.IgnoreRecordNotFoundError,
	}
}

// LogMode sets the log level
func (l *LogrusLogger) LogMode(level LogLevel) Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

// Info logs info messages
func (l *LogrusLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Info {
		l.entry(ctx).Info(format(msg, data))
	}
}

// Warn logs warning messages
func (l *LogrusLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Warn {
		l.entry(ctx).Warn(format(msg, data))
	}
}

// Error logs error messages
func (l *LogrusLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Error {
		l.entry(ctx).Error(format(msg, data))
	}
}

// Trace logs statement dispatches.
func (l *LogrusLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && l.LogLevel >= Error && !traceSuppressed(err, l.IgnoreRecordNotFoundError):
		stmt, rows := fc()
		l.entry(ctx).WithError(err).WithFields(logrus.Fields{
			"elapsed": elapsed, "rows": rows,
		}).Error(stmt)
	case l.SlowThreshold != 0 && elapsed > l.SlowThreshold && l.LogLevel >= Warn:
		stmt, rows := fc()
		l.entry(ctx).WithFields(logrus.Fields{
			"elapsed": elapsed, "rows": rows, "threshold": l.SlowThreshold,
		}).Warn(stmt)
	case l.LogLevel == Info:
		stmt, rows := fc()
		l.entry(ctx).WithFields(logrus.Fields{
			"elapsed": elapsed, "rows": rows,
		}).Info(stmt)
	}
}

func (l *LogrusLogger) entry(ctx context.Context) *logrus.Entry {
	return l.Logger.WithContext(ctx).WithField("file", fileWithLineNum())
}

// LogrusLevel maps a LogLevel onto logrus' levels.
func LogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case Silent:
		return logrus.PanicLevel
	case Error:
		return logrus.ErrorLevel
	case Warn:
		return logrus.WarnLevel
	case Info:
		return logrus.InfoLevel
	default:
		return logrus.WarnLevel
	}
}
