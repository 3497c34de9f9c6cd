// Package logger defines the logging contract of the data layer and
// backends for zerolog, zap, logrus and slog. The zerolog backend is the
// default.
package logger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// LogLevel controls which messages a logger emits.
type LogLevel int

const (
	// Silent suppresses all output.
	Silent LogLevel = iota + 1
	// Error prints errors.
	Error
	// Warn prints warnings and errors.
	Warn
	// Info prints statements, warnings and errors.
	Info
)

// ErrRecordNotFound mirrors the engine's not-found sentinel so Trace can
// suppress it without importing the root package.
var ErrRecordNotFound = errors.New("record not found")

// Config carries the options shared by every backend.
type Config struct {
	SlowThreshold             time.Duration
	LogLevel                  LogLevel
	IgnoreRecordNotFoundError bool
}

// Interface is implemented by every logging backend.
type Interface interface {
	LogMode(LogLevel) Interface
	Info(ctx context.Context, msg string, data ...interface{})
	Warn(ctx context.Context, msg string, data ...interface{})
	Error(ctx context.Context, msg string, data ...interface{})
	// Trace reports one statement dispatch; fc returns the rendered
	// statement and the affected row count.
	Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error)
}

// Default is the logger used when a configuration supplies none.
var Default = NewZerologLoggerWithConfig(Config{
	SlowThreshold:             200 * time.Millisecond,
	LogLevel:                  Warn,
	IgnoreRecordNotFoundError: true,
})

// Discard drops everything.
var Discard Interface = discard{}

type discard struct{}

func (discard) LogMode(LogLevel) Interface                                      { return Discard }
func (discard) Info(context.Context, string, ...interface{})                    {}
func (discard) Warn(context.Context, string, ...interface{})                    {}
func (discard) Error(context.Context, string, ...interface{})                   {}
func (discard) Trace(context.Context, time.Time, func() (string, int64), error) {}

func format(msg string, data []interface{}) string {
	if len(data) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, data...)
}

// fileWithLineNum locates the first caller outside this module.
func fileWithLineNum() string {
	for i := 3; i < 15; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if strings.Contains(file, "modelkit/modelq") && !strings.HasSuffix(file, "_test.go") {
			continue
		}
		return filepath.Base(file) + ":" + strconv.Itoa(line)
	}
	return ""
}

func traceSuppressed(err error, ignoreNotFound bool) bool {
	return err == nil || ignoreNotFound && errors.Is(err, ErrRecordNotFound)
}
