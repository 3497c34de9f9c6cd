package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestZerolog() (zerolog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return zerolog.New(&buf).With().Timestamp().Logger(), &buf
}

func TestNewZerologLogger(t *testing.T) {
	zerologLogger, buf := setupTestZerolog()

	config := Config{
		LogLevel:      Info,
		SlowThreshold: 100 * time.Millisecond,
	}

	zerologAdapter := NewZerologLogger(zerologLogger, config)

	require.NotNil(t, zerologAdapter)
	assert.Equal(t, Info, zerologAdapter.(*ZerologLogger).LogLevel)
	assert.Equal(t, 100*time.Millisecond, zerologAdapter.(*ZerologLogger).SlowThreshold)
	require.NotNil(t, buf)
}

func TestZerologLogger_LogMode(t *testing.T) {
	zerologLogger, _ := setupTestZerolog()

	logger := NewZerologLogger(zerologLogger, Config{
		LogLevel: Error,
	})

	infoLogger := logger.LogMode(Info)
	assert.Equal(t, Info, infoLogger.(*ZerologLogger).LogLevel)

	// the original is not affected
	assert.Equal(t, Error, logger.(*ZerologLogger).LogLevel)
}

func TestZerologLogger_LogLevels(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		level  LogLevel
		logMsg string
	}{
		{"Info level", Info, "Test info message"},
		{"Warn level", Warn, "Test warn message"},
		{"Error level", Error, "Test error message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zerologLogger, testBuf := setupTestZerolog()
			testLogger := NewZerologLogger(zerologLogger, Config{
				LogLevel: tt.level,
			})

			switch tt.level {
			case Info:
				testLogger.Info(ctx, tt.logMsg)
			case Warn:
				testLogger.Warn(ctx, tt.logMsg)
			case Error:
				testLogger.Error(ctx, tt.logMsg)
			}

			output := testBuf.String()
			assert.Contains(t, output, tt.logMsg)
			assert.Contains(t, output, "file")
		})
	}
}

func TestZerologLogger_LevelFiltering(t *testing.T) {
	ctx := context.Background()
	zerologLogger, buf := setupTestZerolog()
	testLogger := NewZerologLogger(zerologLogger, Config{LogLevel: Error})

	testLogger.Info(ctx, "filtered info")
	testLogger.Warn(ctx, "filtered warn")
	assert.Empty(t, buf.String())

	testLogger.Error(ctx, "kept error")
	assert.Contains(t, buf.String(), "kept error")
}

func TestZerologLogger_Trace(t *testing.T) {
	ctx := context.Background()

	t.Run("info trace", func(t *testing.T) {
		zerologLogger, buf := setupTestZerolog()
		testLogger := NewZerologLogger(zerologLogger, Config{LogLevel: Info})

		testLogger.Trace(ctx, time.Now(), func() (string, int64) {
			return "SELECT * FROM ProductData", 3
		}, nil)

		output := buf.String()
		assert.Contains(t, output, "SELECT * FROM ProductData")
		assert.Contains(t, output, `"rows":3`)
	})

	t.Run("error trace", func(t *testing.T) {
		zerologLogger, buf := setupTestZerolog()
		testLogger := NewZerologLogger(zerologLogger, Config{LogLevel: Warn})

		testLogger.Trace(ctx, time.Now(), func() (string, int64) {
			return "SELECT * FROM missing", 0
		}, errors.New("no such table"))

		output := buf.String()
		assert.Contains(t, output, "no such table")
		assert.Contains(t, output, `"level":"error"`)
	})

	t.Run("slow trace", func(t *testing.T) {
		zerologLogger, buf := setupTestZerolog()
		testLogger := NewZerologLogger(zerologLogger, Config{
			LogLevel:      Warn,
			SlowThreshold: time.Nanosecond,
		})

		begin := time.Now().Add(-time.Second)
		testLogger.Trace(ctx, begin, func() (string, int64) {
			return "SELECT * FROM ProductData", 1
		}, nil)

		assert.Contains(t, buf.String(), `"level":"warn"`)
	})

	t.Run("record not found suppressed", func(t *testing.T) {
		zerologLogger, buf := setupTestZerolog()
		testLogger := NewZerologLogger(zerologLogger, Config{
			LogLevel:                  Error,
			IgnoreRecordNotFoundError: true,
		})

		testLogger.Trace(ctx, time.Now(), func() (string, int64) {
			return "SELECT * FROM ProductData", 0
		}, ErrRecordNotFound)

		assert.Empty(t, buf.String())
	})

	t.Run("silent", func(t *testing.T) {
		zerologLogger, buf := setupTestZerolog()
		testLogger := NewZerologLogger(zerologLogger, Config{LogLevel: Silent})

		testLogger.Trace(ctx, time.Now(), func() (string, int64) {
			return "SELECT 1", 0
		}, errors.New("ignored"))

		assert.Empty(t, buf.String())
	})
}
