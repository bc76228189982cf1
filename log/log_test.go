package log

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoggerLevels(t *testing.T) {
	type logTest struct {
		level      int
		allowedLvl int
		msg        string
		wantOut    bool
	}

	tests := []logTest{
		{InfoLevel, InfoLevel, "hello", true},
		{DebugLevel, InfoLevel, "hello", false},
		{ErrorLevel, DebugLevel, "hello", true},
		{WarnLevel, ErrorLevel, "hello", false},
	}

	for i, test := range tests {
		var b bytes.Buffer
		writer := bufio.NewWriter(&b)
		syncer := zapcore.AddSync(writer)
		logger := New(syncer, test.allowedLvl, false)

		switch test.level {
		case InfoLevel:
			logger.Info(test.msg)
		case DebugLevel:
			logger.Debug(test.msg)
		case WarnLevel:
			logger.Warn(test.msg)
		case ErrorLevel:
			logger.Error(test.msg)
		}
		_ = writer.Flush()

		if test.wantOut {
			require.Containsf(t, b.String(), test.msg, "case %d", i)
		} else {
			require.Emptyf(t, b.String(), "case %d", i)
		}
	}
}

func TestLoggerWithAndNamed(t *testing.T) {
	var b bytes.Buffer
	writer := bufio.NewWriter(&b)
	logger := New(zapcore.AddSync(writer), InfoLevel, false)

	logger = logger.Named("cache").With("key", "42")
	logger.Infow("evicted", "count", 3)
	_ = writer.Flush()

	out := b.String()
	require.Contains(t, out, "cache")
	require.Contains(t, out, "key")
	require.Contains(t, out, "evicted")
}
