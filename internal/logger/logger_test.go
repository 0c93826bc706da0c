package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreGlobalLogger(t *testing.T) {
	t.Helper()
	original := log.Logger
	t.Cleanup(func() { log.Logger = original })
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"INFO":     zerolog.InfoLevel,
		"debug":    zerolog.DebugLevel,
		"Warning":  zerolog.WarnLevel,
		"WARN":     zerolog.WarnLevel,
		"ERROR":    zerolog.ErrorLevel,
		"CRITICAL": zerolog.FatalLevel,
		"":         zerolog.InfoLevel,
		"verbose":  zerolog.InfoLevel,
	}

	for input, expected := range tests {
		t.Run(input, func(t *testing.T) {
			assert.Equal(t, expected, ParseLevel(input))
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("console output respects level", func(t *testing.T) {
		restoreGlobalLogger(t)
		out := &bytes.Buffer{}

		logger, err := New(Config{Level: "WARNING", Console: true, Out: out})
		require.NoError(t, err)
		defer logger.Close()

		zl := logger.Zerolog()
		zl.Info().Msg("hidden")
		zl.Warn().Msg("shown")

		assert.NotContains(t, out.String(), "hidden")
		assert.Contains(t, out.String(), "shown")
	})

	t.Run("installs global logger", func(t *testing.T) {
		restoreGlobalLogger(t)
		out := &bytes.Buffer{}

		logger, err := New(Config{Level: "info", Console: true, Out: out})
		require.NoError(t, err)
		defer logger.Close()

		log.Info().Msg("from global")
		assert.Contains(t, out.String(), "from global")
	})

	t.Run("file output", func(t *testing.T) {
		restoreGlobalLogger(t)
		logFile := filepath.Join(t.TempDir(), "logs", "agent.log")

		logger, err := New(Config{Level: "debug", File: logFile})
		require.NoError(t, err)

		sessionLog := logger.Component("session")
		sessionLog.Debug().Msg("turn started")
		require.NoError(t, logger.Close())

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "turn started")
		assert.Contains(t, string(data), `"component":"session"`)
	})
}
