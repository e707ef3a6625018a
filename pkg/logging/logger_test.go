package logging_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/dqsync/pkg/logging"
)

func TestDefaultLogger(t *testing.T) {
	original := *logging.Default()
	t.Cleanup(func() { logging.SetDefault(original) })

	buf := &bytes.Buffer{}
	logging.SetDefault(zerolog.New(buf).Level(zerolog.DebugLevel))

	logging.Default().Info().Msg("info message")
	logging.Default().Warn().Msg("warning message")

	assert.Contains(t, buf.String(), "info message")
	assert.Contains(t, buf.String(), "warning message")
}

func TestContextLogger(t *testing.T) {
	tl := logging.NewTestLogger(t)

	ctx := logging.WithLogger(context.Background(), tl.Logger)
	ctx = logging.WithRunID(ctx, "run-123")
	ctx = logging.WithDataset(ctx, "ds-1", "ORDERS")
	ctx = logging.WithCheck(ctx, "chk-9", "missing_check")

	logging.FromContext(ctx).Info().Msg("processing")

	tl.AssertContains(t, `"run_id":"run-123"`)
	tl.AssertContains(t, `"dataset":"ORDERS"`)
	tl.AssertContains(t, `"dataset_id":"ds-1"`)
	tl.AssertContains(t, `"check":"missing_check"`)
	assert.Equal(t, "run-123", logging.RunID(ctx))
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, logging.Default(), logging.FromContext(context.Background()))
	assert.Same(t, logging.Default(), logging.Ctx(nil)) //nolint:staticcheck
}

func TestWithError(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	assert.Equal(t, ctx, logging.WithError(ctx, nil))

	ctx = logging.WithError(ctx, assert.AnError)
	logging.FromContext(ctx).Warn().Msg("failed")
	tl.AssertContains(t, assert.AnError.Error())
}

func TestWithFieldsKeepsTypes(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)
	ctx = logging.WithFields(ctx, map[string]any{
		"checks":    12,
		"rows":      int64(40),
		"threshold": 0.05,
		"dry_run":   true,
	})
	ctx = logging.WithService(ctx, "soda")
	ctx = logging.WithOperation(ctx, "list checks")

	logging.FromContext(ctx).Info().Msg("fetched")

	entries := tl.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, float64(12), entries[0]["checks"])
	assert.Equal(t, float64(40), entries[0]["rows"])
	assert.Equal(t, 0.05, entries[0]["threshold"])
	assert.Equal(t, true, entries[0]["dry_run"])
	assert.Equal(t, "soda", entries[0]["service"])
	assert.Equal(t, "list checks", entries[0]["operation"])
}

func TestConfiguration(t *testing.T) {
	originalLevel := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(originalLevel) })

	tests := []struct {
		name     string
		level    string
		contains []string
		excludes []string
	}{
		{"debug level", "debug", []string{`"level":"debug"`, `"level":"info"`}, nil},
		{"error level only", "error", []string{`"level":"error"`}, []string{`"level":"info"`}},
		{"unknown level defaults to info", "chatty", []string{`"level":"info"`}, []string{`"level":"debug"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := logging.NewLoggerFromConfig(&logging.Config{Level: tt.level, Format: "json", Output: "discard"})
			logger = logger.Output(buf)

			logger.Debug().Msg("debug")
			logger.Info().Msg("info")
			logger.Error().Msg("error")

			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}
}

func TestFileOutput(t *testing.T) {
	originalLevel := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(originalLevel) })

	path := filepath.Join(t.TempDir(), "dqsync.log")
	logger := logging.NewLoggerFromConfig(&logging.Config{
		Level:  "info",
		Format: "json",
		Output: path,
		Fields: map[string]any{"component": "dqsync"},
	})
	logger.Info().Msg("written to file")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "written to file")
	assert.Contains(t, string(content), `"component":"dqsync"`)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"DEBUG":   zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"off":     zerolog.Disabled,
		"chatty":  zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, logging.ParseLevel(in), in)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "json")

	cfg := logging.ConfigFromEnv()
	assert.Equal(t, "warn", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stderr", cfg.Output)
}

func TestTestLogger(t *testing.T) {
	tl := logging.NewTestLogger(t)

	tl.Logger.Info().Msg("message 1")
	tl.Logger.Warn().Msg("message 2")

	assert.Equal(t, 2, tl.Count())
	assert.Equal(t, 1, tl.CountContaining("message 2"))
	tl.AssertNotContains(t, "message 3")

	tl.AssertLogged(t, zerolog.WarnLevel, "message 2")
	require.Len(t, tl.Entries(), 2)
	assert.Equal(t, "info", tl.Entries()[0]["level"])

	tl.Clear()
	assert.Equal(t, 0, tl.Count())
}
