package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger(t *testing.T, cfg Config) *bytes.Buffer {
	t.Helper()
	prev := Logger()
	t.Cleanup(func() { SetLogger(prev) })

	var buf bytes.Buffer
	cfg.Output = &buf
	Init(cfg)
	return &buf
}

func TestInitRespectsLevel(t *testing.T) {
	buf := captureLogger(t, Config{Level: "warn", Format: "json"})

	Info().Msg("hidden")
	Warn().Str("pool", "main").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "main", entry["pool"])
	assert.Equal(t, "warn", entry["level"])
}

func TestDisabledLevel(t *testing.T) {
	buf := captureLogger(t, Config{Level: "disabled"})

	Error().Msg("nothing")
	assert.Zero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("bogus"))
	assert.Equal(t, zerolog.Disabled, parseLevel("disabled"))
}

func TestCtxAddsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), zerolog.New(&buf))
	ctx = ContextWithCorrelationID(ctx, "abc123")

	Ctx(ctx).Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "abc123", entry["correlation_id"])
	assert.Equal(t, "abc123", CorrelationIDFromContext(ctx))
}

func TestGenerateCorrelationID(t *testing.T) {
	ctx := ContextWithNewCorrelationID(context.Background())
	assert.Len(t, CorrelationIDFromContext(ctx), 8)
	assert.NotEqual(t, GenerateCorrelationID(), GenerateCorrelationID())
}
