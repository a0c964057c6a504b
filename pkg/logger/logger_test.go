package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_EmitsJSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("storefront", "info", &buf)

	log.Info("hello", slog.String("key", "value"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "storefront", entry["component"])
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "value", entry["key"])
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("storefront", "warn", &buf)

	log.Info("suppressed")
	assert.Zero(t, buf.Len())

	log.Warn("emitted")
	assert.Contains(t, buf.String(), "emitted")
}

func TestNewWithWriter_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("storefront", "chatty", &buf)

	log.Debug("suppressed")
	assert.Zero(t, buf.Len())

	log.Info("emitted")
	assert.Contains(t, buf.String(), "emitted")
}

func TestCorrelationID_RoundTrip(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "abc-123")
	assert.Equal(t, "abc-123", CorrelationIDFromContext(ctx))
}

func TestCorrelationID_MissingReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", CorrelationIDFromContext(context.Background()))
}

func TestFromContext_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("storefront", "info", &buf)

	ctx := NewContext(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
}

func TestFromContext_MissingReturnsDefault(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
}
