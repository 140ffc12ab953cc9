package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFieldsAreAttached(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := SetForTest(zap.New(core))
	defer restore()

	Warn("userinfo lookup failed", map[string]any{
		"session": "abc",
		"error":   errors.New("boom"),
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "userinfo lookup failed", entries[0].Message)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "abc", ctx["session"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestNilFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := SetForTest(zap.New(core))
	defer restore()

	Info("started", nil)
	Debug("hidden", nil)

	require.Len(t, logs.All(), 1)
	assert.Empty(t, logs.All()[0].Context)
}
