package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestConfig(t *testing.T) {
	t.Parallel()

	console := config(false, false)
	assert.Equal(t, "console", console.Encoding)
	assert.Equal(t, zapcore.InfoLevel, console.Level.Level())
	assert.Empty(t, console.InitialFields)
	assert.Equal(t, "step", console.EncoderConfig.MessageKey)

	jsonDebug := config(true, true)
	assert.Equal(t, "json", jsonDebug.Encoding)
	assert.Equal(t, zapcore.DebugLevel, jsonDebug.Level.Level())
	assert.Equal(t, App, jsonDebug.InitialFields["app"])
}

func TestNewBuildsLogger(t *testing.T) {
	t.Parallel()

	log, err := New(true, false)
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}
