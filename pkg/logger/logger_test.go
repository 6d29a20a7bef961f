package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerLevels(t *testing.T) {
	prod, err := NewLogger("production", "")
	require.NoError(t, err)
	assert.False(t, prod.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, prod.Core().Enabled(zapcore.InfoLevel))

	dev, err := NewLogger("development", "warn")
	require.NoError(t, err)
	assert.False(t, dev.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, dev.Core().Enabled(zapcore.WarnLevel))

	bogus, err := NewLogger("development", "loud")
	require.NoError(t, err)
	assert.True(t, bogus.Core().Enabled(zapcore.DebugLevel))
}
