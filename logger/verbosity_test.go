package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestVerbosityToLevel(t *testing.T) {
	assert.Equal(t, zapcore.InfoLevel, VerbosityToLevel(VerbosityUser))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(VerbosityDebug))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(3))
}

func TestInitializeHonorsVerbosity(t *testing.T) {
	defer func() {
		Logger = nil
		require.NoError(t, Initialize(false, 0))
	}()

	require.NoError(t, Initialize(false, 0))
	assert.True(t, Logger.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, Logger.Desugar().Core().Enabled(zapcore.DebugLevel), "debug silent without -v")

	require.NoError(t, Initialize(false, 1))
	assert.True(t, Logger.Desugar().Core().Enabled(zapcore.DebugLevel), "-v enables debug")

	require.NoError(t, Initialize(true, 1))
	assert.True(t, Logger.Desugar().Core().Enabled(zapcore.DebugLevel), "JSON output honors verbosity too")
}
