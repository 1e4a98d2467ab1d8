package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	log, level, err := New(Config{Level: "debug", Format: "console", Development: true})
	require.NoError(t, err)
	require.NotNil(t, log)

	assert.Equal(t, zapcore.DebugLevel, level.Level())
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	level.SetLevel(zapcore.WarnLevel)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("chatty"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
}
