package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestNew_AtomicLevel(t *testing.T) {
	l, atom, err := New("warn", "console")
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))

	atom.SetLevel(zapcore.DebugLevel)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	_, _, err = New("info", "xml")
	assert.Error(t, err)
}
