package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_Environments(t *testing.T) {
	tests := []struct {
		env   string
		level string
		want  zapcore.Level
	}{
		{"prod", "", zapcore.InfoLevel},
		{"local", "", zapcore.DebugLevel},
		{"dev", "error", zapcore.ErrorLevel},
		{"cli", "", zapcore.WarnLevel},
		{"cli", "debug", zapcore.DebugLevel},
	}

	for _, tc := range tests {
		t.Run(tc.env+"/"+tc.level, func(t *testing.T) {
			l, err := NewLogger(tc.env, tc.level)
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tc.want))
			if tc.want > zapcore.DebugLevel {
				assert.False(t, l.Core().Enabled(tc.want-1))
			}
		})
	}
}

func TestNewLogger_Invalid(t *testing.T) {
	_, err := NewLogger("staging", "")
	require.Error(t, err)

	_, err = NewLogger("local", "loud")
	require.Error(t, err)
}

func TestFromContext_Default(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))
}

func TestWith_PropagatesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ContextWithLogger(context.Background(), zap.New(core))

	ctx, l := With(ctx, zap.String("request_id", "r1"))
	l.Info("first")
	_, inner := With(ctx, zap.Int("documents", 2))
	inner.Info("second")

	require.Equal(t, 2, logs.Len())
	second := logs.All()[1].ContextMap()
	assert.Equal(t, "r1", second["request_id"])
	assert.Equal(t, int64(2), second["documents"])
}
