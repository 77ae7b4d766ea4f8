package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithoutContext(t *testing.T) {
	for _, tc := range []struct {
		name          string
		log           func(Logger, string)
		expectedLevel zapcore.Level
	}{
		{name: "Info", log: func(l Logger, m string) { l.Info(m) }, expectedLevel: zapcore.InfoLevel},
		{name: "Debug", log: func(l Logger, m string) { l.Debug(m) }, expectedLevel: zapcore.DebugLevel},
		{name: "Warn", log: func(l Logger, m string) { l.Warn(m) }, expectedLevel: zapcore.WarnLevel},
		{name: "Error", log: func(l Logger, m string) { l.Error(m) }, expectedLevel: zapcore.ErrorLevel},
	} {
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			dut := &ZapLogger{zap.New(core)}

			tc.log(dut, "ABC")

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			require.Equal(t, "ABC", entry.Message)
			require.Empty(t, entry.ContextMap())
			require.Equal(t, tc.expectedLevel, entry.Level)
		})
	}
}

func TestWithContextAppendsContextFields(t *testing.T) {
	for _, tc := range []struct {
		name          string
		log           func(Logger, context.Context, string)
		expectedLevel zapcore.Level
	}{
		{name: "InfoWithContext", log: func(l Logger, ctx context.Context, m string) { l.InfoWithContext(ctx, m) }, expectedLevel: zapcore.InfoLevel},
		{name: "DebugWithContext", log: func(l Logger, ctx context.Context, m string) { l.DebugWithContext(ctx, m) }, expectedLevel: zapcore.DebugLevel},
		{name: "WarnWithContext", log: func(l Logger, ctx context.Context, m string) { l.WarnWithContext(ctx, m) }, expectedLevel: zapcore.WarnLevel},
		{name: "ErrorWithContext", log: func(l Logger, ctx context.Context, m string) { l.ErrorWithContext(ctx, m) }, expectedLevel: zapcore.ErrorLevel},
	} {
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			dut := &ZapLogger{zap.New(core)}

			ctx := ContextWithFields(context.Background(), zap.String("run_id", "01ABC"))
			ctx = ContextWithFields(ctx, zap.Int64("tag_id", 7))
			tc.log(dut, ctx, "ABC")

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			require.Equal(t, map[string]interface{}{"run_id": "01ABC", "tag_id": int64(7)}, entry.ContextMap())
			require.Equal(t, tc.expectedLevel, entry.Level)
		})
	}
}

func TestContextFieldsDoNotLeakBetweenCalls(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	dut := &ZapLogger{zap.New(core)}

	base := ContextWithFields(context.Background(), zap.String("run_id", "r1"))
	dut.InfoWithContext(base, "first", zap.Int("n", 1))
	dut.InfoWithContext(base, "second", zap.Int("n", 2))

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, map[string]interface{}{"run_id": "r1", "n": int64(2)}, entries[1].ContextMap())
	require.Len(t, FieldsFromContext(base), 1)
}

func TestWithReturnsChildLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	parent := &ZapLogger{zap.New(core)}

	child := parent.With(zap.String("component", "tag"))
	child.Info("child")
	parent.Info("parent")

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, map[string]interface{}{"component": "tag"}, entries[0].ContextMap())
	require.Empty(t, entries[1].ContextMap())
}

func TestNewLogger(t *testing.T) {
	_, err := NewLogger("json", "info")
	require.NoError(t, err)

	_, err = NewLogger("text", "debug")
	require.NoError(t, err)

	l, err := NewLogger("json", "none")
	require.NoError(t, err)
	require.NotNil(t, l)

	_, err = NewLogger("json", "loud")
	require.ErrorContains(t, err, "unknown log level")

	_, err = NewLogger("xml", "info")
	require.ErrorContains(t, err, "unknown log format")
}
