// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendCtx(t *testing.T) {
	ctx := AppendCtx(context.Background(), slog.String(MeetingKey, "m-1"))
	ctx = AppendCtx(ctx, slog.String(ActorKey, "alice"))

	attrs, ok := ctx.Value(slogFields).([]slog.Attr)
	require.True(t, ok)
	require.Len(t, attrs, 2)
	assert.Equal(t, MeetingKey, attrs[0].Key)
	assert.Equal(t, "alice", attrs[1].Value.String())
}

func TestContextHandler_DerivedLoggers(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, nil)).WithGroup("queue")

	ctx := AppendCtx(context.Background(), slog.String(JobKey, "j-1"))
	logger.ErrorContext(ctx, "job failed", ErrKey, errors.New("boom"), PriorityCritical())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	group, ok := entry["queue"].(map[string]any)
	require.True(t, ok, "entry: %s", buf.String())
	assert.Equal(t, "j-1", group[JobKey])
	assert.Equal(t, "boom", group[ErrKey])
	assert.Equal(t, "critical", group["priority"])
}

func TestInitStructureLogConfig(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	tests := []struct {
		level     string
		addSource string
		enabled   slog.Level
		disabled  slog.Level
	}{
		{level: "", enabled: slog.LevelInfo, disabled: slog.LevelDebug},
		{level: "debug", addSource: "1", enabled: slog.LevelDebug, disabled: slog.LevelDebug - 1},
		{level: "error", addSource: "false", enabled: slog.LevelError, disabled: slog.LevelWarn},
	}
	for _, tt := range tests {
		t.Run("level="+tt.level, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.level)
			t.Setenv("LOG_ADD_SOURCE", tt.addSource)

			h := InitStructureLogConfig()

			ctx := context.Background()
			assert.True(t, h.Enabled(ctx, tt.enabled))
			assert.False(t, h.Enabled(ctx, tt.disabled))
			assert.Equal(t, h, slog.Default().Handler())
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" warn ", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewHandler_IncludesContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := AppendCtx(context.Background(), slog.String(MeetingKey, "m-1"))
	ctx = AppendCtx(ctx, slog.String(TenantKey, "t-1"))
	logger.With(ComponentKey, "reconciler").InfoContext(ctx, "reconciled", "outcome", "processed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "reconciled", entry["msg"])
	assert.Equal(t, "m-1", entry[MeetingKey])
	assert.Equal(t, "t-1", entry[TenantKey])
	assert.Equal(t, "reconciler", entry[ComponentKey])
	assert.Equal(t, "processed", entry["outcome"])
}

func TestAppendCtx_SiblingsDoNotShareAttributes(t *testing.T) {
	base := AppendCtx(context.Background(), slog.String("a", "1"))
	left := AppendCtx(base, slog.String("b", "2"))
	right := AppendCtx(base, slog.String("c", "3"))

	leftAttrs := left.Value(slogFields).([]slog.Attr)
	rightAttrs := right.Value(slogFields).([]slog.Attr)
	require.Len(t, leftAttrs, 2)
	require.Len(t, rightAttrs, 2)
	assert.Equal(t, "b", leftAttrs[1].Key)
	assert.Equal(t, "c", rightAttrs[1].Key)
}

func TestPriorityCritical(t *testing.T) {
	attr := PriorityCritical()
	assert.Equal(t, "priority", attr.Key)
	assert.Equal(t, "critical", attr.Value.String())
}
