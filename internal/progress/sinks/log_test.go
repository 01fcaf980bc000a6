package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/dynamic-handlers/internal/progress"
)

// TestLogSinkWritesStructuredFields checks each event becomes one log entry with its stage fields.
func TestLogSinkWritesStructuredFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewLogSink(zap.New(core))

	runID := uuid.New()
	batch := []progress.Event{
		{RunID: progress.UUIDToBytes(runID), TS: time.Now(), Stage: progress.StageRunStart},
		{
			RunID:     progress.UUIDToBytes(runID),
			TS:        time.Now(),
			Stage:     progress.StageProgress,
			Iteration: 4,
			Message:   "Working (4%)",
		},
		{RunID: progress.UUIDToBytes(runID), TS: time.Now(), Stage: progress.StageRunError, Note: "boom"},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))
	require.NoError(t, sink.Close(context.Background()))

	entries := logs.All()
	require.Len(t, entries, 3)
	progressFields := entries[1].ContextMap()
	require.Equal(t, runID.String(), progressFields["run_id"])
	require.Equal(t, int64(4), progressFields["iteration"])
	require.Equal(t, "Working (4%)", progressFields["message"])
	require.Equal(t, "boom", entries[2].ContextMap()["note"])
}

func TestNewLogSinkNilLogger(t *testing.T) {
	t.Parallel()

	sink := NewLogSink(nil)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{{Stage: progress.StageRunStart}}))
}
