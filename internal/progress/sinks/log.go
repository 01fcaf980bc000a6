package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/dynamic-handlers/internal/progress"
)

// LogSink writes one structured log line per run event.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.Stringer("run_id", evt.RunUUID()),
			zap.String("stage", string(evt.Stage)),
			zap.String("worker_type", evt.WorkerType),
			zap.Time("ts", evt.TS),
		}
		switch evt.Stage {
		case progress.StageProgress:
			fields = append(fields, zap.Int("iteration", evt.Iteration), zap.String("message", evt.Message))
		case progress.StageRunDone:
			fields = append(fields, zap.Duration("dur", evt.Dur))
		case progress.StageRunError:
			fields = append(fields, zap.Duration("dur", evt.Dur), zap.String("note", evt.Note))
		}
		s.logger.Debug("run event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
