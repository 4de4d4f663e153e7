package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/wowhead-parser/internal/progress"
)

// LogSink writes every progress event as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("progress")}
}

// Consume logs each event. Fetch events log at debug, run milestones at info.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID),
			zap.String("stage", string(evt.Stage)),
			zap.String("parser", evt.Parser),
		}
		switch evt.Stage {
		case progress.StageFetchDone:
			fields = append(fields,
				zap.Uint32("entry_id", uint32(evt.Entry)),
				zap.String("url", evt.URL),
				zap.Bool("ok", evt.OK),
				zap.String("status_class", string(evt.StatusClass)),
				zap.Int64("bytes", evt.Bytes),
				zap.Duration("dur", evt.Dur),
			)
			s.logger.Debug("entry fetched", fields...)
		default:
			fields = append(fields,
				zap.Int("total", evt.Total),
				zap.Int("fetched", evt.Fetched),
				zap.Int("failed", evt.Failed),
				zap.Duration("dur", evt.Dur),
			)
			if evt.Note != "" {
				fields = append(fields, zap.String("note", evt.Note))
			}
			s.logger.Info("run progress", fields...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
