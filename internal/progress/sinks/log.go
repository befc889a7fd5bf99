package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkcrawler/internal/progress"
)

// LogSink emits structured logs for progress events. Fetch events are logged
// at debug level; run and round milestones at info.
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
			zap.Int("round", evt.Round),
			zap.Duration("dur", evt.Dur),
		}
		switch evt.Stage {
		case progress.StageFetchDone:
			fields = append(fields,
				zap.String("site", evt.Site),
				zap.String("url", evt.URL),
				zap.String("status_class", string(evt.StatusClass)),
				zap.Int64("bytes", evt.Bytes),
			)
			s.logger.Debug("progress event", fields...)
			continue
		case progress.StageRoundStart, progress.StageRoundDone:
			fields = append(fields, zap.Int("queued", evt.Queued))
		case progress.StageCrawlDone, progress.StageCrawlError:
			fields = append(fields, zap.Int64("checked", evt.Checked))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Info("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
