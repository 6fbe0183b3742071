package progress

import (
	"go.uber.org/zap"

	"github.com/sells-group/grant-cli/internal/model"
)

// Log writes progress to a zap logger. Item events are logged at debug level.
type Log struct {
	log *zap.Logger
}

// NewLog returns a Log sink. A nil logger uses the global logger.
func NewLog(log *zap.Logger) *Log {
	if log == nil {
		log = zap.L()
	}
	return &Log{log: log}
}

func (l *Log) Progress(ev model.ProgressEvent) {
	l.log.Debug("pipeline: progress",
		zap.String("stage", ev.Stage),
		zap.Int("current", ev.Current),
		zap.Int("total", ev.Total),
		zap.String("item", ev.Item),
	)
}

func (l *Log) Complete(s *model.Summary) {
	if s == nil {
		l.log.Info("pipeline: run complete")
		return
	}
	fields := []zap.Field{
		zap.String("run_id", s.RunID),
		zap.Bool("force", s.Force),
		zap.Int("created", s.Created),
		zap.Int("updated", s.Updated),
		zap.Int("duplicates_removed", s.DuplicatesRemoved),
		zap.Int("duplicates_skipped", s.DuplicatesSkipped),
		zap.Int("filtered_out", s.FilteredOut),
		zap.Float64("cost_usd", s.Usage.Cost),
		zap.Duration("duration", s.Duration),
	}
	for _, stage := range model.Stages {
		c := s.Stages[stage]
		fields = append(fields, zap.Any(stage, c))
	}
	l.log.Info("pipeline: run complete", fields...)
}

func (l *Log) Fail(err error) {
	l.log.Error("pipeline: run failed", zap.Error(err))
}
