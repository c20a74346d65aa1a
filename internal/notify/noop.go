package notify

import (
	"context"
	"log/slog"
)

// NoOpNotifier implements Notifier by logging discarded summaries. It is used
// when no notification backend is configured.
type NoOpNotifier struct {
	log *slog.Logger
}

// NewNoOpNotifier creates a notifier that discards summaries with a log message.
func NewNoOpNotifier(log *slog.Logger) *NoOpNotifier {
	return &NoOpNotifier{log: log}
}

// NotifyTraining logs and discards a training summary.
func (n *NoOpNotifier) NotifyTraining(_ context.Context, s *TrainingSummary) error {
	n.log.Debug("notification discarded (no backend configured)",
		"training_id", s.TrainingID,
		"models", len(s.Models),
		"succeeded", s.Succeeded(),
	)
	return nil
}
