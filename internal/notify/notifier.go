// Package notify delivers training run notifications.
package notify

import (
	"context"
	"time"
)

// ModelOutcome is the result of training one model.
type ModelOutcome struct {
	Name    string
	Success bool
	Samples int
	// Detail is a metric line on success or the rejection reason on failure.
	Detail string
}

// TrainingSummary describes a finished training run.
type TrainingSummary struct {
	TrainingID string
	Timestamp  time.Time
	Models     []ModelOutcome
	ReportPath string
}

// Succeeded returns the number of models trained successfully.
func (s *TrainingSummary) Succeeded() int {
	n := 0
	for _, m := range s.Models {
		if m.Success {
			n++
		}
	}
	return n
}

// Notifier defines the interface for sending training notifications.
type Notifier interface {
	NotifyTraining(ctx context.Context, summary *TrainingSummary) error
}
