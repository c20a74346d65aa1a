package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoOpNotifier_NotifyTraining(t *testing.T) {
	t.Parallel()

	n := NewNoOpNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, n.NotifyTraining(context.Background(), testSummary(true, false)))
}

func TestTrainingSummary_Succeeded(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2, testSummary(true, true).Succeeded())
	assert.Equal(t, 1, testSummary(false, true).Succeeded())
	assert.Equal(t, 0, (&TrainingSummary{}).Succeeded())
}

// compile-time interface checks.
var (
	_ Notifier = (*NoOpNotifier)(nil)
	_ Notifier = (*DiscordNotifier)(nil)
)
