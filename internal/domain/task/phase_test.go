package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunSeedsTranscript(t *testing.T) {
	tk := New("fix the flaky test", "/work")
	run := NewRun(tk)

	require.Equal(t, PhasePlanning, run.Phase)
	require.Equal(t, 1, run.Transcript.Len())

	turns := run.Transcript.Turns()
	assert.Equal(t, RoleSystem, turns[0].Role)
	assert.Equal(t, "fix the flaky test", turns[0].Content)
	assert.Equal(t, 0, turns[0].Seq)
}

func TestTranscriptSequenceIsTotalOrder(t *testing.T) {
	var tr Transcript
	for i := 0; i < 5; i++ {
		turn := tr.Append(RoleOracle, "turn", nil)
		assert.Equal(t, i, turn.Seq)
	}

	turns := tr.Turns()
	for i, turn := range turns {
		assert.Equal(t, i, turn.Seq)
	}

	// Mutating the returned slice must not affect the transcript.
	turns[0].Content = "mutated"
	assert.Equal(t, "turn", tr.Turns()[0].Content)
}

func TestPhaseTransitions(t *testing.T) {
	tests := []struct {
		name string
		from Phase
		to   Phase
		ok   bool
	}{
		{"planning to acting", PhasePlanning, PhaseActing, true},
		{"acting to observing", PhaseActing, PhaseObserving, true},
		{"acting to complete", PhaseActing, PhaseComplete, true},
		{"acting to waiting", PhaseActing, PhaseWaitingForHelp, true},
		{"observing to reflecting", PhaseObserving, PhaseReflecting, true},
		{"reflecting to acting", PhaseReflecting, PhaseActing, true},
		{"planning to observing", PhasePlanning, PhaseObserving, false},
		{"complete is terminal", PhaseComplete, PhaseActing, false},
		{"failed is terminal", PhaseFailed, PhasePlanning, false},
		{"cancelled is terminal", PhaseCancelled, PhaseActing, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := &Run{Phase: tt.from}
			err := run.Transition(tt.to)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, run.Phase)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.from, run.Phase)
			}
		})
	}
}

func TestTerminalPhases(t *testing.T) {
	assert.True(t, PhaseComplete.Terminal())
	assert.True(t, PhaseFailed.Terminal())
	assert.True(t, PhaseCancelled.Terminal())
	assert.True(t, PhaseWaitingForHelp.Terminal())
	assert.False(t, PhaseActing.Terminal())
	assert.False(t, PhasePlanning.Terminal())
}

func TestPhaseStatusMapping(t *testing.T) {
	assert.Equal(t, StatusCompleted, PhaseComplete.Status())
	assert.Equal(t, StatusCompleted, PhaseWaitingForHelp.Status())
	assert.Equal(t, StatusFailed, PhaseFailed.Status())
	assert.Equal(t, StatusCancelled, PhaseCancelled.Status())
	assert.Equal(t, StatusInProgress, PhaseActing.Status())
}
