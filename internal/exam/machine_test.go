package exam

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func twoQuestionTest() []Question {
	return []Question{
		{ID: "q1", Type: SingleChoice, Key: ChoiceKey{CorrectIDs: []string{"a"}}},
		{ID: "q2", Type: MultipleChoice, Key: ChoiceKey{CorrectIDs: []string{"x", "y"}}},
	}
}

func TestMachineScoresExample(t *testing.T) {
	m := NewMachine(twoQuestionTest())
	require.NoError(t, m.Start(t0))

	ans, err := m.Record(SingleChoiceResponse{SelectedID: "a"}, t0.Add(10*time.Second))
	require.NoError(t, err)
	assert.True(t, ans.IsCorrect)
	assert.Equal(t, 10, ans.TimeSpentSeconds)

	require.NoError(t, m.Next(t0.Add(10*time.Second)))
	ans, err = m.Record(MultipleChoiceResponse{SelectedIDs: []string{"x"}}, t0.Add(25*time.Second))
	require.NoError(t, err)
	assert.False(t, ans.IsCorrect)

	sum, err := m.Finish(false, t0.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Correct)
	assert.Equal(t, 50, sum.Percentage)
	assert.Equal(t, ReasonFinished, sum.Reason)
	assert.Equal(t, 30, sum.DurationSeconds())
	assert.Equal(t, PhaseCompleted, m.Phase())
}

func TestMachineNavigationPreservesAnswers(t *testing.T) {
	m := NewMachine(twoQuestionTest())
	require.NoError(t, m.Start(t0))

	resp := SingleChoiceResponse{SelectedID: "b"}
	_, err := m.Record(resp, t0)
	require.NoError(t, err)

	require.NoError(t, m.GoTo(1, t0))
	require.NoError(t, m.GoTo(0, t0))

	got, ok := m.Answer("q1")
	require.True(t, ok)
	assert.Equal(t, resp, got.Response)
	assert.Equal(t, 0, m.CurrentIndex())

	assert.ErrorIs(t, m.GoTo(2, t0), ErrQuestionOutOfRange)
	assert.ErrorIs(t, m.Prev(t0), ErrQuestionOutOfRange)
}

func TestMachineOverwriteAccumulatesTime(t *testing.T) {
	m := NewMachine(twoQuestionTest())
	require.NoError(t, m.Start(t0))

	_, err := m.Record(SingleChoiceResponse{SelectedID: "b"}, t0.Add(5*time.Second))
	require.NoError(t, err)
	ans, err := m.Record(SingleChoiceResponse{SelectedID: "a"}, t0.Add(8*time.Second))
	require.NoError(t, err)
	assert.True(t, ans.IsCorrect)
	assert.Equal(t, 8, ans.TimeSpentSeconds)
}

func TestMachineTimeFollowsNavigation(t *testing.T) {
	m := NewMachine(twoQuestionTest())
	require.NoError(t, m.Start(t0))

	// 在 q1 停留 7 秒未作答就去答 q2
	ans, err := m.RecordFor("q2", MultipleChoiceResponse{SelectedIDs: []string{"x", "y"}}, t0.Add(7*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 0, ans.TimeSpentSeconds)
	assert.Equal(t, 7, m.TimeSpent("q1"))

	// 回到 q1 再停 4 秒后作答，之前的 7 秒不丢
	require.NoError(t, m.GoTo(0, t0.Add(12*time.Second)))
	got, ok := m.Answer("q2")
	require.True(t, ok)
	assert.Equal(t, 5, got.TimeSpentSeconds)

	ans, err = m.Record(SingleChoiceResponse{SelectedID: "a"}, t0.Add(16*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 11, ans.TimeSpentSeconds)

	sum, err := m.Finish(false, t0.Add(20*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 15, sum.Results[0].TimeSpent)
	assert.Equal(t, 5, sum.Results[1].TimeSpent)

	restored := NewMachine(twoQuestionTest())
	require.NoError(t, restored.Restore(m.Snapshot()))
	assert.Equal(t, 15, restored.TimeSpent("q1"))
}

func TestMachineFinishRequiresConfirmation(t *testing.T) {
	m := NewMachine(twoQuestionTest())
	require.NoError(t, m.Start(t0))
	_, err := m.Record(SingleChoiceResponse{SelectedID: "a"}, t0)
	require.NoError(t, err)

	_, err = m.Finish(false, t0)
	require.ErrorIs(t, err, ErrUnansweredQuestions)
	var ue *UnansweredError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, []int{1}, ue.Indexes)
	assert.Equal(t, PhaseInProgress, m.Phase())

	sum, err := m.Finish(true, t0)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Answered)
	assert.Equal(t, 50, sum.Percentage)
}

func TestMachineExpireAndRetry(t *testing.T) {
	m := NewMachine(twoQuestionTest())
	require.NoError(t, m.Start(t0))
	_, err := m.ToggleFlag("q2")
	require.NoError(t, err)

	sum, err := m.Expire(t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, ReasonTimeExpired, sum.Reason)
	assert.Equal(t, 0, sum.Percentage)
	assert.Equal(t, 1, sum.Flagged)

	// completed 为终态
	_, err = m.Record(SingleChoiceResponse{SelectedID: "a"}, t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = m.Finish(true, t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, m.Retry())
	assert.Equal(t, PhaseIdle, m.Phase())
	require.NoError(t, m.Start(t0.Add(time.Hour)))
	assert.Empty(t, m.Snapshot().Answers)
	assert.Empty(t, m.Snapshot().Flags)
}

func TestMachineToggleFlag(t *testing.T) {
	m := NewMachine(twoQuestionTest())
	_, err := m.ToggleFlag("q1")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, m.Start(t0))
	on, err := m.ToggleFlag("q1")
	require.NoError(t, err)
	assert.True(t, on)
	off, err := m.ToggleFlag("q1")
	require.NoError(t, err)
	assert.False(t, off)

	_, err = m.ToggleFlag("nope")
	assert.ErrorIs(t, err, ErrUnknownQuestion)
}

func TestMachineSnapshotRestore(t *testing.T) {
	m := NewMachine(twoQuestionTest())
	require.NoError(t, m.Start(t0))
	_, err := m.RecordFor("q2", MultipleChoiceResponse{SelectedIDs: []string{"y", "x"}}, t0.Add(3*time.Second))
	require.NoError(t, err)
	_, err = m.ToggleFlag("q1")
	require.NoError(t, err)

	snap := m.Snapshot()
	snap.Answers["ghost"] = RecordedAnswer{IsCorrect: true}

	restored := NewMachine(twoQuestionTest())
	require.NoError(t, restored.Restore(snap))
	assert.Equal(t, PhaseInProgress, restored.Phase())
	assert.Equal(t, 1, restored.CurrentIndex())

	sum, err := restored.Finish(true, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Correct)
	assert.Equal(t, 1, sum.Flagged)
}

func TestMachineStartGuards(t *testing.T) {
	assert.ErrorIs(t, NewMachine(nil).Start(t0), ErrNoQuestions)

	m := NewMachine(twoQuestionTest())
	require.NoError(t, m.Start(t0))
	assert.ErrorIs(t, m.Start(t0), ErrInvalidTransition)
	assert.ErrorIs(t, m.Retry(), ErrInvalidTransition)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0, Percentage(0, 0))
	assert.Equal(t, 33, Percentage(1, 3))
	assert.Equal(t, 67, Percentage(2, 3))
	assert.Equal(t, 100, Percentage(5, 5))
}
