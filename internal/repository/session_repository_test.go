package repository

import (
	"testing"
	"time"

	"exam_practice_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestSessionSaveAnswerOverwrites(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTestSessionRepository(db)
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	s := &model.TestSession{TestID: "t1", UserID: 7, StartedAt: now, Deadline: now.Add(10 * time.Minute), Status: model.SessionInProgress}
	require.NoError(t, repo.Create(s))

	first := &model.UserAnswer{SessionID: s.ID, QuestionID: "q1", Response: datatypes.JSON(`{"type":"single_choice","payload":{"selectedId":"b"}}`)}
	require.NoError(t, repo.SaveAnswer(first))
	second := &model.UserAnswer{SessionID: s.ID, QuestionID: "q1", Response: datatypes.JSON(`{"type":"single_choice","payload":{"selectedId":"a"}}`), IsCorrect: true, TimeSpentSeconds: 12}
	require.NoError(t, repo.SaveAnswer(second))

	answers, err := repo.ListAnswers(s.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.True(t, answers[0].IsCorrect)
	assert.Equal(t, 12, answers[0].TimeSpentSeconds)
	assert.JSONEq(t, `{"type":"single_choice","payload":{"selectedId":"a"}}`, string(answers[0].Response))

	found, err := repo.FindInProgress(7, "t1")
	require.NoError(t, err)
	assert.Equal(t, s.ID, found.ID)
}

func TestSessionFindOverdueAndComplete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTestSessionRepository(db)
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	overdue := &model.TestSession{TestID: "t1", UserID: 1, StartedAt: now.Add(-time.Hour), Deadline: now.Add(-time.Minute), Status: model.SessionInProgress}
	running := &model.TestSession{TestID: "t1", UserID: 2, StartedAt: now, Deadline: now.Add(time.Hour), Status: model.SessionInProgress}
	require.NoError(t, repo.Create(overdue))
	require.NoError(t, repo.Create(running))

	got, err := repo.FindOverdue(now, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, overdue.ID, got[0].ID)

	ended := now
	overdue.Status = model.SessionExpired
	overdue.EndedAt = &ended
	overdue.Score, overdue.Total, overdue.Percentage = 1, 2, 50
	require.NoError(t, repo.Complete(overdue, []model.UserAnswer{{SessionID: overdue.ID, QuestionID: "q1", Flagged: true}}))

	got, err = repo.FindOverdue(now, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	reloaded, err := repo.FindByID(overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, reloaded.Percentage)
	assert.True(t, reloaded.Finished())

	answers, err := repo.ListAnswers(overdue.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.False(t, answers[0].Answered())
	assert.True(t, answers[0].Flagged)
}
