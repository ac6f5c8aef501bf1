package service

import (
	"encoding/json"
	"testing"

	"exam_practice_backend/internal/exam"
	"exam_practice_backend/internal/model"
	"exam_practice_backend/internal/repository"

	"github.com/jinzhu/copier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createMatchingQuestion(t *testing.T, catalog *repository.CatalogRepository) *model.Question {
	t.Helper()
	q := &model.Question{Text: "Match protocol and layer", Type: exam.Matching, MatchItems: []model.MatchItem{
		{LeftText: "HTTP", RightText: "Application", Position: 0},
		{LeftText: "TCP", RightText: "Transport", Position: 1},
		{LeftText: "IP", RightText: "Network", Position: 2},
		{LeftText: "Ethernet", RightText: "Data link", Position: 3},
	}}
	require.NoError(t, catalog.CreateQuestion(q))
	stored, err := catalog.GetQuestion(q.ID)
	require.NoError(t, err)
	return stored
}

func TestMatchingViewHidesPairs(t *testing.T) {
	catalog := repository.NewCatalogRepository(setupTestDB(t))
	q := createMatchingQuestion(t, catalog)

	for _, shuffle := range []bool{true, false} {
		v := newQuestionView(q, shuffle)
		require.Len(t, v.Left, 4)
		require.Len(t, v.Right, 4)

		left := make(map[string]bool, len(v.Left))
		for _, l := range v.Left {
			left[l.ID] = true
		}
		for _, r := range v.Right {
			assert.NotEmpty(t, r.ID)
			assert.False(t, left[r.ID], "right option %s reuses a left id", r.ID)
		}

		// 只凭视图里的ID按同名配对，不能得分
		guessed := make(map[string]string, len(v.Left))
		for _, l := range v.Left {
			guessed[l.ID] = l.ID
		}
		ok, err := exam.Grade(q.ExamQuestion(), exam.MatchingResponse{Pairs: guessed})
		require.NoError(t, err)
		assert.False(t, ok)
	}

	// 按文本正确配对仍然得分
	v := newQuestionView(q, false)
	rightByText := make(map[string]string, len(v.Right))
	for _, r := range v.Right {
		rightByText[r.Text] = r.ID
	}
	pairs := make(map[string]string, len(q.MatchItems))
	for _, it := range q.MatchItems {
		pairs[it.ID] = rightByText[it.RightText]
	}
	ok, err := exam.Grade(q.ExamQuestion(), exam.MatchingResponse{Pairs: pairs})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQuestionViewCarriesNoKeys(t *testing.T) {
	catalog := repository.NewCatalogRepository(setupTestDB(t))
	st := createSampleTest(t, catalog, "0")

	seq := &model.Question{Text: "Order the handshake", Type: exam.Sequence, SequenceItems: []model.SequenceItem{
		{Text: "SYN", CorrectPosition: 1},
		{Text: "SYN-ACK", CorrectPosition: 2},
		{Text: "ACK", CorrectPosition: 3},
	}}
	require.NoError(t, catalog.CreateQuestion(seq))
	dd := &model.Question{Text: "Sort the ports", Type: exam.DragDrop, DragDropItems: []model.DragDropItem{
		{Content: "22", TargetZone: "ssh"},
		{Content: "443", TargetZone: "https"},
	}}
	require.NoError(t, catalog.CreateQuestion(dd))

	single := newQuestionView(st.Single, false)
	require.Len(t, single.Options, 2)
	assert.Empty(t, single.Left)
	assert.Empty(t, single.Items)

	seqView := newQuestionView(seq, false)
	require.Len(t, seqView.Items, 3)
	assert.Empty(t, seqView.Options)

	ddView := newQuestionView(dd, false)
	assert.Equal(t, []string{"https", "ssh"}, ddView.Zones)
	require.Len(t, ddView.Items, 2)

	// QuestionView 本身没有承载答案的字段，检查序列化后的内容
	for _, v := range []QuestionView{single, seqView, ddView, newQuestionView(createMatchingQuestion(t, catalog), true)} {
		raw := mustJSON(t, v)
		for _, field := range []string{"isCorrect", "correctPosition", "targetZone", "rightId", "explanation"} {
			assert.NotContains(t, raw, field)
		}
	}
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

func TestTestSummaryReportsCopyFailure(t *testing.T) {
	_, err := newTestSummary(nil, 0, false)
	assert.ErrorIs(t, err, copier.ErrInvalidCopyFrom)

	test := &model.Test{Title: "Copied", TimeLimit: 60, IsActive: true}
	s, err := newTestSummary(test, 3, true)
	require.NoError(t, err)
	assert.Equal(t, "Copied", s.Title)
	assert.Equal(t, 3, s.QuestionCount)
	assert.NotNil(t, s.Categories)
}
