package repository

import (
	"testing"

	"exam_practice_backend/internal/exam"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMemoryCatalogLoadsFixtures(t *testing.T) {
	m, err := NewMemoryCatalog()
	require.NoError(t, err)

	rows, total, err := m.ListTests(TestFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.NotEmpty(t, rows)

	qs, err := m.GetTestQuestions("fx-t-cloud-practitioner")
	require.NoError(t, err)
	seen := map[exam.QuestionType]bool{}
	for _, q := range qs {
		seen[q.Type] = true
		require.NoError(t, q.Validate())
	}
	assert.Len(t, seen, len(exam.AllQuestionTypes), "内置题库覆盖全部题型")

	_, err = m.GetTest("missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestMemoryCatalogFilters(t *testing.T) {
	m, err := NewMemoryCatalog()
	require.NoError(t, err)

	rows, _, err := m.ListTests(TestFilter{CategoryID: 3, Search: "sprint"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "fx-t-security-sprint", rows[0].ID)
	assert.Equal(t, 2, rows[0].QuestionCount)
	assert.False(t, rows[0].IsFree())

	qs, total, err := m.ListQuestions(QuestionFilter{Type: exam.Sequence})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "fx-q-net-002", qs[0].ID)

	rows, total, err = m.ListTests(TestFilter{Page: 5, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Empty(t, rows)
}

func TestMemoryCatalogRejectsBadFixtures(t *testing.T) {
	_, err := LoadMemoryCatalog([]byte(`
questions:
  - id: q1
    type: true_false
    text: only one option
    answers:
      - {id: a, text: "True", correct: true}
`))
	assert.Error(t, err)

	_, err = LoadMemoryCatalog([]byte(`
tests:
  - id: t1
    title: x
    time_limit: 60
    questions: [ghost]
`))
	assert.Error(t, err)
}

func TestMemoryCatalogSeed(t *testing.T) {
	db := setupTestDB(t)
	m, err := NewMemoryCatalog()
	require.NoError(t, err)
	require.NoError(t, m.Seed(db))
	// 再次执行不会重复写入
	require.NoError(t, m.Seed(db))

	repo := NewCatalogRepository(db)
	rows, total, err := repo.ListTests(TestFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	byID := map[string]TestListRow{}
	for _, r := range rows {
		byID[r.ID] = r
	}
	assert.Equal(t, 6, byID["fx-t-cloud-practitioner"].QuestionCount)
	assert.Len(t, byID["fx-t-cloud-practitioner"].Categories, 3)

	qs, err := repo.GetTestQuestions("fx-t-security-sprint")
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, exam.DragDrop, qs[0].Type)
	assert.Len(t, qs[0].DragDropItems, 3)
}

func TestMemoryCatalogMatchingRightIDs(t *testing.T) {
	m, err := NewMemoryCatalog()
	require.NoError(t, err)

	q, err := m.GetQuestion("fx-q-net-001")
	require.NoError(t, err)
	require.NotEmpty(t, q.MatchItems)
	left := map[string]bool{}
	for _, it := range q.MatchItems {
		left[it.ID] = true
	}
	for _, it := range q.MatchItems {
		assert.NotEmpty(t, it.RightID)
		assert.False(t, left[it.RightID])
	}

	_, err = LoadMemoryCatalog([]byte(`
questions:
  - id: q1
    type: matching
    text: Pair them
    match_items:
      - {id: m1, left: A, right: B}
`))
	assert.ErrorContains(t, err, "right_id")
}
