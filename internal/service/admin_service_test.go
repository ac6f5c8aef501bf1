package service

import (
	"testing"

	"exam_practice_backend/internal/exam"
	"exam_practice_backend/internal/model"
	"exam_practice_backend/internal/repository"
	"exam_practice_backend/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCache struct {
	n int
}

func (c *countingCache) Invalidate() { c.n++ }

func newAdminService(t *testing.T) (*AdminService, *countingCache, *repository.UserRepository) {
	t.Helper()
	db := setupTestDB(t)
	catalog := repository.NewCatalogRepository(db)
	users := repository.NewUserRepository(db)
	cache := &countingCache{}
	return NewAdminService(catalog, catalog, users, cache), cache, users
}

func TestAdminCategoryCRUD(t *testing.T) {
	svc, cache, _ := newAdminService(t)

	c, err := svc.CreateCategory(CategoryRequest{Name: "Cloud Security & IAM"})
	require.NoError(t, err)
	assert.Equal(t, "cloud-security-iam", c.Slug)
	assert.Equal(t, 1, cache.n)

	_, err = svc.CreateCategory(CategoryRequest{Name: "!!!"})
	assert.ErrorIs(t, err, util.ErrValidation)

	updated, err := svc.UpdateCategory(c.ID, CategoryRequest{Name: "Cloud IAM"})
	require.NoError(t, err)
	assert.Equal(t, "Cloud IAM", updated.Name)
	assert.Equal(t, "cloud-security-iam", updated.Slug)

	require.NoError(t, svc.DeleteCategory(c.ID))
	assert.ErrorIs(t, svc.DeleteCategory(c.ID), util.ErrCategoryNotFound)
	_, err = svc.UpdateCategory(9999, CategoryRequest{Name: "x"})
	assert.ErrorIs(t, err, util.ErrCategoryNotFound)
	assert.Equal(t, 3, cache.n)
}

func TestAdminCreateQuestionValidates(t *testing.T) {
	svc, cache, _ := newAdminService(t)

	_, err := svc.CreateQuestion(QuestionRequest{
		Text: "Two correct?",
		Type: exam.SingleChoice,
		Answers: []AnswerInput{
			{Text: "A", IsCorrect: true},
			{Text: "B", IsCorrect: true},
		},
	})
	assert.ErrorIs(t, err, util.ErrValidation)

	_, err = svc.CreateQuestion(QuestionRequest{
		Text:       "Order these",
		Type:       exam.Sequence,
		Answers:    []AnswerInput{{Text: "stray"}},
		CategoryID: nil,
	})
	assert.ErrorIs(t, err, util.ErrValidation)

	missing := uint(42)
	_, err = svc.CreateQuestion(QuestionRequest{
		Text:       "Pick one",
		Type:       exam.SingleChoice,
		CategoryID: &missing,
		Answers:    []AnswerInput{{Text: "A", IsCorrect: true}, {Text: "B"}},
	})
	assert.ErrorIs(t, err, util.ErrCategoryNotFound)
	assert.Zero(t, cache.n)

	q, err := svc.CreateQuestion(QuestionRequest{
		Text: "Order the OSI layers",
		Type: exam.Sequence,
		SequenceItems: []SequenceItemInput{
			{Text: "Physical", CorrectPosition: 0},
			{Text: "Data link", CorrectPosition: 1},
			{Text: "Network", CorrectPosition: 2},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, q.ID)
	assert.Equal(t, 1, cache.n)

	got, err := svc.GetQuestion(q.ID)
	require.NoError(t, err)
	assert.Len(t, got.SequenceItems, 3)

	_, err = svc.GetQuestion("missing")
	assert.ErrorIs(t, err, util.ErrQuestionNotFound)
}

func TestAdminTestLifecycle(t *testing.T) {
	svc, cache, _ := newAdminService(t)

	cat, err := svc.CreateCategory(CategoryRequest{Name: "Networking"})
	require.NoError(t, err)
	q, err := svc.CreateQuestion(QuestionRequest{
		Text:    "Is TCP connection oriented?",
		Type:    exam.TrueFalse,
		Answers: []AnswerInput{{Text: "True", IsCorrect: true}, {Text: "False"}},
	})
	require.NoError(t, err)

	_, err = svc.CreateTest(TestRequest{Title: "Bad", TimeLimit: 60, QuestionIDs: []string{"nope"}})
	assert.ErrorIs(t, err, util.ErrValidation)
	_, err = svc.CreateTest(TestRequest{Title: "Negative", TimeLimit: 60, Price: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, util.ErrValidation)

	created, err := svc.CreateTest(TestRequest{
		Title:       "CCNA Practice",
		TimeLimit:   1800,
		Price:       decimal.NewFromInt(25000),
		CategoryIDs: []uint{cat.ID},
		QuestionIDs: []string{q.ID},
	})
	require.NoError(t, err)
	assert.True(t, created.IsActive)
	require.Len(t, created.Questions, 1)
	assert.Equal(t, q.ID, created.Questions[0].ID)

	require.NoError(t, svc.SetTestActive(created.ID, false))
	require.NoError(t, svc.SetTestActive(created.ID, false))
	rows, total, err := svc.ListTests(repository.TestFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.False(t, rows[0].Test.IsActive)

	updated, err := svc.UpdateTest(created.ID, TestRequest{Title: "CCNA Practice v2", TimeLimit: 1200, QuestionIDs: []string{}})
	require.NoError(t, err)
	assert.Equal(t, "CCNA Practice v2", updated.Title)
	assert.Empty(t, updated.Questions)
	assert.False(t, updated.IsActive)

	_, err = svc.SetTestQuestions("missing", []string{q.ID})
	assert.ErrorIs(t, err, util.ErrTestNotFound)

	before := cache.n
	require.NoError(t, svc.DeleteTest(created.ID))
	assert.Equal(t, before+1, cache.n)
	assert.ErrorIs(t, svc.DeleteTest(created.ID), util.ErrTestNotFound)
}

func TestPromoteToAdmin(t *testing.T) {
	svc, _, users := newAdminService(t)
	createUser(t, users, "carol@example.com", model.RoleUser)

	u, err := svc.PromoteToAdmin("Carol@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, u.Profile.Role)

	p, err := users.GetProfile(u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, p.Role)

	_, err = svc.PromoteToAdmin("carol@example.com")
	require.NoError(t, err)

	_, err = svc.PromoteToAdmin("ghost@example.com")
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}
