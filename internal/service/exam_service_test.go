package service

import (
	"sync"
	"testing"
	"time"

	"exam_practice_backend/internal/exam"
	"exam_practice_backend/internal/model"
	"exam_practice_backend/internal/repository"
	"exam_practice_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type examEnv struct {
	svc     *ExamService
	catalog *repository.CatalogRepository
	sample  *sampleTest
	clock   *fixedClock
}

func newExamEnv(t *testing.T) *examEnv {
	t.Helper()
	db := setupTestDB(t)
	catalog := repository.NewCatalogRepository(db)
	cfg := testConfig()
	clock := newClock()

	purchases := NewPurchaseService(repository.NewPurchaseRepository(db), catalog, repository.NewUserRepository(db), nil, cfg)
	purchases.now = clock.Now
	svc := NewExamService(repository.NewTestSessionRepository(db), catalog, purchases, cfg)
	svc.now = clock.Now

	return &examEnv{svc: svc, catalog: catalog, sample: createSampleTest(t, catalog, "0"), clock: clock}
}

func TestExamSessionScoresTwoQuestionExample(t *testing.T) {
	env := newExamEnv(t)
	st := env.sample

	view, err := env.svc.StartSession(1, false, st.Test.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionInProgress, view.Status)
	assert.Equal(t, 600, view.RemainingSeconds)
	assert.Len(t, view.Questions, 2)
	assert.Equal(t, []int{0, 1}, view.Unanswered)

	env.clock.Advance(10 * time.Second)
	ans, err := env.svc.RecordAnswer(1, view.ID, st.Single.ID, exam.SingleChoiceResponse{SelectedID: st.CorrectB})
	require.NoError(t, err)
	assert.Equal(t, 10, ans.TimeSpentSeconds)

	_, err = env.svc.Navigate(1, view.ID, 1)
	require.NoError(t, err)
	env.clock.Advance(20 * time.Second)
	_, err = env.svc.RecordAnswer(1, view.ID, st.Multiple.ID, exam.MultipleChoiceResponse{SelectedIDs: []string{st.MultiA}})
	require.NoError(t, err)

	review, err := env.svc.FinishSession(1, view.ID, false)
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, review.Status)
	assert.Equal(t, exam.ReasonFinished, review.Reason)
	assert.Equal(t, 1, review.Score)
	assert.Equal(t, 2, review.Total)
	assert.Equal(t, 50, review.Percentage)
	assert.False(t, review.Passed)
	assert.Equal(t, 30, review.DurationSeconds)
	require.Len(t, review.Items, 2)
	assert.True(t, review.Items[0].IsCorrect)
	assert.False(t, review.Items[1].IsCorrect)
	assert.Equal(t, 20, review.Items[1].TimeSpentSeconds)

	// 回顾从数据库重新恢复，结果一致
	again, err := env.svc.ReviewSession(1, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, again.Percentage)
	assert.Equal(t, exam.SingleChoiceResponse{SelectedID: st.CorrectB}, again.Items[0].Response)
}

func TestStartSessionResumesInProgress(t *testing.T) {
	env := newExamEnv(t)

	first, err := env.svc.StartSession(1, false, env.sample.Test.ID)
	require.NoError(t, err)
	env.clock.Advance(time.Minute)
	second, err := env.svc.StartSession(1, false, env.sample.Test.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 540, second.RemainingSeconds)
}

func TestFinishRequiresConfirmationWhenUnanswered(t *testing.T) {
	env := newExamEnv(t)
	st := env.sample

	view, err := env.svc.StartSession(1, false, st.Test.ID)
	require.NoError(t, err)
	_, err = env.svc.RecordAnswer(1, view.ID, st.Single.ID, exam.SingleChoiceResponse{SelectedID: st.CorrectB})
	require.NoError(t, err)

	_, err = env.svc.FinishSession(1, view.ID, false)
	var ue *exam.UnansweredError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, []int{1}, ue.Indexes)

	review, err := env.svc.FinishSession(1, view.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 50, review.Percentage)
	assert.False(t, review.Items[1].Answered)

	_, err = env.svc.FinishSession(1, view.ID, true)
	assert.ErrorIs(t, err, util.ErrSessionCompleted)
}

func TestWritePastDeadlineExpiresSession(t *testing.T) {
	env := newExamEnv(t)
	st := env.sample

	view, err := env.svc.StartSession(1, false, st.Test.ID)
	require.NoError(t, err)
	_, err = env.svc.RecordAnswer(1, view.ID, st.Single.ID, exam.SingleChoiceResponse{SelectedID: st.CorrectB})
	require.NoError(t, err)

	env.clock.Advance(601 * time.Second)
	_, err = env.svc.RecordAnswer(1, view.ID, st.Multiple.ID, exam.MultipleChoiceResponse{SelectedIDs: []string{st.MultiA, st.MultiC}})
	assert.ErrorIs(t, err, util.ErrSessionExpired)

	_, err = env.svc.RecordAnswer(1, view.ID, st.Multiple.ID, exam.MultipleChoiceResponse{SelectedIDs: []string{st.MultiA, st.MultiC}})
	assert.ErrorIs(t, err, util.ErrSessionCompleted)

	review, err := env.svc.ReviewSession(1, view.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionExpired, review.Status)
	assert.Equal(t, exam.ReasonTimeExpired, review.Reason)
	assert.Equal(t, 1, review.Score)
	assert.Equal(t, 600, review.DurationSeconds)
}

func TestGetSessionRestoresAnswersAndFlags(t *testing.T) {
	env := newExamEnv(t)
	st := env.sample

	view, err := env.svc.StartSession(1, false, st.Test.ID)
	require.NoError(t, err)
	_, err = env.svc.RecordAnswer(1, view.ID, st.Single.ID, exam.SingleChoiceResponse{SelectedID: st.WrongA})
	require.NoError(t, err)
	flagged, err := env.svc.ToggleFlag(1, view.ID, st.Multiple.ID)
	require.NoError(t, err)
	assert.True(t, flagged)

	env.clock.Advance(90 * time.Second)
	got, err := env.svc.GetSession(1, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 510, got.RemainingSeconds)
	assert.Equal(t, []int{1}, got.Unanswered)
	require.Len(t, got.Answers, 2)
	assert.Equal(t, exam.SingleChoiceResponse{SelectedID: st.WrongA}, got.Answers[0].Response)
	assert.Nil(t, got.Answers[1].Response)
	assert.True(t, got.Answers[1].Flagged)

	// 覆盖作答后标记仍保留
	_, err = env.svc.RecordAnswer(1, view.ID, st.Multiple.ID, exam.MultipleChoiceResponse{SelectedIDs: []string{st.MultiA}})
	require.NoError(t, err)
	got, err = env.svc.GetSession(1, view.ID)
	require.NoError(t, err)
	assert.True(t, got.Answers[1].Flagged)
	assert.Equal(t, 1, got.CurrentIndex)

	_, err = env.svc.GetSession(2, view.ID)
	assert.ErrorIs(t, err, util.ErrSessionNotFound)
}

func TestRecordAnswerRejectsMismatchedResponse(t *testing.T) {
	env := newExamEnv(t)
	view, err := env.svc.StartSession(1, false, env.sample.Test.ID)
	require.NoError(t, err)

	_, err = env.svc.RecordAnswer(1, view.ID, env.sample.Single.ID, exam.SequenceResponse{Order: []string{"x"}})
	assert.ErrorIs(t, err, exam.ErrResponseMismatch)

	_, err = env.svc.RecordAnswer(1, view.ID, "missing", exam.SingleChoiceResponse{SelectedID: "x"})
	assert.ErrorIs(t, err, exam.ErrUnknownQuestion)

	_, err = env.svc.Navigate(1, view.ID, 5)
	assert.ErrorIs(t, err, exam.ErrQuestionOutOfRange)
}

func TestRetryStartsFreshSession(t *testing.T) {
	env := newExamEnv(t)
	st := env.sample

	view, err := env.svc.StartSession(1, false, st.Test.ID)
	require.NoError(t, err)
	_, err = env.svc.RetrySession(1, false, view.ID)
	assert.ErrorIs(t, err, util.ErrSessionActive)

	_, err = env.svc.RecordAnswer(1, view.ID, st.Single.ID, exam.SingleChoiceResponse{SelectedID: st.CorrectB})
	require.NoError(t, err)
	_, err = env.svc.FinishSession(1, view.ID, true)
	require.NoError(t, err)

	retry, err := env.svc.RetrySession(1, false, view.ID)
	require.NoError(t, err)
	assert.NotEqual(t, view.ID, retry.ID)
	assert.Equal(t, model.SessionInProgress, retry.Status)
	assert.Empty(t, retry.Answers)

	// 旧会话保留在历史中
	old, err := env.svc.ReviewSession(1, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, old.Percentage)
}

func TestExpireOverdueSweepsSessions(t *testing.T) {
	env := newExamEnv(t)

	_, err := env.svc.StartSession(1, false, env.sample.Test.ID)
	require.NoError(t, err)
	_, err = env.svc.StartSession(2, false, env.sample.Test.ID)
	require.NoError(t, err)

	n, err := env.svc.ExpireOverdue()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	env.clock.Advance(10 * time.Minute)
	n, err = env.svc.ExpireOverdue()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPaidTestRequiresPurchase(t *testing.T) {
	env := newExamEnv(t)
	paid := createSampleTest(t, env.catalog, "49000")

	_, err := env.svc.StartSession(1, false, paid.Test.ID)
	assert.ErrorIs(t, err, util.ErrPurchaseRequired)

	view, err := env.svc.StartSession(99, true, paid.Test.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionInProgress, view.Status)

	_, err = env.svc.StartSession(1, false, "missing")
	assert.ErrorIs(t, err, util.ErrTestNotFound)
}

func TestExamSessionKeepsTimeOnSkippedQuestion(t *testing.T) {
	env := newExamEnv(t)
	st := env.sample

	view, err := env.svc.StartSession(1, false, st.Test.ID)
	require.NoError(t, err)

	// 第一题看了 9 秒没答，直接去答第二题
	env.clock.Advance(9 * time.Second)
	ans, err := env.svc.RecordAnswer(1, view.ID, st.Multiple.ID, exam.MultipleChoiceResponse{SelectedIDs: []string{st.MultiA, st.MultiC}})
	require.NoError(t, err)
	assert.Equal(t, 0, ans.TimeSpentSeconds)

	env.clock.Advance(6 * time.Second)
	_, err = env.svc.Navigate(1, view.ID, 0)
	require.NoError(t, err)

	env.clock.Advance(3 * time.Second)
	ans, err = env.svc.RecordAnswer(1, view.ID, st.Single.ID, exam.SingleChoiceResponse{SelectedID: st.CorrectB})
	require.NoError(t, err)
	assert.Equal(t, 12, ans.TimeSpentSeconds)

	review, err := env.svc.FinishSession(1, view.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 100, review.Percentage)
	assert.Equal(t, 12, review.Items[0].TimeSpentSeconds)
	assert.Equal(t, 6, review.Items[1].TimeSpentSeconds)
}

func TestExamSessionSerializesConcurrentWrites(t *testing.T) {
	env := newExamEnv(t)
	st := env.sample

	view, err := env.svc.StartSession(1, false, st.Test.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.ToggleFlag(1, view.ID, st.Single.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// 偶数次切换后回到未标记
	got, err := env.svc.GetSession(1, view.ID)
	require.NoError(t, err)
	for _, a := range got.Answers {
		assert.False(t, a.Flagged)
	}

	for _, key := range []string{view.ID, "start:" + st.Test.ID + ":1", ""} {
		assert.Less(t, lockStripe(key), uint32(lockStripes))
		assert.Equal(t, lockStripe(key), lockStripe(key))
	}
}
