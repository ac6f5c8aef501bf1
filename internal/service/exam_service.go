package service

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"exam_practice_backend/internal/config"
	"exam_practice_backend/internal/exam"
	"exam_practice_backend/internal/model"
	"exam_practice_backend/internal/repository"
	"exam_practice_backend/internal/util"
	"exam_practice_backend/pkg/logger"
	"exam_practice_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	overdueBatchSize = 100
	lockStripes      = 64
)

// ExamService 持久化的答题会话，每次请求从数据库恢复状态机
type ExamService struct {
	SessionRepo repository.SessionStore
	Catalog     repository.CatalogReader
	Purchases   *PurchaseService
	Cfg         *config.Config

	locks [lockStripes]sync.Mutex
	now   func() time.Time
}

func NewExamService(sessionRepo repository.SessionStore, catalog repository.CatalogReader,
	purchases *PurchaseService, cfg *config.Config) *ExamService {
	return &ExamService{
		SessionRepo: sessionRepo,
		Catalog:     catalog,
		Purchases:   purchases,
		Cfg:         cfg,
		now:         time.Now,
	}
}

// 同一会话的写操作串行执行。按键哈希分段加锁，锁的数量固定；调用方不能同时持有两把锁
func (s *ExamService) lock(key string) func() {
	mu := &s.locks[lockStripe(key)]
	mu.Lock()
	return mu.Unlock
}

func lockStripe(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32() % lockStripes
}

// loaded 一次请求内恢复出的会话上下文
type loaded struct {
	session   *model.TestSession
	questions []model.Question
	answers   map[string]model.UserAnswer
	machine   *exam.Machine
}

func (s *ExamService) findSession(userID uint, sessionID string) (*model.TestSession, error) {
	sess, err := s.SessionRepo.FindByID(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrSessionNotFound
		}
		return nil, err
	}
	// 不暴露他人的会话
	if sess.UserID != userID {
		return nil, util.ErrSessionNotFound
	}
	return sess, nil
}

func (s *ExamService) restore(sess *model.TestSession) (*loaded, error) {
	questions, err := s.Catalog.GetTestQuestions(sess.TestID)
	if err != nil {
		return nil, err
	}
	rows, err := s.SessionRepo.ListAnswers(sess.ID)
	if err != nil {
		return nil, err
	}

	examQuestions := make([]exam.Question, 0, len(questions))
	for i := range questions {
		examQuestions = append(examQuestions, questions[i].ExamQuestion())
	}

	snap := exam.Snapshot{
		Phase:        sess.Phase(),
		CurrentIndex: sess.CurrentIndex,
		StartedAt:    sess.StartedAt,
		EnteredAt:    sess.EnteredAt,
		EndedAt:      sess.EndedAt,
		Reason:       sess.Reason,
		Answers:      make(map[string]exam.RecordedAnswer),
		Flags:        make(map[string]bool),
		TimeSpent:    make(map[string]int),
	}
	if snap.CurrentIndex >= len(questions) {
		snap.CurrentIndex = 0
	}

	answers := make(map[string]model.UserAnswer, len(rows))
	for _, row := range rows {
		answers[row.QuestionID] = row
		snap.TimeSpent[row.QuestionID] = row.TimeSpentSeconds
		if row.Flagged {
			snap.Flags[row.QuestionID] = true
		}
		if !row.Answered() {
			continue
		}
		resp, err := exam.UnmarshalResponse(row.Response)
		if err != nil {
			logger.Log.Warn("Skipping unreadable answer",
				zap.String("session_id", sess.ID),
				zap.String("question_id", row.QuestionID),
				zap.Error(err),
			)
			continue
		}
		snap.Answers[row.QuestionID] = exam.RecordedAnswer{
			Response:         resp,
			IsCorrect:        row.IsCorrect,
			TimeSpentSeconds: row.TimeSpentSeconds,
		}
	}

	m := exam.NewMachine(examQuestions)
	if err := m.Restore(snap); err != nil {
		return nil, fmt.Errorf("restore session %s: %w", sess.ID, err)
	}
	return &loaded{session: sess, questions: questions, answers: answers, machine: m}, nil
}

// overdue 服务端截止时间为准
func (s *ExamService) overdue(sess *model.TestSession, now time.Time) bool {
	return sess.Status == model.SessionInProgress && !now.Before(sess.Deadline)
}

// writable 已结束返回 ErrSessionCompleted；超时先判为过期再返回 ErrSessionExpired
func (s *ExamService) writable(userID uint, sessionID string) (*loaded, error) {
	sess, err := s.findSession(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Finished() {
		return nil, util.ErrSessionCompleted
	}
	l, err := s.restore(sess)
	if err != nil {
		return nil, err
	}
	if s.overdue(sess, s.now()) {
		if _, err := s.expire(l); err != nil {
			return nil, err
		}
		return nil, util.ErrSessionExpired
	}
	return l, nil
}

// StartSession 有进行中的会话时直接返回，否则新建
func (s *ExamService) StartSession(userID uint, isAdmin bool, testID string) (*SessionView, error) {
	test, err := s.Catalog.GetTest(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTestNotFound
		}
		return nil, err
	}
	if !test.IsActive && !isAdmin {
		return nil, util.ErrTestInactive
	}
	ok, err := s.Purchases.HasAccess(userID, isAdmin, test)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrPurchaseRequired
	}

	unlock := s.lock("start:" + testID + ":" + fmt.Sprint(userID))
	defer unlock()

	now := s.now()
	existing, err := s.SessionRepo.FindInProgress(userID, testID)
	switch {
	case err == nil:
		l, err := s.restore(existing)
		if err != nil {
			return nil, err
		}
		if !s.overdue(existing, now) {
			return s.view(l, test.Title, now), nil
		}
		if _, err := s.expire(l); err != nil {
			return nil, err
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	questions, err := s.Catalog.GetTestQuestions(testID)
	if err != nil {
		return nil, err
	}
	examQuestions := make([]exam.Question, 0, len(questions))
	for i := range questions {
		examQuestions = append(examQuestions, questions[i].ExamQuestion())
	}
	m := exam.NewMachine(examQuestions)
	if err := m.Start(now); err != nil {
		return nil, err
	}

	sess := &model.TestSession{
		TestID:    testID,
		UserID:    userID,
		StartedAt: now,
		Deadline:  now.Add(time.Duration(test.TimeLimit) * time.Second),
		EnteredAt: now,
		Status:    model.SessionInProgress,
		Total:     len(questions),
	}
	if err := s.SessionRepo.Create(sess); err != nil {
		return nil, err
	}
	monitoring.SessionsStarted.Inc()
	logger.Log.Info("Exam session started",
		zap.String("session_id", sess.ID),
		zap.String("test_id", testID),
		zap.Uint("user_id", userID),
	)

	l := &loaded{session: sess, questions: questions, answers: map[string]model.UserAnswer{}, machine: m}
	return s.view(l, test.Title, now), nil
}

// GetSession 读取会话；超时的会话会先被判为过期
func (s *ExamService) GetSession(userID uint, sessionID string) (*SessionView, error) {
	defer s.lock(sessionID)()

	sess, err := s.findSession(userID, sessionID)
	if err != nil {
		return nil, err
	}
	l, err := s.restore(sess)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if s.overdue(sess, now) {
		if _, err := s.expire(l); err != nil {
			return nil, err
		}
	}
	return s.view(l, s.testTitle(sess.TestID), now), nil
}

func (s *ExamService) Navigate(userID uint, sessionID string, index int) (*SessionView, error) {
	defer s.lock(sessionID)()

	l, err := s.writable(userID, sessionID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	leaving := l.machine.CurrentIndex()
	if err := l.machine.GoTo(index, now); err != nil {
		return nil, err
	}
	if err := s.saveProgress(l, l.questions[leaving].ID); err != nil {
		return nil, err
	}
	l.session.CurrentIndex = index
	l.session.EnteredAt = now
	if err := s.SessionRepo.Update(l.session); err != nil {
		return nil, err
	}
	return s.view(l, s.testTitle(l.session.TestID), now), nil
}

// RecordAnswer 保存（或覆盖）作答，答题过程中不返回对错
func (s *ExamService) RecordAnswer(userID uint, sessionID, questionID string, resp exam.Response) (*AnswerView, error) {
	defer s.lock(sessionID)()

	l, err := s.writable(userID, sessionID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	leaving := l.machine.CurrentIndex()
	ans, err := l.machine.RecordFor(questionID, resp, now)
	if err != nil {
		return nil, err
	}
	// 隐式跳题时，离开的题目也要记下停留时间
	if prev := l.questions[leaving].ID; prev != questionID {
		if err := s.saveProgress(l, prev); err != nil {
			return nil, err
		}
	}
	row, err := s.answerRow(l, questionID)
	if err != nil {
		return nil, err
	}
	if err := s.SessionRepo.SaveAnswer(row); err != nil {
		return nil, err
	}
	l.answers[questionID] = *row

	l.session.CurrentIndex = l.machine.CurrentIndex()
	l.session.EnteredAt = now
	if err := s.SessionRepo.Update(l.session); err != nil {
		return nil, err
	}
	return &AnswerView{
		QuestionID:       questionID,
		Response:         ans.Response,
		TimeSpentSeconds: ans.TimeSpentSeconds,
		Flagged:          row.Flagged,
	}, nil
}

// ToggleFlag 标记/取消标记题目，返回新的标记状态
func (s *ExamService) ToggleFlag(userID uint, sessionID, questionID string) (bool, error) {
	defer s.lock(sessionID)()

	l, err := s.writable(userID, sessionID)
	if err != nil {
		return false, err
	}
	flagged, err := l.machine.ToggleFlag(questionID)
	if err != nil {
		return false, err
	}
	row, err := s.answerRow(l, questionID)
	if err != nil {
		return false, err
	}
	if err := s.SessionRepo.SaveAnswer(row); err != nil {
		return false, err
	}
	l.answers[questionID] = *row
	return flagged, nil
}

// FinishSession 交卷；有未答题目且未确认时返回 *exam.UnansweredError
func (s *ExamService) FinishSession(userID uint, sessionID string, confirm bool) (*SessionReview, error) {
	defer s.lock(sessionID)()

	l, err := s.writable(userID, sessionID)
	if err != nil {
		return nil, err
	}
	summary, err := l.machine.Finish(confirm, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.complete(l, summary, model.SessionCompleted); err != nil {
		return nil, err
	}
	return s.review(l), nil
}

// ReviewSession 已结束会话的逐题回顾
func (s *ExamService) ReviewSession(userID uint, sessionID string) (*SessionReview, error) {
	defer s.lock(sessionID)()

	sess, err := s.findSession(userID, sessionID)
	if err != nil {
		return nil, err
	}
	l, err := s.restore(sess)
	if err != nil {
		return nil, err
	}
	if s.overdue(sess, s.now()) {
		if _, err := s.expire(l); err != nil {
			return nil, err
		}
	}
	if !sess.Finished() {
		return nil, util.ErrSessionActive
	}
	return s.review(l), nil
}

// RetrySession 基于已结束的会话重新开始同一试卷，旧会话保留在历史中
func (s *ExamService) RetrySession(userID uint, isAdmin bool, sessionID string) (*SessionView, error) {
	unlock := s.lock(sessionID)
	sess, err := s.findSession(userID, sessionID)
	if err != nil {
		unlock()
		return nil, err
	}
	l, err := s.restore(sess)
	if err != nil {
		unlock()
		return nil, err
	}
	if s.overdue(sess, s.now()) {
		if _, err := s.expire(l); err != nil {
			unlock()
			return nil, err
		}
	}
	err = l.machine.Retry()
	unlock()
	if err != nil {
		return nil, util.ErrSessionActive
	}
	return s.StartSession(userID, isAdmin, sess.TestID)
}

// ExpireSession 计时归零时由计时推送调用，未到截止时间时不做处理
func (s *ExamService) ExpireSession(sessionID string) (bool, error) {
	defer s.lock(sessionID)()

	sess, err := s.SessionRepo.FindByID(sessionID)
	if err != nil {
		return false, err
	}
	// 容忍一秒的时钟误差
	if !s.overdue(sess, s.now().Add(time.Second)) {
		return false, nil
	}
	l, err := s.restore(sess)
	if err != nil {
		return false, err
	}
	return s.expire(l)
}

// ExpireOverdue 后台扫描超时未交卷的会话
func (s *ExamService) ExpireOverdue() (int, error) {
	sessions, err := s.SessionRepo.FindOverdue(s.now(), overdueBatchSize)
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range sessions {
		ok, err := s.ExpireSession(sessions[i].ID)
		if err != nil {
			logger.Log.Error("Failed to expire session", zap.String("session_id", sessions[i].ID), zap.Error(err))
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, nil
}

// RemainingSeconds 计时推送使用
func (s *ExamService) RemainingSeconds(userID uint, sessionID string) (int, error) {
	sess, err := s.findSession(userID, sessionID)
	if err != nil {
		return 0, err
	}
	if sess.Finished() {
		return 0, util.ErrSessionCompleted
	}
	return exam.RemainingSeconds(sess.Deadline, s.now()), nil
}

// expire 以截止时间作为结束时间
func (s *ExamService) expire(l *loaded) (bool, error) {
	if l.session.Finished() {
		return false, nil
	}
	summary, err := l.machine.Expire(l.session.Deadline)
	if err != nil {
		return false, err
	}
	if err := s.complete(l, summary, model.SessionExpired); err != nil {
		return false, err
	}
	return true, nil
}

func (s *ExamService) complete(l *loaded, summary exam.Summary, status model.SessionStatus) error {
	snap := l.machine.Snapshot()
	sess := l.session
	sess.Status = status
	sess.Reason = summary.Reason
	sess.EndedAt = snap.EndedAt
	sess.Score = summary.Correct
	sess.Total = summary.Total
	sess.Percentage = summary.Percentage

	// 以交卷时的判分结果为准回写全部作答
	rows := make([]model.UserAnswer, 0, len(l.questions))
	for i := range l.questions {
		qid := l.questions[i].ID
		_, answered := snap.Answers[qid]
		if !answered && !snap.Flags[qid] && snap.TimeSpent[qid] == 0 {
			continue
		}
		row, err := s.answerRow(l, qid)
		if err != nil {
			return err
		}
		rows = append(rows, *row)
	}
	if err := s.SessionRepo.Complete(sess, rows); err != nil {
		return err
	}
	for _, row := range rows {
		l.answers[row.QuestionID] = row
	}

	monitoring.ObserveCompletion(string(summary.Reason), summary.Percentage)
	logger.Log.Info("Exam session completed",
		zap.String("session_id", sess.ID),
		zap.String("reason", string(summary.Reason)),
		zap.Int("score", summary.Correct),
		zap.Int("total", summary.Total),
		zap.Int("percentage", summary.Percentage),
	)
	return nil
}

// answerRow 按状态机中的作答、标记与停留时间生成一行记录
func (s *ExamService) answerRow(l *loaded, questionID string) (*model.UserAnswer, error) {
	row := &model.UserAnswer{
		SessionID:        l.session.ID,
		QuestionID:       questionID,
		Flagged:          l.machine.Flagged(questionID),
		TimeSpentSeconds: l.machine.TimeSpent(questionID),
	}
	if ans, ok := l.machine.Answer(questionID); ok {
		data, err := exam.MarshalResponse(ans.Response)
		if err != nil {
			return nil, err
		}
		row.Response = datatypes.JSON(data)
		row.IsCorrect = ans.IsCorrect
	}
	return row, nil
}

// saveProgress 保存离开题目时累计的停留时间，没有任何内容的题目不落库
func (s *ExamService) saveProgress(l *loaded, questionID string) error {
	_, known := l.answers[questionID]
	if !known && l.machine.TimeSpent(questionID) == 0 {
		return nil
	}
	row, err := s.answerRow(l, questionID)
	if err != nil {
		return err
	}
	if err := s.SessionRepo.SaveAnswer(row); err != nil {
		return err
	}
	l.answers[questionID] = *row
	return nil
}

func (s *ExamService) testTitle(testID string) string {
	test, err := s.Catalog.GetTest(testID)
	if err != nil {
		return ""
	}
	return test.Title
}

func (s *ExamService) view(l *loaded, title string, now time.Time) *SessionView {
	sess := l.session
	v := &SessionView{
		ID:           sess.ID,
		TestID:       sess.TestID,
		TestTitle:    title,
		Status:       sess.Status,
		CurrentIndex: l.machine.CurrentIndex(),
		StartedAt:    sess.StartedAt,
		Deadline:     sess.Deadline,
		Questions:    make([]QuestionView, 0, len(l.questions)),
		Answers:      []AnswerView{},
		Unanswered:   []int{},
	}
	if sess.Status == model.SessionInProgress {
		v.RemainingSeconds = exam.RemainingSeconds(sess.Deadline, now)
		if missing := l.machine.Unanswered(); missing != nil {
			v.Unanswered = missing
		}
	}

	snap := l.machine.Snapshot()
	for i := range l.questions {
		q := &l.questions[i]
		v.Questions = append(v.Questions, newQuestionView(q, false))
		ans, answered := snap.Answers[q.ID]
		if !answered && !snap.Flags[q.ID] {
			continue
		}
		v.Answers = append(v.Answers, AnswerView{
			QuestionID:       q.ID,
			Response:         ans.Response,
			TimeSpentSeconds: ans.TimeSpentSeconds,
			Flagged:          snap.Flags[q.ID],
		})
	}
	return v
}

func (s *ExamService) review(l *loaded) *SessionReview {
	sess := l.session
	summary := l.machine.Summary()
	r := &SessionReview{
		SessionID:       sess.ID,
		TestID:          sess.TestID,
		TestTitle:       s.testTitle(sess.TestID),
		Status:          sess.Status,
		Reason:          sess.Reason,
		Score:           sess.Score,
		Total:           sess.Total,
		Percentage:      sess.Percentage,
		Passed:          float64(sess.Percentage) >= s.Cfg.Exam.PassPercentage,
		StartedAt:       sess.StartedAt,
		EndedAt:         sess.EndedAt,
		DurationSeconds: summary.DurationSeconds(),
		Items:           make([]ReviewItem, 0, len(l.questions)),
	}
	for i, q := range l.questions {
		res := summary.Results[i]
		item := ReviewItem{
			Question:         q,
			Answered:         res.Answered,
			IsCorrect:        res.IsCorrect,
			Flagged:          res.Flagged,
			TimeSpentSeconds: res.TimeSpent,
		}
		if ans, ok := l.machine.Answer(q.ID); ok {
			item.Response = ans.Response
		}
		r.Items = append(r.Items, item)
	}
	return r
}
