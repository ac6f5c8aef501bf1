package repository

import (
	"time"

	"exam_practice_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TestSessionRepository 答题会话与作答记录
type TestSessionRepository struct {
	DB *gorm.DB
}

func NewTestSessionRepository(db *gorm.DB) *TestSessionRepository {
	return &TestSessionRepository{DB: db}
}

func (r *TestSessionRepository) Create(s *model.TestSession) error {
	return r.DB.Create(s).Error
}

func (r *TestSessionRepository) FindByID(id string) (*model.TestSession, error) {
	var s model.TestSession
	if err := r.DB.First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *TestSessionRepository) FindInProgress(userID uint, testID string) (*model.TestSession, error) {
	var s model.TestSession
	err := r.DB.Where("user_id = ? AND test_id = ? AND status = ?", userID, testID, model.SessionInProgress).
		Order("started_at desc").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *TestSessionRepository) Update(s *model.TestSession) error {
	return r.DB.Save(s).Error
}

func (r *TestSessionRepository) ListAnswers(sessionID string) ([]model.UserAnswer, error) {
	var answers []model.UserAnswer
	err := r.DB.Where("session_id = ?", sessionID).Find(&answers).Error
	return answers, err
}

var answerUpsert = clause.OnConflict{
	Columns:   []clause.Column{{Name: "session_id"}, {Name: "question_id"}},
	DoUpdates: clause.AssignmentColumns([]string{"response", "is_correct", "time_spent_seconds", "flagged", "updated_at"}),
}

// SaveAnswer 按 (session_id, question_id) 插入或覆盖
func (r *TestSessionRepository) SaveAnswer(a *model.UserAnswer) error {
	return r.DB.Clauses(answerUpsert).Create(a).Error
}

func (r *TestSessionRepository) Complete(s *model.TestSession, answers []model.UserAnswer) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(s).Error; err != nil {
			return err
		}
		for i := range answers {
			if err := tx.Clauses(answerUpsert).Create(&answers[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *TestSessionRepository) FindOverdue(now time.Time, limit int) ([]model.TestSession, error) {
	var sessions []model.TestSession
	err := r.DB.Where("status = ? AND deadline <= ?", model.SessionInProgress, now).
		Order("deadline asc").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}
