package repository

import (
	"time"

	"exam_practice_backend/internal/model"

	"gorm.io/gorm"
)

var finishedStatuses = []model.SessionStatus{model.SessionCompleted, model.SessionExpired}

// DashboardRepository 仪表盘聚合查询
type DashboardRepository struct {
	DB *gorm.DB
}

func NewDashboardRepository(db *gorm.DB) *DashboardRepository {
	return &DashboardRepository{DB: db}
}

func (r *DashboardRepository) FinishedSessions(userID uint) ([]model.TestSession, error) {
	var sessions []model.TestSession
	err := r.DB.Where("user_id = ? AND status IN ?", userID, finishedStatuses).
		Order("ended_at asc").
		Find(&sessions).Error
	return sessions, err
}

func (r *DashboardRepository) CountSessions(userID uint) (int64, error) {
	var n int64
	err := r.DB.Model(&model.TestSession{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

// CategoryBreakdown 已完成会话中已作答题目按分类汇总
func (r *DashboardRepository) CategoryBreakdown(userID uint) ([]model.SessionCategoryRow, error) {
	var rows []model.SessionCategoryRow
	err := r.DB.Table("user_answers").
		Select("categories.id AS category_id, categories.name AS category_name, "+
			"SUM(CASE WHEN user_answers.is_correct = ? THEN 1 ELSE 0 END) AS correct, "+
			"COUNT(*) AS total", true).
		Joins("JOIN test_sessions ON test_sessions.id = user_answers.session_id").
		Joins("JOIN questions ON questions.id = user_answers.question_id").
		Joins("JOIN categories ON categories.id = questions.category_id").
		Where("test_sessions.user_id = ? AND test_sessions.status IN ?", userID, finishedStatuses).
		Where("user_answers.deleted_at IS NULL AND user_answers.response IS NOT NULL").
		Group("categories.id, categories.name").
		Order("categories.name asc").
		Scan(&rows).Error
	return rows, err
}

func (r *DashboardRepository) FinishedSince(userID uint, since time.Time) ([]model.TestSession, error) {
	var sessions []model.TestSession
	err := r.DB.Where("user_id = ? AND status IN ? AND ended_at >= ?", userID, finishedStatuses, since).
		Order("ended_at asc").
		Find(&sessions).Error
	return sessions, err
}

type historyRow struct {
	model.TestSession
	TestTitle string
}

func (r *DashboardRepository) History(userID uint, page, limit int) ([]model.HistoryEntry, int64, error) {
	page, limit = normalizePage(page, limit)

	var total int64
	base := r.DB.Model(&model.TestSession{}).Where("user_id = ? AND status IN ?", userID, finishedStatuses)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []historyRow
	err := r.DB.Table("test_sessions").
		Select("test_sessions.*, tests.title AS test_title").
		Joins("LEFT JOIN tests ON tests.id = test_sessions.test_id").
		Where("test_sessions.user_id = ? AND test_sessions.status IN ? AND test_sessions.deleted_at IS NULL", userID, finishedStatuses).
		Order("test_sessions.ended_at desc").
		Offset((page - 1) * limit).Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	entries := make([]model.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		e := model.HistoryEntry{
			SessionID:  row.ID,
			TestID:     row.TestID,
			TestTitle:  row.TestTitle,
			Status:     row.Status,
			Score:      row.Score,
			Total:      row.Total,
			Percentage: row.Percentage,
			StartedAt:  row.StartedAt,
			EndedAt:    row.EndedAt,
		}
		if row.EndedAt != nil {
			e.DurationSeconds = int(row.EndedAt.Sub(row.StartedAt) / time.Second)
		}
		entries = append(entries, e)
	}
	return entries, total, nil
}
