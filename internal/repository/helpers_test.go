package repository

import (
	"testing"

	"exam_practice_backend/internal/exam"
	"exam_practice_backend/internal/model"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 使用内存SQLite数据库进行测试，单连接保证所有查询落在同一个库
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	return db
}

func singleChoice(text string, correct int, options ...string) *model.Question {
	q := &model.Question{Text: text, Type: exam.SingleChoice}
	for i, o := range options {
		q.Answers = append(q.Answers, model.Answer{Text: o, IsCorrect: i == correct, Position: i})
	}
	return q
}

func createQuestions(t *testing.T, repo *CatalogRepository, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		q := singleChoice("question", 0, "yes", "no")
		require.NoError(t, repo.CreateQuestion(q))
		ids = append(ids, q.ID)
	}
	return ids
}
