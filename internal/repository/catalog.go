package repository

import (
	"exam_practice_backend/internal/exam"
	"exam_practice_backend/internal/model"
)

type TestFilter struct {
	CategoryID      uint
	Search          string
	IncludeInactive bool
	Page            int
	Limit           int
}

type QuestionFilter struct {
	CategoryID uint
	Type       exam.QuestionType
	Search     string
	Page       int
	Limit      int
}

// TestListRow 列表行附带题目数量
type TestListRow struct {
	model.Test
	QuestionCount int `json:"questionCount"`
}

type TestReader interface {
	ListTests(filter TestFilter) ([]TestListRow, int64, error)
	GetTest(id string) (*model.Test, error)
	// GetTestQuestions 按 position 返回试卷题目，包含各题型选项
	GetTestQuestions(testID string) ([]model.Question, error)
}

type QuestionReader interface {
	GetQuestion(id string) (*model.Question, error)
	ListQuestions(filter QuestionFilter) ([]model.Question, int64, error)
}

type CategoryReader interface {
	ListCategories() ([]model.Category, error)
	GetCategory(id uint) (*model.Category, error)
}

// CatalogReader 题库只读接口，可叠加降级与缓存装饰
type CatalogReader interface {
	TestReader
	QuestionReader
	CategoryReader
}

// CatalogWriter 管理端写接口，只由数据库实现
type CatalogWriter interface {
	CreateCategory(c *model.Category) error
	UpdateCategory(c *model.Category) error
	DeleteCategory(id uint) error

	CreateQuestion(q *model.Question) error
	UpdateQuestion(q *model.Question) error
	DeleteQuestion(id string) error

	CreateTest(t *model.Test, questionIDs []string) error
	UpdateTest(t *model.Test) error
	SetTestQuestions(testID string, questionIDs []string) error
	SetTestActive(testID string, active bool) error
	DeleteTest(id string) error
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return page, limit
}
