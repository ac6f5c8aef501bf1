package repository

import (
	"errors"
	"fmt"
	"sync/atomic"

	"exam_practice_backend/internal/model"
	"exam_practice_backend/pkg/logger"
	"exam_practice_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type FallbackPolicy string

const (
	// FailOpen 主库出错时返回兜底数据
	FailOpen FallbackPolicy = "fail_open"
	// FailClosed 主库出错时直接返回错误
	FailClosed FallbackPolicy = "fail_closed"
)

func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch FallbackPolicy(s) {
	case FailOpen, FailClosed:
		return FallbackPolicy(s), nil
	case "":
		return FailClosed, nil
	}
	return "", fmt.Errorf("unknown catalog fallback policy %q", s)
}

// FallbackCatalog 责任链：primary 出错时按策略决定是否交给 secondary。
// 记录不存在不算故障，不会降级。
type FallbackCatalog struct {
	primary   CatalogReader
	secondary CatalogReader
	policy    atomic.Value
}

func NewFallbackCatalog(primary, secondary CatalogReader, policy FallbackPolicy) *FallbackCatalog {
	c := &FallbackCatalog{primary: primary, secondary: secondary}
	c.policy.Store(policy)
	return c
}

// SetPolicy 配置热更新时调用
func (c *FallbackCatalog) SetPolicy(p FallbackPolicy) {
	c.policy.Store(p)
}

func (c *FallbackCatalog) Policy() FallbackPolicy {
	return c.policy.Load().(FallbackPolicy)
}

func withFallback[T any](c *FallbackCatalog, op string, primary, secondary func() (T, error)) (T, error) {
	v, err := primary()
	if err == nil || errors.Is(err, gorm.ErrRecordNotFound) || c.secondary == nil {
		return v, err
	}

	policy := c.Policy()
	monitoring.CatalogFallbacks.WithLabelValues(op, string(policy)).Inc()
	if policy != FailOpen {
		logger.Log.Error("Catalog read failed", zap.String("operation", op), zap.Error(err))
		return v, err
	}

	logger.Log.Warn("Catalog read failed, serving fixture data",
		zap.String("operation", op),
		zap.Error(err),
	)
	return secondary()
}

type testPage struct {
	rows  []TestListRow
	total int64
}

func (c *FallbackCatalog) ListTests(f TestFilter) ([]TestListRow, int64, error) {
	page, err := withFallback(c, "list_tests",
		func() (testPage, error) {
			rows, total, err := c.primary.ListTests(f)
			return testPage{rows, total}, err
		},
		func() (testPage, error) {
			rows, total, err := c.secondary.ListTests(f)
			return testPage{rows, total}, err
		},
	)
	return page.rows, page.total, err
}

func (c *FallbackCatalog) GetTest(id string) (*model.Test, error) {
	return withFallback(c, "get_test",
		func() (*model.Test, error) { return c.primary.GetTest(id) },
		func() (*model.Test, error) { return c.secondary.GetTest(id) },
	)
}

func (c *FallbackCatalog) GetTestQuestions(testID string) ([]model.Question, error) {
	return withFallback(c, "get_test_questions",
		func() ([]model.Question, error) { return c.primary.GetTestQuestions(testID) },
		func() ([]model.Question, error) { return c.secondary.GetTestQuestions(testID) },
	)
}

func (c *FallbackCatalog) GetQuestion(id string) (*model.Question, error) {
	return withFallback(c, "get_question",
		func() (*model.Question, error) { return c.primary.GetQuestion(id) },
		func() (*model.Question, error) { return c.secondary.GetQuestion(id) },
	)
}

type questionPage struct {
	rows  []model.Question
	total int64
}

func (c *FallbackCatalog) ListQuestions(f QuestionFilter) ([]model.Question, int64, error) {
	page, err := withFallback(c, "list_questions",
		func() (questionPage, error) {
			rows, total, err := c.primary.ListQuestions(f)
			return questionPage{rows, total}, err
		},
		func() (questionPage, error) {
			rows, total, err := c.secondary.ListQuestions(f)
			return questionPage{rows, total}, err
		},
	)
	return page.rows, page.total, err
}

func (c *FallbackCatalog) ListCategories() ([]model.Category, error) {
	return withFallback(c, "list_categories",
		func() ([]model.Category, error) { return c.primary.ListCategories() },
		func() ([]model.Category, error) { return c.secondary.ListCategories() },
	)
}

func (c *FallbackCatalog) GetCategory(id uint) (*model.Category, error) {
	return withFallback(c, "get_category",
		func() (*model.Category, error) { return c.primary.GetCategory(id) },
		func() (*model.Category, error) { return c.secondary.GetCategory(id) },
	)
}
