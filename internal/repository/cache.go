package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"exam_practice_backend/internal/model"
	"exam_practice_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const catalogGenKey = "catalog:gen"

// CachedCatalog Redis 读穿缓存，管理端写入后递增代号使旧键失效
type CachedCatalog struct {
	next  CatalogReader
	Redis *redis.Client
	ttl   time.Duration
	ctx   context.Context
}

func NewCachedCatalog(next CatalogReader, rdb *redis.Client, ttl time.Duration) *CachedCatalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedCatalog{
		next:  next,
		Redis: rdb,
		ttl:   ttl,
		ctx:   context.Background(),
	}
}

func (c *CachedCatalog) key(format string, args ...interface{}) string {
	gen, err := c.Redis.Get(c.ctx, catalogGenKey).Result()
	if err != nil {
		gen = "0"
	}
	return "catalog:" + gen + ":" + fmt.Sprintf(format, args...)
}

// Invalidate 使所有题库缓存失效
func (c *CachedCatalog) Invalidate() {
	if c.Redis == nil {
		return
	}
	if err := c.Redis.Incr(c.ctx, catalogGenKey).Err(); err != nil {
		logger.Log.Warn("Failed to invalidate catalog cache", zap.Error(err))
	}
}

func cached[T any](c *CachedCatalog, key func() string, load func() (T, error)) (T, error) {
	if c.Redis == nil {
		return load()
	}

	k := key()
	if data, err := c.Redis.Get(c.ctx, k).Bytes(); err == nil {
		var v T
		if json.Unmarshal(data, &v) == nil {
			return v, nil
		}
	} else if err != redis.Nil {
		logger.Log.Debug("Catalog cache unavailable", zap.String("key", k), zap.Error(err))
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if data, err := json.Marshal(v); err == nil {
		c.Redis.Set(c.ctx, k, data, c.ttl)
	}
	return v, nil
}

type cachedTestPage struct {
	Rows  []TestListRow `json:"rows"`
	Total int64         `json:"total"`
}

func (c *CachedCatalog) ListTests(f TestFilter) ([]TestListRow, int64, error) {
	page, err := cached(c,
		func() string {
			return c.key("tests:%d:%t:%d:%d:%s", f.CategoryID, f.IncludeInactive, f.Page, f.Limit, f.Search)
		},
		func() (cachedTestPage, error) {
			rows, total, err := c.next.ListTests(f)
			return cachedTestPage{rows, total}, err
		},
	)
	return page.Rows, page.Total, err
}

func (c *CachedCatalog) GetTest(id string) (*model.Test, error) {
	return cached(c,
		func() string { return c.key("test:%s", id) },
		func() (*model.Test, error) { return c.next.GetTest(id) },
	)
}

func (c *CachedCatalog) GetTestQuestions(testID string) ([]model.Question, error) {
	return cached(c,
		func() string { return c.key("test:%s:questions", testID) },
		func() ([]model.Question, error) { return c.next.GetTestQuestions(testID) },
	)
}

func (c *CachedCatalog) GetQuestion(id string) (*model.Question, error) {
	return cached(c,
		func() string { return c.key("question:%s", id) },
		func() (*model.Question, error) { return c.next.GetQuestion(id) },
	)
}

// ListQuestions 只有管理端使用，不缓存
func (c *CachedCatalog) ListQuestions(f QuestionFilter) ([]model.Question, int64, error) {
	return c.next.ListQuestions(f)
}

func (c *CachedCatalog) ListCategories() ([]model.Category, error) {
	return cached(c,
		func() string { return c.key("categories") },
		func() ([]model.Category, error) { return c.next.ListCategories() },
	)
}

func (c *CachedCatalog) GetCategory(id uint) (*model.Category, error) {
	return cached(c,
		func() string { return c.key("category:%d", id) },
		func() (*model.Category, error) { return c.next.GetCategory(id) },
	)
}
