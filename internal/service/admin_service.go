package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"exam_practice_backend/internal/exam"
	"exam_practice_backend/internal/model"
	"exam_practice_backend/internal/repository"
	"exam_practice_backend/internal/util"
	"exam_practice_backend/pkg/logger"

	"github.com/jinzhu/copier"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CacheInvalidator 写操作后清空题库缓存
type CacheInvalidator interface {
	Invalidate()
}

// AdminService 题库管理，读写都直接走数据库
type AdminService struct {
	Reader   repository.CatalogReader
	Writer   repository.CatalogWriter
	UserRepo repository.UserStore
	Cache    CacheInvalidator
}

func NewAdminService(reader repository.CatalogReader, writer repository.CatalogWriter,
	userRepo repository.UserStore, cache CacheInvalidator) *AdminService {
	return &AdminService{
		Reader:   reader,
		Writer:   writer,
		UserRepo: userRepo,
		Cache:    cache,
	}
}

// CategoryRequest 分类请求
// swagger:model CategoryRequest
type CategoryRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Slug        string `json:"slug" binding:"max=100"`
	Description string `json:"description"`
}

type AnswerInput struct {
	Text      string `json:"text" binding:"required"`
	IsCorrect bool   `json:"isCorrect"`
}

type MatchItemInput struct {
	LeftText  string `json:"leftText" binding:"required"`
	RightText string `json:"rightText" binding:"required"`
}

type SequenceItemInput struct {
	Text            string `json:"text" binding:"required"`
	CorrectPosition int    `json:"correctPosition"`
}

type DragDropItemInput struct {
	Content    string `json:"content" binding:"required"`
	TargetZone string `json:"targetZone" binding:"required"`
}

// QuestionRequest 题目请求，只填写与题型对应的选项
// swagger:model QuestionRequest
type QuestionRequest struct {
	Text          string              `json:"text" binding:"required"`
	Type          exam.QuestionType   `json:"type" binding:"required,questiontype"`
	MediaURL      string              `json:"mediaUrl" binding:"max=500"`
	Explanation   string              `json:"explanation"`
	CategoryID    *uint               `json:"categoryId"`
	Answers       []AnswerInput       `json:"answers" binding:"dive"`
	MatchItems    []MatchItemInput    `json:"matchItems" binding:"dive"`
	SequenceItems []SequenceItemInput `json:"sequenceItems" binding:"dive"`
	DragDropItems []DragDropItemInput `json:"dragDropItems" binding:"dive"`
}

// TestRequest 试卷请求，TimeLimit 单位为秒
// swagger:model TestRequest
type TestRequest struct {
	Title       string          `json:"title" binding:"required,max=255"`
	Description string          `json:"description"`
	TimeLimit   int             `json:"timeLimit" binding:"required,min=1"`
	IsActive    *bool           `json:"isActive"`
	Price       decimal.Decimal `json:"price"`
	CategoryIDs []uint          `json:"categoryIds"`
	QuestionIDs []string        `json:"questionIds"`
}

// PromoteToAdmin 按邮箱授予管理员
func (s *AdminService) PromoteToAdmin(email string) (*model.User, error) {
	user, err := s.UserRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	if user.Profile.IsAdmin() {
		return user, nil
	}
	if err := s.UserRepo.SetRole(user.ID, model.RoleAdmin); err != nil {
		return nil, err
	}
	if user.Profile != nil {
		user.Profile.Role = model.RoleAdmin
	}
	logger.Log.Info("User promoted to admin", zap.Uint("user_id", user.ID), zap.String("email", user.Email))
	return user, nil
}

func (s *AdminService) invalidate() {
	if s.Cache != nil {
		s.Cache.Invalidate()
	}
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	return strings.Trim(slugInvalid.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

// ---- 分类 ----

func (s *AdminService) ListCategories() ([]model.Category, error) {
	return s.Reader.ListCategories()
}

func (s *AdminService) CreateCategory(req CategoryRequest) (*model.Category, error) {
	c := &model.Category{Name: req.Name, Slug: req.Slug, Description: req.Description}
	if c.Slug == "" {
		c.Slug = slugify(req.Name)
	}
	if c.Slug == "" {
		return nil, fmt.Errorf("%w: slug cannot be derived from name", util.ErrValidation)
	}
	if err := s.Writer.CreateCategory(c); err != nil {
		return nil, err
	}
	s.invalidate()
	return c, nil
}

func (s *AdminService) UpdateCategory(id uint, req CategoryRequest) (*model.Category, error) {
	c, err := s.Reader.GetCategory(id)
	if err != nil {
		return nil, notFound(err, util.ErrCategoryNotFound)
	}
	c.Name = req.Name
	c.Description = req.Description
	if req.Slug != "" {
		c.Slug = req.Slug
	}
	if err := s.Writer.UpdateCategory(c); err != nil {
		return nil, err
	}
	s.invalidate()
	return c, nil
}

func (s *AdminService) DeleteCategory(id uint) error {
	if err := s.Writer.DeleteCategory(id); err != nil {
		return notFound(err, util.ErrCategoryNotFound)
	}
	s.invalidate()
	return nil
}

// ---- 题目 ----

func (s *AdminService) ListQuestions(filter repository.QuestionFilter) ([]model.Question, int64, error) {
	return s.Reader.ListQuestions(filter)
}

func (s *AdminService) GetQuestion(id string) (*model.Question, error) {
	q, err := s.Reader.GetQuestion(id)
	if err != nil {
		return nil, notFound(err, util.ErrQuestionNotFound)
	}
	return q, nil
}

func (s *AdminService) buildQuestion(req QuestionRequest) (*model.Question, error) {
	var q model.Question
	if err := copier.Copy(&q, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrValidation, err)
	}
	for i := range q.Answers {
		q.Answers[i].Position = i
	}
	for i := range q.MatchItems {
		q.MatchItems[i].Position = i
	}
	for i := range q.DragDropItems {
		q.DragDropItems[i].Position = i
	}
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrValidation, err)
	}
	if q.CategoryID != nil {
		if _, err := s.Reader.GetCategory(*q.CategoryID); err != nil {
			return nil, notFound(err, util.ErrCategoryNotFound)
		}
	}
	return &q, nil
}

func (s *AdminService) CreateQuestion(req QuestionRequest) (*model.Question, error) {
	q, err := s.buildQuestion(req)
	if err != nil {
		return nil, err
	}
	if err := s.Writer.CreateQuestion(q); err != nil {
		return nil, err
	}
	s.invalidate()
	return q, nil
}

func (s *AdminService) UpdateQuestion(id string, req QuestionRequest) (*model.Question, error) {
	q, err := s.buildQuestion(req)
	if err != nil {
		return nil, err
	}
	q.ID = id
	if err := s.Writer.UpdateQuestion(q); err != nil {
		return nil, notFound(err, util.ErrQuestionNotFound)
	}
	s.invalidate()
	return q, nil
}

func (s *AdminService) DeleteQuestion(id string) error {
	if err := s.Writer.DeleteQuestion(id); err != nil {
		return notFound(err, util.ErrQuestionNotFound)
	}
	s.invalidate()
	return nil
}

// ---- 试卷 ----

func (s *AdminService) ListTests(filter repository.TestFilter) ([]repository.TestListRow, int64, error) {
	filter.IncludeInactive = true
	return s.Reader.ListTests(filter)
}

// GetTest 管理端详情，题目包含答案
func (s *AdminService) GetTest(id string) (*model.Test, error) {
	t, err := s.Reader.GetTest(id)
	if err != nil {
		return nil, notFound(err, util.ErrTestNotFound)
	}
	t.Questions, err = s.Reader.GetTestQuestions(id)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *AdminService) applyTest(t *model.Test, req TestRequest) error {
	if req.Price.IsNegative() {
		return fmt.Errorf("%w: price cannot be negative", util.ErrValidation)
	}
	t.Title = req.Title
	t.Description = req.Description
	t.TimeLimit = req.TimeLimit
	t.Price = req.Price
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}

	t.Categories = make([]model.Category, 0, len(req.CategoryIDs))
	for _, id := range req.CategoryIDs {
		c, err := s.Reader.GetCategory(id)
		if err != nil {
			return notFound(err, util.ErrCategoryNotFound)
		}
		t.Categories = append(t.Categories, *c)
	}
	return nil
}

// CreateTest 试卷与题目顺序在同一事务内创建
func (s *AdminService) CreateTest(req TestRequest) (*model.Test, error) {
	t := &model.Test{IsActive: true}
	if err := s.applyTest(t, req); err != nil {
		return nil, err
	}
	if err := s.Writer.CreateTest(t, req.QuestionIDs); err != nil {
		return nil, missingQuestions(err)
	}
	s.invalidate()
	return s.GetTest(t.ID)
}

// UpdateTest 更新基本信息与分类；QuestionIDs 非空时同时替换题目
func (s *AdminService) UpdateTest(id string, req TestRequest) (*model.Test, error) {
	t, err := s.Reader.GetTest(id)
	if err != nil {
		return nil, notFound(err, util.ErrTestNotFound)
	}
	if err := s.applyTest(t, req); err != nil {
		return nil, err
	}
	if err := s.Writer.UpdateTest(t); err != nil {
		return nil, err
	}
	if req.QuestionIDs != nil {
		if err := s.Writer.SetTestQuestions(id, req.QuestionIDs); err != nil {
			return nil, missingQuestions(err)
		}
	}
	s.invalidate()
	return s.GetTest(id)
}

func (s *AdminService) SetTestQuestions(id string, questionIDs []string) (*model.Test, error) {
	if err := s.Writer.SetTestQuestions(id, questionIDs); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTestNotFound
		}
		return nil, missingQuestions(err)
	}
	s.invalidate()
	return s.GetTest(id)
}

func (s *AdminService) SetTestActive(id string, active bool) error {
	if err := s.Writer.SetTestActive(id, active); err != nil {
		return notFound(err, util.ErrTestNotFound)
	}
	s.invalidate()
	return nil
}

func (s *AdminService) DeleteTest(id string) error {
	if err := s.Writer.DeleteTest(id); err != nil {
		return notFound(err, util.ErrTestNotFound)
	}
	s.invalidate()
	return nil
}

// notFound 把 gorm.ErrRecordNotFound 换成业务错误
func notFound(err, target error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return err
}

func missingQuestions(err error) error {
	if errors.Is(err, repository.ErrMissingQuestions) {
		return fmt.Errorf("%w: %v", util.ErrValidation, err)
	}
	return err
}
