package service

import (
	"errors"

	"exam_practice_backend/internal/model"
	"exam_practice_backend/internal/repository"
	"exam_practice_backend/internal/util"

	"gorm.io/gorm"
)

// CatalogService 试卷浏览
type CatalogService struct {
	Catalog      repository.CatalogReader
	PurchaseRepo repository.PurchaseStore
	Shuffle      bool
}

func NewCatalogService(catalog repository.CatalogReader, purchaseRepo repository.PurchaseStore) *CatalogService {
	return &CatalogService{
		Catalog:      catalog,
		PurchaseRepo: purchaseRepo,
		Shuffle:      true,
	}
}

// Viewer 当前访问者，匿名访问时 UserID 为 0
type Viewer struct {
	UserID  uint
	IsAdmin bool
}

func (s *CatalogService) ListTests(filter repository.TestFilter, viewer Viewer) ([]TestSummary, int64, error) {
	if !viewer.IsAdmin {
		filter.IncludeInactive = false
	}
	rows, total, err := s.Catalog.ListTests(filter)
	if err != nil {
		return nil, 0, err
	}

	purchased := map[string]bool{}
	if viewer.UserID != 0 && len(rows) > 0 {
		ids := make([]string, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.ID)
		}
		purchased, err = s.PurchaseRepo.PaidTestIDs(viewer.UserID, ids)
		if err != nil {
			return nil, 0, err
		}
	}

	list := make([]TestSummary, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		summary, err := newTestSummary(&r.Test, r.QuestionCount, r.IsFree() || purchased[r.ID])
		if err != nil {
			return nil, 0, err
		}
		list = append(list, summary)
	}
	return list, total, nil
}

func (s *CatalogService) GetTest(id string, viewer Viewer) (*TestDetail, error) {
	test, err := s.loadTest(id, viewer.IsAdmin)
	if err != nil {
		return nil, err
	}
	questions, err := s.Catalog.GetTestQuestions(id)
	if err != nil {
		return nil, err
	}

	owned := test.IsFree()
	if !owned && viewer.UserID != 0 {
		owned, err = s.PurchaseRepo.HasPaid(viewer.UserID, id)
		if err != nil {
			return nil, err
		}
	}

	summary, err := newTestSummary(test, len(questions), owned)
	if err != nil {
		return nil, err
	}
	detail := &TestDetail{
		TestSummary: summary,
		Questions:   make([]QuestionView, 0, len(questions)),
	}
	for i := range questions {
		detail.Questions = append(detail.Questions, newQuestionView(&questions[i], s.Shuffle))
	}
	return detail, nil
}

func (s *CatalogService) ListCategories() ([]model.Category, error) {
	return s.Catalog.ListCategories()
}

// loadTest 非管理员看不到下架的试卷
func (s *CatalogService) loadTest(id string, isAdmin bool) (*model.Test, error) {
	test, err := s.Catalog.GetTest(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTestNotFound
		}
		return nil, err
	}
	if !test.IsActive && !isAdmin {
		return nil, util.ErrTestNotFound
	}
	return test, nil
}
