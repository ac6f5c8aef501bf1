package repository

import (
	"errors"
	"fmt"
	"strings"

	"exam_practice_backend/internal/model"

	"gorm.io/gorm"
)

var ErrMissingQuestions = errors.New("referenced questions do not exist")

// CatalogRepository 题库的数据库实现
type CatalogRepository struct {
	DB *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{DB: db}
}

func preloadVariants(db *gorm.DB) *gorm.DB {
	return db.Preload("Answers").Preload("MatchItems").Preload("SequenceItems").Preload("DragDropItems")
}

func (r *CatalogRepository) ListTests(f TestFilter) ([]TestListRow, int64, error) {
	page, limit := normalizePage(f.Page, f.Limit)
	build := func() *gorm.DB {
		q := r.DB.Model(&model.Test{})
		if !f.IncludeInactive {
			q = q.Where("tests.is_active = ?", true)
		}
		if f.CategoryID > 0 {
			q = q.Where("tests.id IN (?)", r.DB.Table("test_categories").Select("test_id").Where("category_id = ?", f.CategoryID))
		}
		if s := strings.TrimSpace(f.Search); s != "" {
			like := "%" + strings.ToLower(s) + "%"
			q = q.Where("(LOWER(tests.title) LIKE ? OR LOWER(tests.description) LIKE ?)", like, like)
		}
		return q
	}

	var total int64
	if err := build().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tests []model.Test
	err := build().Preload("Categories").
		Order("tests.created_at desc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&tests).Error
	if err != nil {
		return nil, 0, err
	}

	ids := make([]string, 0, len(tests))
	for _, t := range tests {
		ids = append(ids, t.ID)
	}
	counts, err := r.questionCounts(ids)
	if err != nil {
		return nil, 0, err
	}

	rows := make([]TestListRow, 0, len(tests))
	for _, t := range tests {
		rows = append(rows, TestListRow{Test: t, QuestionCount: counts[t.ID]})
	}
	return rows, total, nil
}

func (r *CatalogRepository) questionCounts(testIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(testIDs))
	if len(testIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		TestID string
		N      int
	}
	err := r.DB.Table("test_questions").
		Select("test_questions.test_id AS test_id, COUNT(*) AS n").
		Joins("JOIN questions ON questions.id = test_questions.question_id AND questions.deleted_at IS NULL").
		Where("test_questions.test_id IN ?", testIDs).
		Group("test_questions.test_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.TestID] = row.N
	}
	return out, nil
}

func (r *CatalogRepository) GetTest(id string) (*model.Test, error) {
	var t model.Test
	if err := r.DB.Preload("Categories").First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *CatalogRepository) GetTestQuestions(testID string) ([]model.Question, error) {
	var links []model.TestQuestion
	if err := r.DB.Where("test_id = ?", testID).Order("position asc").Find(&links).Error; err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return []model.Question{}, nil
	}

	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.QuestionID)
	}
	var qs []model.Question
	if err := preloadVariants(r.DB).Where("id IN ?", ids).Find(&qs).Error; err != nil {
		return nil, err
	}

	byID := make(map[string]model.Question, len(qs))
	for _, q := range qs {
		q.SortVariants()
		byID[q.ID] = q
	}
	ordered := make([]model.Question, 0, len(qs))
	for _, l := range links {
		// 已删除的题目直接跳过
		if q, ok := byID[l.QuestionID]; ok {
			ordered = append(ordered, q)
		}
	}
	return ordered, nil
}

func (r *CatalogRepository) GetQuestion(id string) (*model.Question, error) {
	var q model.Question
	if err := preloadVariants(r.DB).First(&q, "id = ?", id).Error; err != nil {
		return nil, err
	}
	q.SortVariants()
	return &q, nil
}

func (r *CatalogRepository) ListQuestions(f QuestionFilter) ([]model.Question, int64, error) {
	page, limit := normalizePage(f.Page, f.Limit)
	build := func() *gorm.DB {
		q := r.DB.Model(&model.Question{})
		if f.CategoryID > 0 {
			q = q.Where("category_id = ?", f.CategoryID)
		}
		if f.Type != "" {
			q = q.Where("type = ?", f.Type)
		}
		if s := strings.TrimSpace(f.Search); s != "" {
			q = q.Where("LOWER(text) LIKE ?", "%"+strings.ToLower(s)+"%")
		}
		return q
	}

	var total int64
	if err := build().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var qs []model.Question
	err := preloadVariants(build()).
		Order("created_at desc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&qs).Error
	for i := range qs {
		qs[i].SortVariants()
	}
	return qs, total, err
}

func (r *CatalogRepository) ListCategories() ([]model.Category, error) {
	var cs []model.Category
	err := r.DB.Order("name asc").Find(&cs).Error
	return cs, err
}

func (r *CatalogRepository) GetCategory(id uint) (*model.Category, error) {
	var c model.Category
	if err := r.DB.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CatalogRepository) CreateCategory(c *model.Category) error {
	return r.DB.Create(c).Error
}

func (r *CatalogRepository) UpdateCategory(c *model.Category) error {
	return r.DB.Save(c).Error
}

func (r *CatalogRepository) DeleteCategory(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM test_categories WHERE category_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Question{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Category{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// CreateQuestion 题目与选项在同一事务内写入
func (r *CatalogRepository) CreateQuestion(q *model.Question) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Create(q).Error
	})
}

// UpdateQuestion 整体替换选项表
func (r *CatalogRepository) UpdateQuestion(q *model.Question) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var existing model.Question
		if err := tx.First(&existing, "id = ?", q.ID).Error; err != nil {
			return err
		}
		if err := deleteVariants(tx, q.ID); err != nil {
			return err
		}
		q.CreatedAt = existing.CreatedAt
		if err := tx.Omit("Answers", "MatchItems", "SequenceItems", "DragDropItems").Save(q).Error; err != nil {
			return err
		}
		return createVariants(tx, q)
	})
}

func deleteVariants(tx *gorm.DB, questionID string) error {
	for _, v := range []interface{}{&model.Answer{}, &model.MatchItem{}, &model.SequenceItem{}, &model.DragDropItem{}} {
		if err := tx.Unscoped().Where("question_id = ?", questionID).Delete(v).Error; err != nil {
			return err
		}
	}
	return nil
}

func createVariants(tx *gorm.DB, q *model.Question) error {
	for i := range q.Answers {
		q.Answers[i].QuestionID = q.ID
	}
	for i := range q.MatchItems {
		q.MatchItems[i].QuestionID = q.ID
	}
	for i := range q.SequenceItems {
		q.SequenceItems[i].QuestionID = q.ID
	}
	for i := range q.DragDropItems {
		q.DragDropItems[i].QuestionID = q.ID
	}
	if len(q.Answers) > 0 {
		if err := tx.Create(&q.Answers).Error; err != nil {
			return err
		}
	}
	if len(q.MatchItems) > 0 {
		if err := tx.Create(&q.MatchItems).Error; err != nil {
			return err
		}
	}
	if len(q.SequenceItems) > 0 {
		if err := tx.Create(&q.SequenceItems).Error; err != nil {
			return err
		}
	}
	if len(q.DragDropItems) > 0 {
		if err := tx.Create(&q.DragDropItems).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *CatalogRepository) DeleteQuestion(id string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", id).Delete(&model.TestQuestion{}).Error; err != nil {
			return err
		}
		if err := deleteVariants(tx, id); err != nil {
			return err
		}
		res := tx.Delete(&model.Question{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// CreateTest 试卷、分类关联与题目顺序在同一事务内写入，失败整体回滚
func (r *CatalogRepository) CreateTest(t *model.Test, questionIDs []string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		return replaceTestQuestions(tx, t.ID, questionIDs)
	})
}

func (r *CatalogRepository) UpdateTest(t *model.Test) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Categories").Save(t).Error; err != nil {
			return err
		}
		return tx.Model(t).Association("Categories").Replace(t.Categories)
	})
}

func (r *CatalogRepository) SetTestQuestions(testID string, questionIDs []string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.Test{}).Where("id = ?", testID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
		return replaceTestQuestions(tx, testID, questionIDs)
	})
}

func replaceTestQuestions(tx *gorm.DB, testID string, questionIDs []string) error {
	ids := dedupe(questionIDs)
	if len(ids) > 0 {
		var found int64
		if err := tx.Model(&model.Question{}).Where("id IN ?", ids).Count(&found).Error; err != nil {
			return err
		}
		if int(found) != len(ids) {
			return fmt.Errorf("%w: %d of %d found", ErrMissingQuestions, found, len(ids))
		}
	}

	if err := tx.Where("test_id = ?", testID).Delete(&model.TestQuestion{}).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	links := make([]model.TestQuestion, 0, len(ids))
	for i, id := range ids {
		links = append(links, model.TestQuestion{TestID: testID, QuestionID: id, Position: i})
	}
	return tx.Create(&links).Error
}

// SetTestActive MySQL 在值未变化时 RowsAffected 为 0，所以先确认试卷存在
func (r *CatalogRepository) SetTestActive(testID string, active bool) error {
	var n int64
	if err := r.DB.Model(&model.Test{}).Where("id = ?", testID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return gorm.ErrRecordNotFound
	}
	return r.DB.Model(&model.Test{}).Where("id = ?", testID).Update("is_active", active).Error
}

// DeleteTest 保留历史会话，只删除试卷与关联
func (r *CatalogRepository) DeleteTest(id string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_id = ?", id).Delete(&model.TestQuestion{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM test_categories WHERE test_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Test{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
