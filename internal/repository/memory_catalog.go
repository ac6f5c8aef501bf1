package repository

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"exam_practice_backend/internal/exam"
	"exam_practice_backend/internal/model"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed fixtures/catalog.yaml
var fixtureCatalog []byte

type fixtureFile struct {
	Categories []struct {
		ID          uint   `yaml:"id"`
		Name        string `yaml:"name"`
		Slug        string `yaml:"slug"`
		Description string `yaml:"description"`
	} `yaml:"categories"`
	Questions []struct {
		ID          string `yaml:"id"`
		Category    uint   `yaml:"category"`
		Type        string `yaml:"type"`
		Text        string `yaml:"text"`
		MediaURL    string `yaml:"media_url"`
		Explanation string `yaml:"explanation"`
		Answers     []struct {
			ID      string `yaml:"id"`
			Text    string `yaml:"text"`
			Correct bool   `yaml:"correct"`
		} `yaml:"answers"`
		MatchItems []struct {
			ID      string `yaml:"id"`
			RightID string `yaml:"right_id"`
			Left    string `yaml:"left"`
			Right   string `yaml:"right"`
		} `yaml:"match_items"`
		SequenceItems []struct {
			ID       string `yaml:"id"`
			Text     string `yaml:"text"`
			Position int    `yaml:"position"`
		} `yaml:"sequence_items"`
		DragDropItems []struct {
			ID      string `yaml:"id"`
			Content string `yaml:"content"`
			Zone    string `yaml:"zone"`
		} `yaml:"drag_drop_items"`
	} `yaml:"questions"`
	Tests []struct {
		ID          string   `yaml:"id"`
		Title       string   `yaml:"title"`
		Description string   `yaml:"description"`
		TimeLimit   int      `yaml:"time_limit"`
		Inactive    bool     `yaml:"inactive"`
		Price       string   `yaml:"price"`
		Categories  []uint   `yaml:"categories"`
		Questions   []string `yaml:"questions"`
	} `yaml:"tests"`
}

// MemoryCatalog 只读的内存题库，作为数据库故障时的兜底
type MemoryCatalog struct {
	categories []model.Category
	questions  map[string]model.Question
	qOrder     []string
	tests      []model.Test
	testQs     map[string][]string
}

// NewMemoryCatalog 加载内置的 fixtures/catalog.yaml
func NewMemoryCatalog() (*MemoryCatalog, error) {
	return LoadMemoryCatalog(fixtureCatalog)
}

func LoadMemoryCatalog(data []byte) (*MemoryCatalog, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog fixtures: %w", err)
	}

	m := &MemoryCatalog{
		questions: make(map[string]model.Question, len(f.Questions)),
		testQs:    make(map[string][]string, len(f.Tests)),
	}
	cats := make(map[uint]model.Category, len(f.Categories))
	for _, c := range f.Categories {
		cat := model.Category{Name: c.Name, Slug: c.Slug, Description: c.Description}
		cat.ID = c.ID
		m.categories = append(m.categories, cat)
		cats[c.ID] = cat
	}

	for _, fq := range f.Questions {
		q := model.Question{
			Text:        fq.Text,
			Type:        exam.QuestionType(fq.Type),
			MediaURL:    fq.MediaURL,
			Explanation: fq.Explanation,
		}
		q.ID = fq.ID
		if fq.Category > 0 {
			cid := fq.Category
			q.CategoryID = &cid
		}
		for i, a := range fq.Answers {
			ans := model.Answer{QuestionID: q.ID, Text: a.Text, IsCorrect: a.Correct, Position: i}
			ans.ID = a.ID
			q.Answers = append(q.Answers, ans)
		}
		for i, it := range fq.MatchItems {
			if it.RightID == "" {
				return nil, fmt.Errorf("catalog fixtures: match item %s has no right_id", it.ID)
			}
			mi := model.MatchItem{QuestionID: q.ID, RightID: it.RightID, LeftText: it.Left, RightText: it.Right, Position: i}
			mi.ID = it.ID
			q.MatchItems = append(q.MatchItems, mi)
		}
		for _, it := range fq.SequenceItems {
			si := model.SequenceItem{QuestionID: q.ID, Text: it.Text, CorrectPosition: it.Position}
			si.ID = it.ID
			q.SequenceItems = append(q.SequenceItems, si)
		}
		for i, it := range fq.DragDropItems {
			di := model.DragDropItem{QuestionID: q.ID, Content: it.Content, TargetZone: it.Zone, Position: i}
			di.ID = it.ID
			q.DragDropItems = append(q.DragDropItems, di)
		}
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("fixture question %s: %w", q.ID, err)
		}
		m.questions[q.ID] = q
		m.qOrder = append(m.qOrder, q.ID)
	}

	for _, ft := range f.Tests {
		price := decimal.Zero
		if ft.Price != "" {
			p, err := decimal.NewFromString(ft.Price)
			if err != nil {
				return nil, fmt.Errorf("fixture test %s price: %w", ft.ID, err)
			}
			price = p
		}
		t := model.Test{
			Title:       ft.Title,
			Description: ft.Description,
			TimeLimit:   ft.TimeLimit,
			IsActive:    !ft.Inactive,
			Price:       price,
		}
		t.ID = ft.ID
		if t.TimeLimit <= 0 {
			return nil, fmt.Errorf("fixture test %s: time limit must be positive", ft.ID)
		}
		for _, cid := range ft.Categories {
			if c, ok := cats[cid]; ok {
				t.Categories = append(t.Categories, c)
			}
		}
		for _, qid := range ft.Questions {
			if _, ok := m.questions[qid]; !ok {
				return nil, fmt.Errorf("fixture test %s references unknown question %s", ft.ID, qid)
			}
		}
		m.tests = append(m.tests, t)
		m.testQs[t.ID] = ft.Questions
	}
	return m, nil
}

func (m *MemoryCatalog) ListTests(f TestFilter) ([]TestListRow, int64, error) {
	page, limit := normalizePage(f.Page, f.Limit)
	search := strings.ToLower(strings.TrimSpace(f.Search))

	var matched []TestListRow
	for _, t := range m.tests {
		if !f.IncludeInactive && !t.IsActive {
			continue
		}
		if f.CategoryID > 0 && !hasCategory(t, f.CategoryID) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(t.Title), search) &&
			!strings.Contains(strings.ToLower(t.Description), search) {
			continue
		}
		matched = append(matched, TestListRow{Test: t, QuestionCount: len(m.testQs[t.ID])})
	}

	total := int64(len(matched))
	start := (page - 1) * limit
	if start >= len(matched) {
		return []TestListRow{}, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func hasCategory(t model.Test, id uint) bool {
	for _, c := range t.Categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (m *MemoryCatalog) GetTest(id string) (*model.Test, error) {
	for _, t := range m.tests {
		if t.ID == id {
			out := t
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MemoryCatalog) GetTestQuestions(testID string) ([]model.Question, error) {
	ids, ok := m.testQs[testID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneQuestion(m.questions[id]))
	}
	return out, nil
}

func (m *MemoryCatalog) GetQuestion(id string) (*model.Question, error) {
	q, ok := m.questions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	q = cloneQuestion(q)
	return &q, nil
}

func (m *MemoryCatalog) ListQuestions(f QuestionFilter) ([]model.Question, int64, error) {
	page, limit := normalizePage(f.Page, f.Limit)
	search := strings.ToLower(strings.TrimSpace(f.Search))

	var matched []model.Question
	for _, id := range m.qOrder {
		q := m.questions[id]
		if f.CategoryID > 0 && (q.CategoryID == nil || *q.CategoryID != f.CategoryID) {
			continue
		}
		if f.Type != "" && q.Type != f.Type {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(q.Text), search) {
			continue
		}
		matched = append(matched, q)
	}
	total := int64(len(matched))
	start := (page - 1) * limit
	if start >= len(matched) {
		return []model.Question{}, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (m *MemoryCatalog) ListCategories() ([]model.Category, error) {
	out := append([]model.Category(nil), m.categories...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryCatalog) GetCategory(id uint) (*model.Category, error) {
	for _, c := range m.categories {
		if c.ID == id {
			out := c
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// Seed 把内置题库写入空库，已有数据时跳过
func (m *MemoryCatalog) Seed(db *gorm.DB) error {
	var n int64
	if err := db.Model(&model.Test{}).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return db.Transaction(func(tx *gorm.DB) error {
		ids := make(map[uint]uint, len(m.categories))
		for _, fc := range m.categories {
			c := model.Category{Name: fc.Name, Slug: fc.Slug, Description: fc.Description}
			if err := tx.Where("slug = ?", c.Slug).FirstOrCreate(&c).Error; err != nil {
				return err
			}
			ids[fc.ID] = c.ID
		}
		for _, id := range m.qOrder {
			q := cloneQuestion(m.questions[id])
			if q.CategoryID != nil {
				cid := ids[*q.CategoryID]
				q.CategoryID = &cid
			}
			if err := tx.Create(&q).Error; err != nil {
				return err
			}
		}
		for _, ft := range m.tests {
			t := ft
			t.Categories = nil
			for _, c := range ft.Categories {
				var cat model.Category
				if err := tx.First(&cat, ids[c.ID]).Error; err != nil {
					return err
				}
				t.Categories = append(t.Categories, cat)
			}
			if err := tx.Create(&t).Error; err != nil {
				return err
			}
			if err := replaceTestQuestions(tx, t.ID, m.testQs[t.ID]); err != nil {
				return err
			}
		}
		return nil
	})
}

func cloneQuestion(q model.Question) model.Question {
	q.Answers = append([]model.Answer(nil), q.Answers...)
	q.MatchItems = append([]model.MatchItem(nil), q.MatchItems...)
	q.SequenceItems = append([]model.SequenceItem(nil), q.SequenceItems...)
	q.DragDropItems = append([]model.DragDropItem(nil), q.DragDropItems...)
	return q
}
