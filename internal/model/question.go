package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"exam_practice_backend/internal/exam"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrInvalidQuestion = errors.New("invalid question")

// swagger:model Question
type Question struct {
	UUIDBase
	Text          string            `gorm:"type:text;not null" json:"text"`
	Type          exam.QuestionType `gorm:"size:30;index;not null" json:"type"`
	MediaURL      string            `gorm:"size:500" json:"mediaUrl"`
	Explanation   string            `gorm:"type:text" json:"explanation"`
	CategoryID    *uint             `gorm:"index" json:"categoryId,omitempty"`
	Answers       []Answer          `gorm:"foreignKey:QuestionID" json:"answers,omitempty"`
	MatchItems    []MatchItem       `gorm:"foreignKey:QuestionID" json:"matchItems,omitempty"`
	SequenceItems []SequenceItem    `gorm:"foreignKey:QuestionID" json:"sequenceItems,omitempty"`
	DragDropItems []DragDropItem    `gorm:"foreignKey:QuestionID" json:"dragDropItems,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// Answer 单选/多选/判断题的选项
type Answer struct {
	UUIDBase
	QuestionID string `gorm:"index;type:varchar(36);not null" json:"questionId"`
	Text       string `gorm:"type:text;not null" json:"text"`
	IsCorrect  bool   `gorm:"default:false" json:"isCorrect"`
	Position   int    `gorm:"default:0" json:"position"`
}

func (Answer) TableName() string {
	return "answers"
}

// MatchItem 一对配对。左侧用 ID 标识，右侧用独立的 RightID，答题端无法从左侧推出右侧
type MatchItem struct {
	UUIDBase
	QuestionID string `gorm:"index;type:varchar(36);not null" json:"questionId"`
	RightID    string `gorm:"type:varchar(36);not null;default:''" json:"rightId"`
	LeftText   string `gorm:"type:text;not null" json:"leftText"`
	RightText  string `gorm:"type:text;not null" json:"rightText"`
	Position   int    `gorm:"default:0" json:"position"`
}

func (MatchItem) TableName() string {
	return "match_items"
}

func (m *MatchItem) BeforeCreate(tx *gorm.DB) error {
	if err := m.UUIDBase.BeforeCreate(tx); err != nil {
		return err
	}
	if m.RightID == "" {
		m.RightID = uuid.New().String()
	}
	return nil
}

type SequenceItem struct {
	UUIDBase
	QuestionID      string `gorm:"index;type:varchar(36);not null" json:"questionId"`
	Text            string `gorm:"type:text;not null" json:"text"`
	CorrectPosition int    `gorm:"not null" json:"correctPosition"`
}

func (SequenceItem) TableName() string {
	return "sequence_items"
}

type DragDropItem struct {
	UUIDBase
	QuestionID string `gorm:"index;type:varchar(36);not null" json:"questionId"`
	Content    string `gorm:"type:text;not null" json:"content"`
	TargetZone string `gorm:"size:100;not null" json:"targetZone"`
	Position   int    `gorm:"default:0" json:"position"`
}

func (DragDropItem) TableName() string {
	return "drag_drop_items"
}

// Validate 题目只能带与题型对应的选项表
func (q *Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: text is required", ErrInvalidQuestion)
	}
	if !q.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidQuestion, q.Type)
	}

	variants := map[string]int{
		"answers":       len(q.Answers),
		"matchItems":    len(q.MatchItems),
		"sequenceItems": len(q.SequenceItems),
		"dragDropItems": len(q.DragDropItems),
	}
	own := variantField(q.Type)
	for field, n := range variants {
		if field != own && n > 0 {
			return fmt.Errorf("%w: %s question cannot carry %s", ErrInvalidQuestion, q.Type, field)
		}
	}
	if variants[own] == 0 {
		return fmt.Errorf("%w: %s question needs %s", ErrInvalidQuestion, q.Type, own)
	}

	switch q.Type {
	case exam.SingleChoice, exam.TrueFalse:
		if q.Type == exam.TrueFalse && len(q.Answers) != 2 {
			return fmt.Errorf("%w: true/false question needs exactly 2 answers", ErrInvalidQuestion)
		}
		if n := q.correctCount(); n != 1 {
			return fmt.Errorf("%w: %s question needs exactly 1 correct answer, got %d", ErrInvalidQuestion, q.Type, n)
		}
	case exam.MultipleChoice:
		if q.correctCount() == 0 {
			return fmt.Errorf("%w: multiple choice question needs a correct answer", ErrInvalidQuestion)
		}
	case exam.Sequence:
		seen := make(map[int]bool, len(q.SequenceItems))
		for _, it := range q.SequenceItems {
			if seen[it.CorrectPosition] {
				return fmt.Errorf("%w: duplicate sequence position %d", ErrInvalidQuestion, it.CorrectPosition)
			}
			seen[it.CorrectPosition] = true
		}
	case exam.Matching:
		for _, it := range q.MatchItems {
			if it.ID != "" && it.ID == it.RightID {
				return fmt.Errorf("%w: match item %s reuses its id on the right side", ErrInvalidQuestion, it.ID)
			}
		}
	case exam.DragDrop:
		for _, it := range q.DragDropItems {
			if strings.TrimSpace(it.TargetZone) == "" {
				return fmt.Errorf("%w: drag-drop item needs a target zone", ErrInvalidQuestion)
			}
		}
	}
	return nil
}

func variantField(t exam.QuestionType) string {
	switch t {
	case exam.Matching:
		return "matchItems"
	case exam.Sequence:
		return "sequenceItems"
	case exam.DragDrop:
		return "dragDropItems"
	}
	return "answers"
}

func (q *Question) correctCount() int {
	n := 0
	for _, a := range q.Answers {
		if a.IsCorrect {
			n++
		}
	}
	return n
}

// ExamQuestion 转成判分用的题目与标准答案
func (q *Question) ExamQuestion() exam.Question {
	eq := exam.Question{ID: q.ID, Type: q.Type}
	switch q.Type {
	case exam.Matching:
		pairs := make(map[string]string, len(q.MatchItems))
		for _, it := range q.MatchItems {
			pairs[it.ID] = it.RightID
		}
		eq.Key = exam.MatchingKey{Pairs: pairs}
	case exam.Sequence:
		items := append([]SequenceItem(nil), q.SequenceItems...)
		sort.SliceStable(items, func(i, j int) bool { return items[i].CorrectPosition < items[j].CorrectPosition })
		order := make([]string, 0, len(items))
		for _, it := range items {
			order = append(order, it.ID)
		}
		eq.Key = exam.SequenceKey{Order: order}
	case exam.DragDrop:
		zones := make(map[string]string, len(q.DragDropItems))
		for _, it := range q.DragDropItems {
			zones[it.ID] = it.TargetZone
		}
		eq.Key = exam.DragDropKey{Zones: zones}
	default:
		var ids []string
		for _, a := range q.Answers {
			if a.IsCorrect {
				ids = append(ids, a.ID)
			}
		}
		eq.Key = exam.ChoiceKey{CorrectIDs: ids}
	}
	return eq
}

// SortVariants 按 position 排序各选项表
func (q *Question) SortVariants() {
	sort.SliceStable(q.Answers, func(i, j int) bool { return q.Answers[i].Position < q.Answers[j].Position })
	sort.SliceStable(q.MatchItems, func(i, j int) bool { return q.MatchItems[i].Position < q.MatchItems[j].Position })
	sort.SliceStable(q.DragDropItems, func(i, j int) bool { return q.DragDropItems[i].Position < q.DragDropItems[j].Position })
}
