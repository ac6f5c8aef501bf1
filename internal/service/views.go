package service

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sort"
	"time"

	"exam_practice_backend/internal/exam"
	"exam_practice_backend/internal/model"

	"github.com/jinzhu/copier"
	"github.com/shopspring/decimal"
)

// TestSummary 试卷列表项
// swagger:model TestSummary
type TestSummary struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	TimeLimit     int              `json:"timeLimit"`
	IsActive      bool             `json:"isActive"`
	Price         decimal.Decimal  `json:"price"`
	IsFree        bool             `json:"isFree"`
	QuestionCount int              `json:"questionCount"`
	Purchased     bool             `json:"purchased"`
	Categories    []model.Category `json:"categories"`
}

// TestDetail 试卷详情，题目不含答案
// swagger:model TestDetail
type TestDetail struct {
	TestSummary
	Questions []QuestionView `json:"questions"`
}

type OptionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionView 答题端看到的题目
// swagger:model QuestionView
type QuestionView struct {
	ID         string            `json:"id"`
	Type       exam.QuestionType `json:"type"`
	Text       string            `json:"text"`
	MediaURL   string            `json:"mediaUrl,omitempty"`
	CategoryID *uint             `json:"categoryId,omitempty"`
	Options    []OptionView      `json:"options,omitempty"`
	Left       []OptionView      `json:"left,omitempty"`
	Right      []OptionView      `json:"right,omitempty"`
	Items      []OptionView      `json:"items,omitempty"`
	Zones      []string          `json:"zones,omitempty"`
}

func newTestSummary(t *model.Test, questionCount int, purchased bool) (TestSummary, error) {
	var s TestSummary
	if err := copier.Copy(&s, t); err != nil {
		return TestSummary{}, fmt.Errorf("copy test summary: %w", err)
	}
	s.IsFree = t.IsFree()
	s.QuestionCount = questionCount
	s.Purchased = purchased
	if s.Categories == nil {
		s.Categories = []model.Category{}
	}
	return s, nil
}

// newQuestionView 去掉正确答案；配对右侧与排序题条目总是打乱，shuffle 为 false 时顺序固定
func newQuestionView(q *model.Question, shuffle bool) QuestionView {
	v := QuestionView{
		ID:         q.ID,
		Type:       q.Type,
		Text:       q.Text,
		MediaURL:   q.MediaURL,
		CategoryID: q.CategoryID,
	}
	switch q.Type {
	case exam.Matching:
		for _, it := range q.MatchItems {
			v.Left = append(v.Left, OptionView{ID: it.ID, Text: it.LeftText})
			v.Right = append(v.Right, OptionView{ID: it.RightID, Text: it.RightText})
		}
		if shuffle {
			shuffleOptions(v.Right)
		} else {
			stableShuffle(v.Right, q.ID)
		}
	case exam.Sequence:
		for _, it := range q.SequenceItems {
			v.Items = append(v.Items, OptionView{ID: it.ID, Text: it.Text})
		}
		if shuffle {
			shuffleOptions(v.Items)
		} else {
			stableShuffle(v.Items, q.ID)
		}
	case exam.DragDrop:
		seen := make(map[string]bool)
		for _, it := range q.DragDropItems {
			v.Items = append(v.Items, OptionView{ID: it.ID, Text: it.Content})
			if !seen[it.TargetZone] {
				seen[it.TargetZone] = true
				v.Zones = append(v.Zones, it.TargetZone)
			}
		}
		sort.Strings(v.Zones)
	default:
		for _, a := range q.Answers {
			v.Options = append(v.Options, OptionView{ID: a.ID, Text: a.Text})
		}
	}
	return v
}

// stableShuffle 以题目ID为种子打乱，刷新后顺序不变
func stableShuffle(opts []OptionView, seed string) {
	h := fnv.New64a()
	h.Write([]byte(seed))
	r := rand.New(rand.NewPCG(h.Sum64(), 0))
	r.Shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })
}

func shuffleOptions(opts []OptionView) {
	rand.Shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })
}

// AnswerView 会话中的单题作答状态
type AnswerView struct {
	QuestionID       string        `json:"questionId"`
	Response         exam.Response `json:"response,omitempty"`
	TimeSpentSeconds int           `json:"timeSpentSeconds"`
	Flagged          bool          `json:"flagged"`
}

// SessionView 答题中的会话
// swagger:model SessionView
type SessionView struct {
	ID               string              `json:"id"`
	TestID           string              `json:"testId"`
	TestTitle        string              `json:"testTitle"`
	Status           model.SessionStatus `json:"status"`
	CurrentIndex     int                 `json:"currentIndex"`
	StartedAt        time.Time           `json:"startedAt"`
	Deadline         time.Time           `json:"deadline"`
	RemainingSeconds int                 `json:"remainingSeconds"`
	Questions        []QuestionView      `json:"questions"`
	Answers          []AnswerView        `json:"answers"`
	Unanswered       []int               `json:"unanswered"`
}

// ReviewItem 交卷后的逐题回顾，包含正确答案与解析
type ReviewItem struct {
	Question         model.Question `json:"question"`
	Response         exam.Response  `json:"response,omitempty"`
	Answered         bool           `json:"answered"`
	IsCorrect        bool           `json:"isCorrect"`
	Flagged          bool           `json:"flagged"`
	TimeSpentSeconds int            `json:"timeSpentSeconds"`
}

// SessionReview 交卷结果
// swagger:model SessionReview
type SessionReview struct {
	SessionID       string                `json:"sessionId"`
	TestID          string                `json:"testId"`
	TestTitle       string                `json:"testTitle"`
	Status          model.SessionStatus   `json:"status"`
	Reason          exam.CompletionReason `json:"reason"`
	Score           int                   `json:"score"`
	Total           int                   `json:"total"`
	Percentage      int                   `json:"percentage"`
	Passed          bool                  `json:"passed"`
	StartedAt       time.Time             `json:"startedAt"`
	EndedAt         *time.Time            `json:"endedAt"`
	DurationSeconds int                   `json:"durationSeconds"`
	Items           []ReviewItem          `json:"items"`
}
