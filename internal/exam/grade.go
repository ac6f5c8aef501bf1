package exam

import "fmt"

// AnswerKey 标准答案，与 Response 一一对应
type AnswerKey interface {
	isAnswerKey()
}

// ChoiceKey 单选/多选/判断题的正确选项ID集合
type ChoiceKey struct {
	CorrectIDs []string
}

// MatchingKey 左侧条目ID -> 正确的右侧条目ID
type MatchingKey struct {
	Pairs map[string]string
}

// SequenceKey 正确顺序
type SequenceKey struct {
	Order []string
}

// DragDropKey 条目ID -> 目标区域
type DragDropKey struct {
	Zones map[string]string
}

func (ChoiceKey) isAnswerKey()   {}
func (MatchingKey) isAnswerKey() {}
func (SequenceKey) isAnswerKey() {}
func (DragDropKey) isAnswerKey() {}

type Question struct {
	ID   string
	Type QuestionType
	Key  AnswerKey
}

// Grade 判定作答是否正确，六种题型全部自动评分
func Grade(q Question, r Response) (bool, error) {
	if r == nil {
		return false, ErrEmptyResponse
	}
	if r.QuestionType() != q.Type {
		return false, fmt.Errorf("%w: question %s is %s, got %s", ErrResponseMismatch, q.ID, q.Type, r.QuestionType())
	}

	switch resp := r.(type) {
	case SingleChoiceResponse:
		return gradeSingle(q, resp.SelectedID)
	case TrueFalseResponse:
		return gradeSingle(q, resp.SelectedID)
	case MultipleChoiceResponse:
		key, ok := q.Key.(ChoiceKey)
		if !ok {
			return false, keyMismatch(q)
		}
		return sameSet(resp.SelectedIDs, key.CorrectIDs), nil
	case MatchingResponse:
		key, ok := q.Key.(MatchingKey)
		if !ok {
			return false, keyMismatch(q)
		}
		return sameMapping(resp.Pairs, key.Pairs), nil
	case SequenceResponse:
		key, ok := q.Key.(SequenceKey)
		if !ok {
			return false, keyMismatch(q)
		}
		if len(resp.Order) != len(key.Order) {
			return false, nil
		}
		for i := range key.Order {
			if resp.Order[i] != key.Order[i] {
				return false, nil
			}
		}
		return true, nil
	case DragDropResponse:
		key, ok := q.Key.(DragDropKey)
		if !ok {
			return false, keyMismatch(q)
		}
		return sameMapping(resp.Placements, key.Zones), nil
	}
	return false, fmt.Errorf("%w: %T", ErrUnknownQuestionType, r)
}

// 单选/判断：必须恰好选中唯一的正确选项
func gradeSingle(q Question, selected string) (bool, error) {
	key, ok := q.Key.(ChoiceKey)
	if !ok {
		return false, keyMismatch(q)
	}
	if len(key.CorrectIDs) != 1 || selected == "" {
		return false, nil
	}
	return selected == key.CorrectIDs[0], nil
}

// sameSet 成员与数量都相等，顺序无关，重复项按集合去重
func sameSet(selected, correct []string) bool {
	want := make(map[string]struct{}, len(correct))
	for _, id := range correct {
		want[id] = struct{}{}
	}
	got := make(map[string]struct{}, len(selected))
	for _, id := range selected {
		got[id] = struct{}{}
	}
	if len(got) != len(want) {
		return false
	}
	for id := range got {
		if _, ok := want[id]; !ok {
			return false
		}
	}
	return true
}

func sameMapping(got, want map[string]string) bool {
	if len(got) != len(want) {
		return false
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func keyMismatch(q Question) error {
	return fmt.Errorf("answer key %T does not fit %s question %s", q.Key, q.Type, q.ID)
}
