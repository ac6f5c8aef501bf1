package exam

import (
	"encoding/json"
	"fmt"
)

type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	Matching       QuestionType = "matching"
	Sequence       QuestionType = "sequence"
	DragDrop       QuestionType = "drag_drop"
)

var AllQuestionTypes = []QuestionType{SingleChoice, MultipleChoice, TrueFalse, Matching, Sequence, DragDrop}

func (t QuestionType) Valid() bool {
	for _, v := range AllQuestionTypes {
		if v == t {
			return true
		}
	}
	return false
}

// IsChoice 单选/多选/判断题共用选项表 answers
func (t QuestionType) IsChoice() bool {
	return t == SingleChoice || t == MultipleChoice || t == TrueFalse
}

// Response 学生作答，每种题型一个变体
type Response interface {
	QuestionType() QuestionType
	isResponse()
}

type SingleChoiceResponse struct {
	SelectedID string `json:"selectedId"`
}

type MultipleChoiceResponse struct {
	SelectedIDs []string `json:"selectedIds"`
}

type TrueFalseResponse struct {
	SelectedID string `json:"selectedId"`
}

// MatchingResponse 左侧条目ID -> 右侧条目ID
type MatchingResponse struct {
	Pairs map[string]string `json:"pairs"`
}

type SequenceResponse struct {
	Order []string `json:"order"`
}

// DragDropResponse 拖拽条目ID -> 目标区域
type DragDropResponse struct {
	Placements map[string]string `json:"placements"`
}

func (SingleChoiceResponse) QuestionType() QuestionType   { return SingleChoice }
func (MultipleChoiceResponse) QuestionType() QuestionType { return MultipleChoice }
func (TrueFalseResponse) QuestionType() QuestionType      { return TrueFalse }
func (MatchingResponse) QuestionType() QuestionType       { return Matching }
func (SequenceResponse) QuestionType() QuestionType       { return Sequence }
func (DragDropResponse) QuestionType() QuestionType       { return DragDrop }

func (SingleChoiceResponse) isResponse()   {}
func (MultipleChoiceResponse) isResponse() {}
func (TrueFalseResponse) isResponse()      {}
func (MatchingResponse) isResponse()       {}
func (SequenceResponse) isResponse()       {}
func (DragDropResponse) isResponse()       {}

type envelope struct {
	Type    QuestionType    `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalResponse 编码为 {"type": ..., "payload": ...}
func MarshalResponse(r Response) ([]byte, error) {
	if r == nil {
		return nil, ErrEmptyResponse
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: r.QuestionType(), Payload: payload})
}

func UnmarshalResponse(data []byte) (Response, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode response envelope: %w", err)
	}
	return DecodeResponse(env.Type, env.Payload)
}

// DecodeResponse 按题型解析作答载荷
func DecodeResponse(t QuestionType, payload []byte) (Response, error) {
	if len(payload) == 0 || string(payload) == "null" {
		return nil, ErrEmptyResponse
	}

	var (
		r   Response
		err error
	)
	switch t {
	case SingleChoice:
		var v SingleChoiceResponse
		err = json.Unmarshal(payload, &v)
		r = v
	case MultipleChoice:
		var v MultipleChoiceResponse
		err = json.Unmarshal(payload, &v)
		r = v
	case TrueFalse:
		var v TrueFalseResponse
		err = json.Unmarshal(payload, &v)
		r = v
	case Matching:
		var v MatchingResponse
		err = json.Unmarshal(payload, &v)
		r = v
	case Sequence:
		var v SequenceResponse
		err = json.Unmarshal(payload, &v)
		r = v
	case DragDrop:
		var v DragDropResponse
		err = json.Unmarshal(payload, &v)
		r = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownQuestionType, t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s response: %w", t, err)
	}
	return r, nil
}
