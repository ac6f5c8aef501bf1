package exam

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition   = errors.New("invalid exam state transition")
	ErrQuestionOutOfRange  = errors.New("question index out of range")
	ErrUnknownQuestion     = errors.New("unknown question")
	ErrUnknownQuestionType = errors.New("unknown question type")
	ErrResponseMismatch    = errors.New("response does not match question type")
	ErrEmptyResponse       = errors.New("empty response")
	ErrNoQuestions         = errors.New("test has no questions")
)

// UnansweredError 交卷时仍有未作答题目且未确认
type UnansweredError struct {
	Indexes []int
}

func (e *UnansweredError) Error() string {
	return fmt.Sprintf("%d question(s) unanswered", len(e.Indexes))
}

func (e *UnansweredError) Is(target error) bool {
	return target == ErrUnansweredQuestions
}

var ErrUnansweredQuestions = errors.New("unanswered questions")
