package model

import (
	"time"

	"exam_practice_backend/internal/exam"

	"gorm.io/datatypes"
)

type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionExpired    SessionStatus = "expired"
)

// swagger:model TestSession
type TestSession struct {
	UUIDBase
	TestID       string                `gorm:"index;type:varchar(36);not null" json:"testId"`
	UserID       uint                  `gorm:"index;not null" json:"userId"`
	StartedAt    time.Time             `json:"startedAt"`
	Deadline     time.Time             `gorm:"index" json:"deadline"`
	EnteredAt    time.Time             `json:"-"` // 进入当前题目的时间
	EndedAt      *time.Time            `json:"endedAt,omitempty"`
	Status       SessionStatus         `gorm:"size:20;index;default:'in_progress'" json:"status"`
	CurrentIndex int                   `gorm:"default:0" json:"currentIndex"`
	Reason       exam.CompletionReason `gorm:"size:20" json:"reason,omitempty"`
	Score        int                   `gorm:"default:0" json:"score"`
	Total        int                   `gorm:"default:0" json:"total"`
	Percentage   int                   `gorm:"default:0" json:"percentage"`
}

func (TestSession) TableName() string {
	return "test_sessions"
}

func (s *TestSession) Finished() bool {
	return s.Status == SessionCompleted || s.Status == SessionExpired
}

// Phase 持久化状态对应的状态机阶段
func (s *TestSession) Phase() exam.Phase {
	if s.Finished() {
		return exam.PhaseCompleted
	}
	return exam.PhaseInProgress
}

// UserAnswer 单题作答，Response 为 {"type","payload"} 结构的 JSON
type UserAnswer struct {
	UUIDBase
	SessionID        string         `gorm:"uniqueIndex:idx_session_question;type:varchar(36);not null" json:"sessionId"`
	QuestionID       string         `gorm:"uniqueIndex:idx_session_question;type:varchar(36);not null" json:"questionId"`
	Response         datatypes.JSON `json:"response,omitempty"`
	IsCorrect        bool           `gorm:"default:false" json:"isCorrect"`
	TimeSpentSeconds int            `gorm:"default:0" json:"timeSpentSeconds"`
	Flagged          bool           `gorm:"default:false" json:"flagged"`
}

func (UserAnswer) TableName() string {
	return "user_answers"
}

// Answered 只有标记没有作答的行不算已答
func (a *UserAnswer) Answered() bool {
	return len(a.Response) > 0 && string(a.Response) != "null"
}
