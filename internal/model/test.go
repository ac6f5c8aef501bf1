package model

import (
	"github.com/shopspring/decimal"
)

// swagger:model Test
type Test struct {
	UUIDBase
	Title       string          `gorm:"size:255;not null" json:"title"`
	Description string          `gorm:"type:text" json:"description"`
	TimeLimit   int             `gorm:"not null" json:"timeLimit"` // Seconds
	IsActive    bool            `gorm:"default:true" json:"isActive"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"price"`
	Categories  []Category      `gorm:"many2many:test_categories;" json:"categories,omitempty"`
	Questions   []Question      `gorm:"-" json:"questions,omitempty"`
}

func (Test) TableName() string {
	return "tests"
}

func (t *Test) IsFree() bool {
	return !t.Price.IsPositive()
}

// TestQuestion 试卷与题目的有序关联
type TestQuestion struct {
	TestID     string `gorm:"primaryKey;type:varchar(36)" json:"testId"`
	QuestionID string `gorm:"primaryKey;type:varchar(36)" json:"questionId"`
	Position   int    `gorm:"not null;default:0" json:"position"`
}

func (TestQuestion) TableName() string {
	return "test_questions"
}
