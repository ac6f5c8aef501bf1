package exam

import "time"

type QuestionResult struct {
	QuestionID string `json:"questionId"`
	Answered   bool   `json:"answered"`
	IsCorrect  bool   `json:"isCorrect"`
	Flagged    bool   `json:"flagged"`
	TimeSpent  int    `json:"timeSpentSeconds"`
}

// Summary 交卷结果
type Summary struct {
	Total      int              `json:"total"`
	Correct    int              `json:"correct"`
	Answered   int              `json:"answered"`
	Flagged    int              `json:"flagged"`
	Percentage int              `json:"percentage"`
	Reason     CompletionReason `json:"reason"`
	Duration   time.Duration    `json:"-"`
	Results    []QuestionResult `json:"results"`
}

func (s Summary) DurationSeconds() int {
	return int(s.Duration / time.Second)
}
