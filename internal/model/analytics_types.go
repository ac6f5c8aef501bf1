package model

import "time"

// CategoryPerformance 分类维度的答题表现
type CategoryPerformance struct {
	CategoryID   uint    `json:"categoryId"`
	CategoryName string  `json:"categoryName"`
	Correct      int     `json:"correct"`
	Total        int     `json:"total"`
	Percentage   float64 `json:"percentage"`
}

// DashboardAnalytics 仪表盘总览
type DashboardAnalytics struct {
	TestsTaken        int                   `json:"testsTaken"`
	TestsCompleted    int                   `json:"testsCompleted"`
	AveragePercentage float64               `json:"averagePercentage"`
	BestPercentage    int                   `json:"bestPercentage"`
	PassRate          float64               `json:"passRate"` // 达到及格线的比例 0-100
	TotalTimeSeconds  int                   `json:"totalTimeSeconds"`
	Categories        []CategoryPerformance `json:"categories"`
}

// PerformancePoint 每日平均得分
type PerformancePoint struct {
	Date              string  `json:"date"` // 2006-01-02
	Sessions          int     `json:"sessions"`
	AveragePercentage float64 `json:"averagePercentage"`
}

// PerformanceTrend 趋势 improving / declining / stable
type PerformanceTrend struct {
	Days   int                `json:"days"`
	Points []PerformancePoint `json:"points"`
	Trend  string             `json:"trend"`
}

// HistoryEntry 历史答题记录
type HistoryEntry struct {
	SessionID       string        `json:"sessionId"`
	TestID          string        `json:"testId"`
	TestTitle       string        `json:"testTitle"`
	Status          SessionStatus `json:"status"`
	Score           int           `json:"score"`
	Total           int           `json:"total"`
	Percentage      int           `json:"percentage"`
	StartedAt       time.Time     `json:"startedAt"`
	EndedAt         *time.Time    `json:"endedAt"`
	DurationSeconds int           `json:"durationSeconds"`
}

// SessionCategoryRow 按会话与分类聚合的原始行
type SessionCategoryRow struct {
	CategoryID   uint
	CategoryName string
	Correct      int
	Total        int
}
