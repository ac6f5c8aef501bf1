package service

import (
	"math"
	"time"

	"exam_practice_backend/internal/config"
	"exam_practice_backend/internal/model"
	"exam_practice_backend/internal/repository"
	"exam_practice_backend/internal/util"
)

const (
	defaultTrendDays = 30
	maxTrendDays     = 365
	// 前后两半平均分相差超过该值才算上升或下降
	trendThreshold = 5.0
)

const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"
)

type DashboardService struct {
	DashboardRepo repository.DashboardStore
	Cfg           *config.Config

	now func() time.Time
}

func NewDashboardService(dashboardRepo repository.DashboardStore, cfg *config.Config) *DashboardService {
	return &DashboardService{
		DashboardRepo: dashboardRepo,
		Cfg:           cfg,
		now:           time.Now,
	}
}

// GetAnalytics 仪表盘总览
func (s *DashboardService) GetAnalytics(userID uint) (*model.DashboardAnalytics, error) {
	taken, err := s.DashboardRepo.CountSessions(userID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.DashboardRepo.FinishedSessions(userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.DashboardRepo.CategoryBreakdown(userID)
	if err != nil {
		return nil, err
	}

	a := &model.DashboardAnalytics{
		TestsTaken:     int(taken),
		TestsCompleted: len(sessions),
		Categories:     make([]model.CategoryPerformance, 0, len(rows)),
	}

	sum, passed := 0, 0
	for _, sess := range sessions {
		sum += sess.Percentage
		if sess.Percentage > a.BestPercentage {
			a.BestPercentage = sess.Percentage
		}
		if float64(sess.Percentage) >= s.Cfg.Exam.PassPercentage {
			passed++
		}
		if sess.EndedAt != nil {
			a.TotalTimeSeconds += int(sess.EndedAt.Sub(sess.StartedAt) / time.Second)
		}
	}
	if len(sessions) > 0 {
		a.AveragePercentage = round1(float64(sum) / float64(len(sessions)))
		a.PassRate = round1(100 * float64(passed) / float64(len(sessions)))
	}

	for _, r := range rows {
		p := model.CategoryPerformance{
			CategoryID:   r.CategoryID,
			CategoryName: r.CategoryName,
			Correct:      r.Correct,
			Total:        r.Total,
		}
		if r.Total > 0 {
			p.Percentage = round1(100 * float64(r.Correct) / float64(r.Total))
		}
		a.Categories = append(a.Categories, p)
	}
	return a, nil
}

// GetPerformance 最近 days 天每日平均分，没有记录的日期补 0
func (s *DashboardService) GetPerformance(userID uint, days int) (*model.PerformanceTrend, error) {
	if days <= 0 {
		days = defaultTrendDays
	}
	if days > maxTrendDays {
		days = maxTrendDays
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	since := today.AddDate(0, 0, -(days - 1))

	sessions, err := s.DashboardRepo.FinishedSince(userID, since)
	if err != nil {
		return nil, err
	}

	type bucket struct{ count, sum int }
	buckets := make(map[string]*bucket)
	for _, sess := range sessions {
		if sess.EndedAt == nil {
			continue
		}
		key := sess.EndedAt.UTC().Format(util.DateFormat)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.count++
		b.sum += sess.Percentage
	}

	trend := &model.PerformanceTrend{
		Days:   days,
		Points: make([]model.PerformancePoint, 0, days),
	}
	for d := since; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format(util.DateFormat)
		p := model.PerformancePoint{Date: key}
		if b, ok := buckets[key]; ok {
			p.Sessions = b.count
			p.AveragePercentage = round1(float64(b.sum) / float64(b.count))
		}
		trend.Points = append(trend.Points, p)
	}
	trend.Trend = classifyTrend(trend.Points)
	return trend, nil
}

// classifyTrend 比较有记录日期的前半段与后半段平均分
func classifyTrend(points []model.PerformancePoint) string {
	var active []float64
	for _, p := range points {
		if p.Sessions > 0 {
			active = append(active, p.AveragePercentage)
		}
	}
	if len(active) < 2 {
		return TrendStable
	}
	mid := len(active) / 2
	diff := mean(active[len(active)-mid:]) - mean(active[:mid])
	switch {
	case diff > trendThreshold:
		return TrendImproving
	case diff < -trendThreshold:
		return TrendDeclining
	}
	return TrendStable
}

func (s *DashboardService) GetHistory(userID uint, page, limit int) ([]model.HistoryEntry, int64, error) {
	return s.DashboardRepo.History(userID, page, limit)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
