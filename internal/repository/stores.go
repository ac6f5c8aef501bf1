package repository

import (
	"time"

	"exam_practice_backend/internal/model"
)

type UserStore interface {
	Create(user *model.User, profile *model.Profile) error
	FindByID(id uint) (*model.User, error)
	FindByEmail(email string) (*model.User, error)
	UpdateLastSignIn(userID uint, at time.Time) error
	GetProfile(userID uint) (*model.Profile, error)
	UpdateProfile(p *model.Profile) error
	SetRole(userID uint, role model.UserRole) error
}

type MagicLinkStore interface {
	Create(t *model.MagicLinkToken) error
	FindByHash(hash string) (*model.MagicLinkToken, error)
	// MarkUsed 只有第一次调用返回 true
	MarkUsed(id uint, at time.Time) (bool, error)
	DeleteExpired(before time.Time) (int64, error)
}

type SessionStore interface {
	Create(s *model.TestSession) error
	FindByID(id string) (*model.TestSession, error)
	FindInProgress(userID uint, testID string) (*model.TestSession, error)
	Update(s *model.TestSession) error
	ListAnswers(sessionID string) ([]model.UserAnswer, error)
	SaveAnswer(a *model.UserAnswer) error
	// Complete 在一个事务里写入最终得分与全部作答
	Complete(s *model.TestSession, answers []model.UserAnswer) error
	FindOverdue(now time.Time, limit int) ([]model.TestSession, error)
}

type PurchaseStore interface {
	Create(p *model.UserTestPurchase) error
	FindByOrderID(orderID string) (*model.UserTestPurchase, error)
	FindOpen(userID uint, testID string) (*model.UserTestPurchase, error)
	HasPaid(userID uint, testID string) (bool, error)
	PaidTestIDs(userID uint, testIDs []string) (map[string]bool, error)
	ListByUser(userID uint) ([]model.UserTestPurchase, error)
	Update(p *model.UserTestPurchase) error
	ExpirePending(before time.Time) (int64, error)
}

type DashboardStore interface {
	FinishedSessions(userID uint) ([]model.TestSession, error)
	CountSessions(userID uint) (int64, error)
	CategoryBreakdown(userID uint) ([]model.SessionCategoryRow, error)
	FinishedSince(userID uint, since time.Time) ([]model.TestSession, error)
	History(userID uint, page, limit int) ([]model.HistoryEntry, int64, error)
}
