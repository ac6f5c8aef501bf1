package service

import (
	"errors"
	"fmt"
	"time"

	"exam_practice_backend/internal/config"
	"exam_practice_backend/internal/model"
	"exam_practice_backend/internal/repository"
	"exam_practice_backend/internal/util"
	"exam_practice_backend/pkg/logger"
	"exam_practice_backend/pkg/monitoring"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MidtransNotification Midtrans 异步通知
// swagger:model MidtransNotification
type MidtransNotification struct {
	TransactionStatus string `json:"transaction_status"`
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	OrderID           string `json:"order_id" binding:"required"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status"`
	TransactionID     string `json:"transaction_id"`
}

type PurchaseService struct {
	PurchaseRepo repository.PurchaseStore
	Catalog      repository.TestReader
	UserRepo     repository.UserStore
	Gateway      PaymentGateway
	Cfg          *config.Config

	now func() time.Time
}

func NewPurchaseService(purchaseRepo repository.PurchaseStore, catalog repository.TestReader,
	userRepo repository.UserStore, gateway PaymentGateway, cfg *config.Config) *PurchaseService {
	return &PurchaseService{
		PurchaseRepo: purchaseRepo,
		Catalog:      catalog,
		UserRepo:     userRepo,
		Gateway:      gateway,
		Cfg:          cfg,
		now:          time.Now,
	}
}

// Checkout 免费试卷直接开通；付费试卷创建待支付订单，重复下单返回已有订单
func (s *PurchaseService) Checkout(userID uint, testID string) (*model.UserTestPurchase, error) {
	test, err := s.Catalog.GetTest(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTestNotFound
		}
		return nil, err
	}
	if !test.IsActive {
		return nil, util.ErrTestInactive
	}

	existing, err := s.PurchaseRepo.FindOpen(userID, testID)
	if err == nil {
		if existing.Status == model.PurchasePaid || !s.pendingExpired(existing) {
			return existing, nil
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := s.now()
	purchase := &model.UserTestPurchase{
		UserID:   userID,
		TestID:   testID,
		Amount:   test.Price,
		Currency: s.Cfg.Payment.Currency,
		OrderID:  "EXAM-" + uuid.New().String(),
	}

	if test.IsFree() {
		purchase.Status = model.PurchasePaid
		purchase.Provider = model.ProviderFree
		purchase.PaidAt = &now
		if err := s.PurchaseRepo.Create(purchase); err != nil {
			return nil, err
		}
		monitoring.PurchasesCreated.WithLabelValues(string(purchase.Status)).Inc()
		return purchase, nil
	}

	if s.Gateway == nil {
		return nil, util.ErrPaymentDisabled
	}
	purchase.Status = model.PurchasePending
	purchase.Provider = model.ProviderMidtrans
	if err := s.PurchaseRepo.Create(purchase); err != nil {
		return nil, err
	}

	charge := ChargeRequest{
		OrderID:  purchase.OrderID,
		Amount:   test.Price,
		ItemID:   test.ID,
		ItemName: test.Title,
	}
	if user, err := s.UserRepo.FindByID(userID); err == nil {
		charge.Email = user.Email
		if user.Profile != nil {
			charge.FullName = user.Profile.FullName
		}
	}

	result, err := s.Gateway.CreateTransaction(charge)
	if err != nil {
		purchase.Status = model.PurchaseFailed
		if uerr := s.PurchaseRepo.Update(purchase); uerr != nil {
			logger.Log.Error("Failed to mark purchase failed", zap.String("order_id", purchase.OrderID), zap.Error(uerr))
		}
		monitoring.PurchasesCreated.WithLabelValues(string(purchase.Status)).Inc()
		return nil, fmt.Errorf("create payment transaction: %w", err)
	}

	purchase.SnapToken = result.Token
	purchase.RedirectURL = result.RedirectURL
	if err := s.PurchaseRepo.Update(purchase); err != nil {
		return nil, err
	}
	monitoring.PurchasesCreated.WithLabelValues(string(purchase.Status)).Inc()
	return purchase, nil
}

func (s *PurchaseService) pendingExpired(p *model.UserTestPurchase) bool {
	return p.Status == model.PurchasePending && p.CreatedAt.Before(s.now().Add(-s.pendingTTL()))
}

func (s *PurchaseService) pendingTTL() time.Duration {
	hours := s.Cfg.Payment.PendingTTLHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// HandleNotification 校验签名后更新订单状态，已支付的订单不会被回退
func (s *PurchaseService) HandleNotification(n MidtransNotification) (*model.UserTestPurchase, error) {
	if s.Gateway == nil {
		return nil, util.ErrPaymentDisabled
	}
	if !s.Gateway.VerifySignature(n.OrderID, n.StatusCode, n.GrossAmount, n.SignatureKey) {
		return nil, util.ErrInvalidSignature
	}

	purchase, err := s.PurchaseRepo.FindByOrderID(n.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrPurchaseNotFound
		}
		return nil, err
	}

	next := mapMidtransStatus(n.TransactionStatus, n.FraudStatus)
	if next == "" || next == purchase.Status || purchase.Status == model.PurchasePaid {
		return purchase, nil
	}

	purchase.Status = next
	if next == model.PurchasePaid {
		now := s.now()
		purchase.PaidAt = &now
	}
	if err := s.PurchaseRepo.Update(purchase); err != nil {
		return nil, err
	}
	logger.Log.Info("Purchase status updated",
		zap.String("order_id", purchase.OrderID),
		zap.String("status", string(purchase.Status)),
		zap.String("transaction_status", n.TransactionStatus),
	)
	return purchase, nil
}

// mapMidtransStatus 返回空字符串表示状态不变
func mapMidtransStatus(transactionStatus, fraudStatus string) model.PurchaseStatus {
	switch transactionStatus {
	case "settlement":
		return model.PurchasePaid
	case "capture":
		if fraudStatus == "" || fraudStatus == "accept" {
			return model.PurchasePaid
		}
		return ""
	case "deny", "cancel", "failure":
		return model.PurchaseFailed
	case "expire":
		return model.PurchaseExpired
	case "pending":
		return model.PurchasePending
	}
	return ""
}

// HasAccess 免费试卷、已购买或管理员可作答
func (s *PurchaseService) HasAccess(userID uint, isAdmin bool, test *model.Test) (bool, error) {
	if isAdmin || test.IsFree() {
		return true, nil
	}
	return s.PurchaseRepo.HasPaid(userID, test.ID)
}

func (s *PurchaseService) ListMine(userID uint) ([]model.UserTestPurchase, error) {
	return s.PurchaseRepo.ListByUser(userID)
}

// ExpirePending 超时未支付的订单置为过期
func (s *PurchaseService) ExpirePending() (int64, error) {
	return s.PurchaseRepo.ExpirePending(s.now().Add(-s.pendingTTL()))
}
