package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PurchaseStatus string

const (
	PurchasePending PurchaseStatus = "pending"
	PurchasePaid    PurchaseStatus = "paid"
	PurchaseFailed  PurchaseStatus = "failed"
	PurchaseExpired PurchaseStatus = "expired"
)

const (
	ProviderFree     = "free"
	ProviderMidtrans = "midtrans"
)

// swagger:model UserTestPurchase
type UserTestPurchase struct {
	UUIDBase
	UserID      uint            `gorm:"index;not null" json:"userId"`
	TestID      string          `gorm:"index;type:varchar(36);not null" json:"testId"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"amount"`
	Currency    string          `gorm:"size:10" json:"currency"`
	Status      PurchaseStatus  `gorm:"size:20;index;default:'pending'" json:"status"`
	Provider    string          `gorm:"size:20" json:"provider"`
	OrderID     string          `gorm:"size:64;uniqueIndex;not null" json:"orderId"`
	SnapToken   string          `gorm:"size:255" json:"snapToken,omitempty"`
	RedirectURL string          `gorm:"size:500" json:"redirectUrl,omitempty"`
	PaidAt      *time.Time      `json:"paidAt,omitempty"`
	Test        *Test           `gorm:"foreignKey:TestID" json:"test,omitempty"`
}

func (UserTestPurchase) TableName() string {
	return "user_test_purchases"
}
