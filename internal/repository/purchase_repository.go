package repository

import (
	"time"

	"exam_practice_backend/internal/model"

	"gorm.io/gorm"
)

type PurchaseRepository struct {
	DB *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{DB: db}
}

func (r *PurchaseRepository) Create(p *model.UserTestPurchase) error {
	return r.DB.Create(p).Error
}

func (r *PurchaseRepository) FindByOrderID(orderID string) (*model.UserTestPurchase, error) {
	var p model.UserTestPurchase
	if err := r.DB.Where("order_id = ?", orderID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindOpen 已支付或待支付的购买记录，已支付优先
func (r *PurchaseRepository) FindOpen(userID uint, testID string) (*model.UserTestPurchase, error) {
	var p model.UserTestPurchase
	err := r.DB.Where("user_id = ? AND test_id = ? AND status IN ?", userID, testID,
		[]model.PurchaseStatus{model.PurchasePaid, model.PurchasePending}).
		Order("CASE WHEN status = 'paid' THEN 0 ELSE 1 END, created_at desc").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PurchaseRepository) HasPaid(userID uint, testID string) (bool, error) {
	var count int64
	err := r.DB.Model(&model.UserTestPurchase{}).
		Where("user_id = ? AND test_id = ? AND status = ?", userID, testID, model.PurchasePaid).
		Count(&count).Error
	return count > 0, err
}

func (r *PurchaseRepository) PaidTestIDs(userID uint, testIDs []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(testIDs) == 0 {
		return out, nil
	}
	var ids []string
	err := r.DB.Model(&model.UserTestPurchase{}).
		Where("user_id = ? AND status = ? AND test_id IN ?", userID, model.PurchasePaid, testIDs).
		Distinct().
		Pluck("test_id", &ids).Error
	for _, id := range ids {
		out[id] = true
	}
	return out, err
}

func (r *PurchaseRepository) ListByUser(userID uint) ([]model.UserTestPurchase, error) {
	var ps []model.UserTestPurchase
	err := r.DB.Preload("Test").
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&ps).Error
	return ps, err
}

func (r *PurchaseRepository) Update(p *model.UserTestPurchase) error {
	return r.DB.Omit("Test").Save(p).Error
}

func (r *PurchaseRepository) ExpirePending(before time.Time) (int64, error) {
	res := r.DB.Model(&model.UserTestPurchase{}).
		Where("status = ? AND created_at < ?", model.PurchasePending, before).
		Update("status", model.PurchaseExpired)
	return res.RowsAffected, res.Error
}
