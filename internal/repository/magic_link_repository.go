package repository

import (
	"time"

	"exam_practice_backend/internal/model"

	"gorm.io/gorm"
)

type MagicLinkRepository struct {
	DB *gorm.DB
}

func NewMagicLinkRepository(db *gorm.DB) *MagicLinkRepository {
	return &MagicLinkRepository{DB: db}
}

func (r *MagicLinkRepository) Create(t *model.MagicLinkToken) error {
	return r.DB.Create(t).Error
}

func (r *MagicLinkRepository) FindByHash(hash string) (*model.MagicLinkToken, error) {
	var t model.MagicLinkToken
	if err := r.DB.Where("token_hash = ?", hash).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *MagicLinkRepository) MarkUsed(id uint, at time.Time) (bool, error) {
	res := r.DB.Model(&model.MagicLinkToken{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", at)
	return res.RowsAffected == 1, res.Error
}

func (r *MagicLinkRepository) DeleteExpired(before time.Time) (int64, error) {
	res := r.DB.Unscoped().Where("expires_at < ?", before).Delete(&model.MagicLinkToken{})
	return res.RowsAffected, res.Error
}
