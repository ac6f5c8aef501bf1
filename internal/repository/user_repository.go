package repository

import (
	"strings"
	"time"

	"exam_practice_backend/internal/model"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// Create 用户与资料在同一事务内创建
func (r *UserRepository) Create(user *model.User, profile *model.Profile) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Profile").Create(user).Error; err != nil {
			return err
		}
		profile.UserID = user.ID
		if profile.Role == "" {
			profile.Role = model.RoleUser
		}
		if err := tx.Create(profile).Error; err != nil {
			return err
		}
		user.Profile = profile
		return nil
	})
}

func (r *UserRepository) FindByID(id uint) (*model.User, error) {
	var user model.User
	if err := r.DB.Preload("Profile").First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.DB.Preload("Profile").
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) UpdateLastSignIn(userID uint, at time.Time) error {
	return r.DB.Model(&model.User{}).
		Where("id = ?", userID).
		Update("last_sign_in_at", at).
		Error
}

func (r *UserRepository) GetProfile(userID uint) (*model.Profile, error) {
	var p model.Profile
	if err := r.DB.Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *UserRepository) UpdateProfile(p *model.Profile) error {
	return r.DB.Model(&model.Profile{}).
		Where("user_id = ?", p.UserID).
		Updates(map[string]interface{}{
			"full_name":  p.FullName,
			"avatar_url": p.AvatarURL,
		}).Error
}

func (r *UserRepository) SetRole(userID uint, role model.UserRole) error {
	return r.DB.Model(&model.Profile{}).Where("user_id = ?", userID).Update("role", role).Error
}
