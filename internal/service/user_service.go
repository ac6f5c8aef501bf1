package service

import (
	"errors"

	"exam_practice_backend/internal/model"
	"exam_practice_backend/internal/repository"
	"exam_practice_backend/internal/util"

	"gorm.io/gorm"
)

// UpdateProfileRequest 更新个人资料
// swagger:model UpdateProfileRequest
type UpdateProfileRequest struct {
	FullName  string `json:"fullName" binding:"max=100"`
	AvatarURL string `json:"avatarUrl" binding:"omitempty,url,max=255"`
}

// UserService 处理个人资料
type UserService struct {
	UserRepo repository.UserStore
}

func NewUserService(userRepo repository.UserStore) *UserService {
	return &UserService{
		UserRepo: userRepo,
	}
}

// GetProfile 用户与资料
func (s *UserService) GetProfile(userID uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// UpdateProfile 只允许修改姓名与头像，角色不能自行修改
func (s *UserService) UpdateProfile(userID uint, req UpdateProfileRequest) (*model.Profile, error) {
	p, err := s.UserRepo.GetProfile(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	p.FullName = req.FullName
	p.AvatarURL = req.AvatarURL
	if err := s.UserRepo.UpdateProfile(p); err != nil {
		return nil, err
	}
	return p, nil
}
