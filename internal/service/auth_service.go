package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"exam_practice_backend/internal/config"
	"exam_practice_backend/internal/model"
	"exam_practice_backend/internal/repository"
	"exam_practice_backend/internal/util"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	UserRepo      repository.UserStore
	MagicLinkRepo repository.MagicLinkStore
	Sessions      *SessionProvider
	Mailer        Mailer
	Cfg           *config.Config

	now func() time.Time
}

func NewAuthService(userRepo repository.UserStore, magicLinkRepo repository.MagicLinkStore,
	sessions *SessionProvider, mailer Mailer, cfg *config.Config) *AuthService {
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &AuthService{
		UserRepo:      userRepo,
		MagicLinkRepo: magicLinkRepo,
		Sessions:      sessions,
		Mailer:        mailer,
		Cfg:           cfg,
		now:           time.Now,
	}
}

// RegisterRequest 注册请求
// swagger:model RegisterRequest
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	FullName string `json:"fullName" binding:"max=100"`
}

// AuthResult 登录成功返回的令牌与用户
// swagger:model AuthResult
type AuthResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      *model.User `json:"user"`
}

func (s *AuthService) Register(req RegisterRequest) (*AuthResult, error) {
	_, err := s.UserRepo.FindByEmail(req.Email)
	if err == nil {
		return nil, util.ErrEmailRegistered
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{Email: req.Email, Password: string(hashedPassword)}
	profile := &model.Profile{FullName: req.FullName, Role: s.roleFor(req.Email)}
	if err := s.UserRepo.Create(user, profile); err != nil {
		return nil, err
	}
	return s.signIn(user)
}

func (s *AuthService) Login(email, password string) (*AuthResult, error) {
	user, err := s.UserRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrInvalidCredentials
		}
		return nil, err
	}
	// 仅通过登录链接注册的账号没有密码
	if user.Password == "" {
		return nil, util.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, util.ErrInvalidCredentials
	}
	return s.signIn(user)
}

// RequestMagicLink 生成一次性登录链接并发送，邮箱不存在时同样返回成功
func (s *AuthService) RequestMagicLink(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return err
	}
	token := hex.EncodeToString(raw)

	ttl := time.Duration(s.Cfg.Auth.MagicLinkTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	record := &model.MagicLinkToken{
		Email:     email,
		TokenHash: hashToken(token),
		ExpiresAt: s.now().Add(ttl),
	}
	if err := s.MagicLinkRepo.Create(record); err != nil {
		return err
	}

	link, err := magicLinkURL(s.Cfg.Auth.MagicLinkBaseURL, token)
	if err != nil {
		return err
	}
	return s.Mailer.SendMagicLink(ctx, email, link)
}

// VerifyMagicLink 校验一次性令牌，首次登录的邮箱会自动注册
func (s *AuthService) VerifyMagicLink(token string) (*AuthResult, error) {
	if token == "" {
		return nil, util.ErrMagicLinkInvalid
	}
	record, err := s.MagicLinkRepo.FindByHash(hashToken(token))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrMagicLinkInvalid
		}
		return nil, err
	}
	now := s.now()
	if !record.Usable(now) {
		return nil, util.ErrMagicLinkInvalid
	}
	ok, err := s.MagicLinkRepo.MarkUsed(record.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrMagicLinkInvalid
	}

	user, err := s.UserRepo.FindByEmail(record.Email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = &model.User{Email: record.Email}
		profile := &model.Profile{Role: s.roleFor(record.Email)}
		if err := s.UserRepo.Create(user, profile); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return s.signIn(user)
}

func (s *AuthService) Logout(claims *util.Claims) error {
	return s.Sessions.Revoke(claims)
}

// Refresh 重新读取用户角色后签发新令牌
func (s *AuthService) Refresh(claims *util.Claims) (*AuthResult, error) {
	user, err := s.loadActiveUser(claims.UserID)
	if err != nil {
		return nil, err
	}
	token, newClaims, err := s.Sessions.Refresh(claims, user, userRole(user))
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: newClaims.ExpiresAt.Time, User: user}, nil
}

func (s *AuthService) GetCurrentUser(userID uint) (*model.User, error) {
	return s.loadActiveUser(userID)
}

func (s *AuthService) loadActiveUser(userID uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	if user.Disabled {
		return nil, util.ErrAccountDisabled
	}
	return user, nil
}

func (s *AuthService) signIn(user *model.User) (*AuthResult, error) {
	if user.Disabled {
		return nil, util.ErrAccountDisabled
	}
	token, claims, err := s.Sessions.Issue(user, userRole(user))
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user}, nil
}

func (s *AuthService) roleFor(email string) model.UserRole {
	if s.Cfg.IsBootstrapAdmin(email) {
		return model.RoleAdmin
	}
	return model.RoleUser
}

func userRole(user *model.User) model.UserRole {
	if user.Profile != nil && user.Profile.Role != "" {
		return user.Profile.Role
	}
	return model.RoleUser
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func magicLinkURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid auth.magic_link_base_url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
