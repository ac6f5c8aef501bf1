package model

import (
	"time"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Email        string     `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password     string     `gorm:"size:100" json:"-"`
	Disabled     bool       `gorm:"default:false" json:"disabled"`
	LastSignInAt *time.Time `json:"lastSignInAt,omitempty"`
	Profile      *Profile   `gorm:"foreignKey:UserID" json:"profile,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// Profile 用户资料，角色也存在这里
type Profile struct {
	BaseModel
	UserID    uint     `gorm:"uniqueIndex;not null" json:"userId"`
	FullName  string   `gorm:"size:100" json:"fullName"`
	AvatarURL string   `gorm:"size:255" json:"avatarUrl"`
	Role      UserRole `gorm:"size:20;default:'user';not null" json:"role"`
}

func (Profile) TableName() string {
	return "profiles"
}

func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// MagicLinkToken 只保存 token 的 sha256
type MagicLinkToken struct {
	BaseModel
	Email     string     `gorm:"size:100;index;not null" json:"email"`
	TokenHash string     `gorm:"size:64;uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time  `json:"expiresAt"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
}

func (MagicLinkToken) TableName() string {
	return "magic_link_tokens"
}

func (t *MagicLinkToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
