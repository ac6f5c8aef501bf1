package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"exam_practice_backend/internal/model"
	"exam_practice_backend/internal/util"
	"exam_practice_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

type AuthEventType string

const (
	EventSignedIn  AuthEventType = "signed_in"
	EventSignedOut AuthEventType = "signed_out"
	EventRefreshed AuthEventType = "refreshed"
)

// AuthEvent 登录状态变化
type AuthEvent struct {
	Type      AuthEventType
	UserID    uint
	Email     string
	SessionID string
	At        time.Time
}

// AuthSession 服务端保存的登录会话，jti 为键
type AuthSession struct {
	ID        string         `json:"id"`
	UserID    uint           `json:"userId"`
	Email     string         `json:"email"`
	Role      model.UserRole `json:"role"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

type AuthSessionStore interface {
	Save(s AuthSession) error
	Exists(id string) (bool, error)
	Delete(id string) error
}

// RedisSessionStore 会话随 JWT 过期时间自动失效
type RedisSessionStore struct {
	Redis *redis.Client
	ctx   context.Context
}

func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{Redis: rdb, ctx: context.Background()}
}

func authSessionKey(id string) string {
	return fmt.Sprintf("auth:session:%s", id)
}

func (s *RedisSessionStore) Save(sess AuthSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.Redis.Set(s.ctx, authSessionKey(sess.ID), data, ttl).Err()
}

func (s *RedisSessionStore) Exists(id string) (bool, error) {
	n, err := s.Redis.Exists(s.ctx, authSessionKey(id)).Result()
	return n > 0, err
}

func (s *RedisSessionStore) Delete(id string) error {
	return s.Redis.Del(s.ctx, authSessionKey(id)).Err()
}

// MemorySessionStore 单进程部署与测试使用
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]AuthSession
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]AuthSession)}
}

func (s *MemorySessionStore) Save(sess AuthSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemorySessionStore) Exists(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if ok && time.Now().After(sess.ExpiresAt) {
		delete(s.sessions, id)
		return false, nil
	}
	return ok, nil
}

func (s *MemorySessionStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

var ErrAlreadySubscribed = errors.New("auth events already have a consumer")

// SessionProvider 签发、校验、吊销登录会话，并通过单消费者通道发布状态变化
type SessionProvider struct {
	store  AuthSessionStore
	secret string
	ttl    time.Duration

	// mu 保护 events 的发送与关闭
	mu         sync.RWMutex
	events     chan AuthEvent
	closed     bool
	subscribed atomic.Bool
}

func NewSessionProvider(store AuthSessionStore, secret string, ttl time.Duration, buffer int) *SessionProvider {
	if buffer <= 0 {
		buffer = 64
	}
	return &SessionProvider{
		store:  store,
		secret: secret,
		ttl:    ttl,
		events: make(chan AuthEvent, buffer),
	}
}

// Subscribe 只允许一个消费者
func (p *SessionProvider) Subscribe() (<-chan AuthEvent, error) {
	if !p.subscribed.CompareAndSwap(false, true) {
		return nil, ErrAlreadySubscribed
	}
	return p.events, nil
}

func (p *SessionProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.events)
	}
}

// 通道满时丢弃事件，不阻塞请求；关闭后的事件直接丢弃
func (p *SessionProvider) emit(e AuthEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.events <- e:
	default:
		logger.Log.Warn("Auth event dropped",
			zap.String("type", string(e.Type)),
			zap.Uint("user_id", e.UserID),
		)
	}
}

// Issue 为用户签发新会话
func (p *SessionProvider) Issue(user *model.User, role model.UserRole) (string, *util.Claims, error) {
	token, claims, err := p.issue(user, role)
	if err != nil {
		return "", nil, err
	}
	p.emit(AuthEvent{Type: EventSignedIn, UserID: user.ID, Email: user.Email, SessionID: claims.ID, At: time.Now()})
	return token, claims, nil
}

func (p *SessionProvider) issue(user *model.User, role model.UserRole) (string, *util.Claims, error) {
	token, claims, err := util.GenerateJWT(user.ID, user.Email, role, p.secret, p.ttl)
	if err != nil {
		return "", nil, err
	}
	if p.store != nil {
		err = p.store.Save(AuthSession{
			ID:        claims.ID,
			UserID:    user.ID,
			Email:     user.Email,
			Role:      role,
			ExpiresAt: claims.ExpiresAt.Time,
		})
		if err != nil {
			return "", nil, fmt.Errorf("save auth session: %w", err)
		}
	}
	return token, claims, nil
}

// Validate 校验签名并确认会话未被吊销
func (p *SessionProvider) Validate(token string) (*util.Claims, error) {
	claims, err := util.ParseJWT(token, p.secret)
	if err != nil {
		return nil, err
	}
	if p.store == nil {
		return claims, nil
	}
	ok, err := p.store.Exists(claims.ID)
	if err != nil {
		return nil, fmt.Errorf("lookup auth session: %w", err)
	}
	if !ok {
		return nil, util.ErrSessionRevoked
	}
	return claims, nil
}

func (p *SessionProvider) Revoke(claims *util.Claims) error {
	if p.store != nil {
		if err := p.store.Delete(claims.ID); err != nil {
			return err
		}
	}
	p.emit(AuthEvent{Type: EventSignedOut, UserID: claims.UserID, Email: claims.Email, SessionID: claims.ID, At: time.Now()})
	return nil
}

// Refresh 签发新会话并吊销旧会话
func (p *SessionProvider) Refresh(old *util.Claims, user *model.User, role model.UserRole) (string, *util.Claims, error) {
	token, claims, err := p.issue(user, role)
	if err != nil {
		return "", nil, err
	}
	if p.store != nil {
		if err := p.store.Delete(old.ID); err != nil {
			logger.Log.Warn("Failed to revoke refreshed session", zap.String("session_id", old.ID), zap.Error(err))
		}
	}
	p.emit(AuthEvent{Type: EventRefreshed, UserID: user.ID, Email: user.Email, SessionID: claims.ID, At: time.Now()})
	return token, claims, nil
}
