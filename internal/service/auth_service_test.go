package service

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"exam_practice_backend/internal/model"
	"exam_practice_backend/internal/repository"
	"exam_practice_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendMagicLink(ctx context.Context, email, link string) error {
	return m.Called(ctx, email, link).Error(0)
}

func newAuthService(t *testing.T, mailer Mailer) (*AuthService, *SessionProvider) {
	t.Helper()
	db := setupTestDB(t)
	cfg := testConfig()
	provider := NewSessionProvider(NewMemorySessionStore(), cfg.JWT.Secret, cfg.JWT.ExpireTime, 8)
	t.Cleanup(provider.Close)
	svc := NewAuthService(repository.NewUserRepository(db), repository.NewMagicLinkRepository(db), provider, mailer, cfg)
	return svc, provider
}

func TestRegisterAndLogin(t *testing.T) {
	svc, provider := newAuthService(t, nil)

	res, err := svc.Register(RegisterRequest{Email: "Alice@Example.com", Password: "secret123", FullName: "Alice"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.Equal(t, model.RoleUser, res.User.Profile.Role)

	claims, err := provider.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)

	_, err = svc.Register(RegisterRequest{Email: "alice@example.com", Password: "another1"})
	assert.ErrorIs(t, err, util.ErrEmailRegistered)

	_, err = svc.Login("alice@example.com", "wrong-pass")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
	_, err = svc.Login("nobody@example.com", "secret123")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)

	login, err := svc.Login("alice@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, login.User.ID)
}

func TestRegisterBootstrapAdmin(t *testing.T) {
	svc, provider := newAuthService(t, nil)

	res, err := svc.Register(RegisterRequest{Email: "boss@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, res.User.Profile.Role)

	claims, err := provider.Validate(res.Token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
}

func TestMagicLinkIsSingleUse(t *testing.T) {
	mailer := &MockMailer{}
	var link string
	mailer.On("SendMagicLink", mock.Anything, "new@example.com", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { link = args.String(2) }).
		Return(nil).Once()

	svc, _ := newAuthService(t, mailer)
	require.NoError(t, svc.RequestMagicLink(context.Background(), " New@Example.com "))
	mailer.AssertExpectations(t)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/auth/callback", u.Path)
	token := u.Query().Get("token")
	require.Len(t, token, 64)

	res, err := svc.VerifyMagicLink(token)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", res.User.Email)
	assert.NotZero(t, res.User.ID)

	_, err = svc.VerifyMagicLink(token)
	assert.ErrorIs(t, err, util.ErrMagicLinkInvalid)
	_, err = svc.VerifyMagicLink("")
	assert.ErrorIs(t, err, util.ErrMagicLinkInvalid)

	// 没有密码的账号不能用密码登录
	_, err = svc.Login("new@example.com", "")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
}

func TestMagicLinkExpires(t *testing.T) {
	mailer := &MockMailer{}
	var link string
	mailer.On("SendMagicLink", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { link = args.String(2) }).
		Return(nil)

	svc, _ := newAuthService(t, mailer)
	require.NoError(t, svc.RequestMagicLink(context.Background(), "late@example.com"))

	svc.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	u, err := url.Parse(link)
	require.NoError(t, err)
	_, err = svc.VerifyMagicLink(u.Query().Get("token"))
	assert.ErrorIs(t, err, util.ErrMagicLinkInvalid)
}

func TestLogoutRevokesAndRefreshRotates(t *testing.T) {
	svc, provider := newAuthService(t, nil)
	events, err := provider.Subscribe()
	require.NoError(t, err)
	_, err = provider.Subscribe()
	assert.ErrorIs(t, err, ErrAlreadySubscribed)

	res, err := svc.Register(RegisterRequest{Email: "bob@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, EventSignedIn, (<-events).Type)

	claims, err := provider.Validate(res.Token)
	require.NoError(t, err)

	refreshed, err := svc.Refresh(claims)
	require.NoError(t, err)
	assert.NotEqual(t, res.Token, refreshed.Token)
	assert.Equal(t, EventRefreshed, (<-events).Type)

	_, err = provider.Validate(res.Token)
	assert.ErrorIs(t, err, util.ErrSessionRevoked)

	newClaims, err := provider.Validate(refreshed.Token)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(newClaims))
	ev := <-events
	assert.Equal(t, EventSignedOut, ev.Type)
	assert.Equal(t, newClaims.ID, ev.SessionID)

	_, err = provider.Validate(refreshed.Token)
	assert.ErrorIs(t, err, util.ErrSessionRevoked)
}

func TestSessionProviderDropsWhenFull(t *testing.T) {
	provider := NewSessionProvider(nil, "secret", time.Hour, 1)
	defer provider.Close()
	user := &model.User{Email: "drop@example.com"}
	user.ID = 7

	for i := 0; i < 3; i++ {
		_, _, err := provider.Issue(user, model.RoleUser)
		require.NoError(t, err)
	}
	events, err := provider.Subscribe()
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestSessionProviderCloseWhileEmitting(t *testing.T) {
	provider := NewSessionProvider(nil, "secret", time.Hour, 4)
	events, err := provider.Subscribe()
	require.NoError(t, err)
	user := &model.User{Email: "race@example.com"}
	user.ID = 9

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, _, err := provider.Issue(user, model.RoleUser)
				assert.NoError(t, err)
			}
		}()
	}
	provider.Close()
	wg.Wait()
	provider.Close()

	// 关闭后通道可以读完并结束
	n := 0
	for range events {
		n++
	}
	assert.LessOrEqual(t, n, 4)

	_, _, err = provider.Issue(user, model.RoleUser)
	assert.NoError(t, err)
}
