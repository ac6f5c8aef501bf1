package service

import (
	"errors"
	"testing"
	"time"

	"exam_practice_backend/internal/model"
	"exam_practice_backend/internal/repository"
	"exam_practice_backend/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateTransaction(req ChargeRequest) (*ChargeResult, error) {
	args := m.Called(req)
	if r, ok := args.Get(0).(*ChargeResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGateway) VerifySignature(orderID, statusCode, grossAmount, signature string) bool {
	return m.Called(orderID, statusCode, grossAmount, signature).Bool(0)
}

type purchaseEnv struct {
	svc     *PurchaseService
	gateway *MockGateway
	catalog *repository.CatalogRepository
	users   *repository.UserRepository
}

func newPurchaseEnv(t *testing.T) *purchaseEnv {
	t.Helper()
	db := setupTestDB(t)
	catalog := repository.NewCatalogRepository(db)
	users := repository.NewUserRepository(db)
	gw := &MockGateway{}
	svc := NewPurchaseService(repository.NewPurchaseRepository(db), catalog, users, gw, testConfig())
	return &purchaseEnv{svc: svc, gateway: gw, catalog: catalog, users: users}
}

func TestCheckoutFreeTestGrantsAccess(t *testing.T) {
	env := newPurchaseEnv(t)
	st := createSampleTest(t, env.catalog, "0")

	p, err := env.svc.Checkout(1, st.Test.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PurchasePaid, p.Status)
	assert.Equal(t, model.ProviderFree, p.Provider)
	assert.NotNil(t, p.PaidAt)
	env.gateway.AssertNotCalled(t, "CreateTransaction", mock.Anything)
}

func TestCheckoutPaidTestCreatesPendingOrder(t *testing.T) {
	env := newPurchaseEnv(t)
	st := createSampleTest(t, env.catalog, "49000")
	user := createUser(t, env.users, "buyer@example.com", model.RoleUser)

	env.gateway.On("CreateTransaction", mock.MatchedBy(func(req ChargeRequest) bool {
		return req.ItemID == st.Test.ID && req.Email == "buyer@example.com" && req.Amount.Equal(decimal.NewFromInt(49000))
	})).Return(&ChargeResult{Token: "snap-token", RedirectURL: "https://pay.example.com/snap"}, nil).Once()

	p, err := env.svc.Checkout(user.ID, st.Test.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PurchasePending, p.Status)
	assert.Equal(t, "snap-token", p.SnapToken)
	assert.Contains(t, p.OrderID, "EXAM-")

	// 重复下单返回同一订单
	again, err := env.svc.Checkout(user.ID, st.Test.ID)
	require.NoError(t, err)
	assert.Equal(t, p.OrderID, again.OrderID)
	env.gateway.AssertExpectations(t)

	ok, err := env.svc.HasAccess(user.ID, false, st.Test)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckoutGatewayFailureMarksOrderFailed(t *testing.T) {
	env := newPurchaseEnv(t)
	st := createSampleTest(t, env.catalog, "10000")
	env.gateway.On("CreateTransaction", mock.Anything).Return(nil, errors.New("gateway down")).Once()

	_, err := env.svc.Checkout(1, st.Test.ID)
	require.Error(t, err)

	mine, err := env.svc.ListMine(1)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, model.PurchaseFailed, mine[0].Status)
}

func TestCheckoutWithoutGateway(t *testing.T) {
	env := newPurchaseEnv(t)
	env.svc.Gateway = nil
	st := createSampleTest(t, env.catalog, "10000")

	_, err := env.svc.Checkout(1, st.Test.ID)
	assert.ErrorIs(t, err, util.ErrPaymentDisabled)

	_, err = env.svc.Checkout(1, "missing")
	assert.ErrorIs(t, err, util.ErrTestNotFound)
}

func TestHandleNotification(t *testing.T) {
	env := newPurchaseEnv(t)
	st := createSampleTest(t, env.catalog, "49000")
	env.gateway.On("CreateTransaction", mock.Anything).Return(&ChargeResult{Token: "tok"}, nil)

	p, err := env.svc.Checkout(1, st.Test.ID)
	require.NoError(t, err)

	env.gateway.On("VerifySignature", p.OrderID, "200", "49000.00", "good").Return(true)
	env.gateway.On("VerifySignature", p.OrderID, "200", "49000.00", "bad").Return(false)

	n := MidtransNotification{OrderID: p.OrderID, StatusCode: "200", GrossAmount: "49000.00", SignatureKey: "bad", TransactionStatus: "settlement"}
	_, err = env.svc.HandleNotification(n)
	assert.ErrorIs(t, err, util.ErrInvalidSignature)

	n.SignatureKey = "good"
	updated, err := env.svc.HandleNotification(n)
	require.NoError(t, err)
	assert.Equal(t, model.PurchasePaid, updated.Status)
	assert.NotNil(t, updated.PaidAt)

	// 已支付的订单不会被后续通知回退
	n.TransactionStatus = "expire"
	updated, err = env.svc.HandleNotification(n)
	require.NoError(t, err)
	assert.Equal(t, model.PurchasePaid, updated.Status)

	ok, err := env.svc.HasAccess(1, false, st.Test)
	require.NoError(t, err)
	assert.True(t, ok)

	env.gateway.On("VerifySignature", "EXAM-unknown", "200", "1.00", "good").Return(true)
	_, err = env.svc.HandleNotification(MidtransNotification{OrderID: "EXAM-unknown", StatusCode: "200", GrossAmount: "1.00", SignatureKey: "good"})
	assert.ErrorIs(t, err, util.ErrPurchaseNotFound)
}

func TestMapMidtransStatus(t *testing.T) {
	cases := []struct {
		status, fraud string
		want          model.PurchaseStatus
	}{
		{"settlement", "", model.PurchasePaid},
		{"capture", "accept", model.PurchasePaid},
		{"capture", "challenge", ""},
		{"deny", "", model.PurchaseFailed},
		{"cancel", "", model.PurchaseFailed},
		{"expire", "", model.PurchaseExpired},
		{"pending", "", model.PurchasePending},
		{"refund", "", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, mapMidtransStatus(c.status, c.fraud), c.status+"/"+c.fraud)
	}
}

func TestExpirePendingPurchases(t *testing.T) {
	env := newPurchaseEnv(t)
	st := createSampleTest(t, env.catalog, "49000")
	env.gateway.On("CreateTransaction", mock.Anything).Return(&ChargeResult{Token: "tok"}, nil)

	_, err := env.svc.Checkout(1, st.Test.ID)
	require.NoError(t, err)

	n, err := env.svc.ExpirePending()
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	env.svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	n, err = env.svc.ExpirePending()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestMidtransSignature(t *testing.T) {
	gw := NewMidtransGateway("server-key", false)
	sig := midtransSignature("EXAM-1", "200", "49000.00", "server-key")

	assert.Len(t, sig, 128)
	assert.True(t, gw.VerifySignature("EXAM-1", "200", "49000.00", sig))
	assert.False(t, gw.VerifySignature("EXAM-1", "201", "49000.00", sig))
	assert.False(t, gw.VerifySignature("EXAM-1", "200", "49000.00", ""))
}
