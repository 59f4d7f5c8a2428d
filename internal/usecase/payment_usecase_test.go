package usecase

import (
	"context"
	"testing"

	"shop/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type paymentProviderMock struct{ mock.Mock }

func (m *paymentProviderMock) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (PaymentIntent, error) {
	args := m.Called(ctx, amount, currency, metadata)
	pi, _ := args.Get(0).(PaymentIntent)
	return pi, args.Error(1)
}

func (m *paymentProviderMock) RetrieveIntent(ctx context.Context, id string) (PaymentIntent, error) {
	args := m.Called(ctx, id)
	pi, _ := args.Get(0).(PaymentIntent)
	return pi, args.Error(1)
}

func TestToCents(t *testing.T) {
	assert.Equal(t, int64(17998), toCents(179.982))
	assert.Equal(t, int64(19998), toCents(199.98))
	assert.Equal(t, int64(100), toCents(1))
	assert.Equal(t, int64(0), toCents(-5))
}

func TestCreatePaymentIntent_EmptyCart(t *testing.T) {
	provider := new(paymentProviderMock)
	carts := new(cartRepoMock)
	items := new(cartItemRepoMock)
	coupons := new(couponRepoMock)

	uc := NewPaymentUsecase(provider, carts, items, coupons, nil, "usd", zap.NewNop())

	carts.On("FindByUserID", mock.Anything, int64(1)).Return(model.Cart{ID: 5, UserID: 1}, nil)
	items.On("ListByCartID", mock.Anything, int64(5)).Return([]model.CartItem{}, nil)

	_, err := uc.CreatePaymentIntent(context.Background(), 1)
	assertErrCode(t, err, CodeEmptyCart)

	provider.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreatePaymentIntent_AmountFromRecalculatedTotal(t *testing.T) {
	provider := new(paymentProviderMock)
	carts := new(cartRepoMock)
	items := new(cartItemRepoMock)
	coupons := new(couponRepoMock)

	uc := NewPaymentUsecase(provider, carts, items, coupons, nil, "usd", zap.NewNop())

	cart := model.Cart{ID: 5, UserID: 1, CouponCode: "SAVE10"}
	carts.On("FindByUserID", mock.Anything, int64(1)).Return(cart, nil)
	items.On("ListByCartID", mock.Anything, int64(5)).Return([]model.CartItem{
		{CartID: 5, ProductID: 10, Quantity: 2, UnitPrice: 99.99},
	}, nil)
	coupons.On("FindByCode", mock.Anything, "SAVE10").Return(model.Coupon{
		Code: "SAVE10", Type: model.CouponTypePercentage, Value: 10, IsActive: true,
	}, nil)
	carts.On("SaveTotals", mock.Anything, mock.Anything).Return(nil)

	// 199.98 - 19.998 = 179.982 → 17998セント
	provider.On("CreateIntent", mock.Anything, int64(17998), "usd", mock.Anything).Return(PaymentIntent{
		ID:           "pi_123",
		ClientSecret: "pi_123_secret",
		Status:       "requires_payment_method",
	}, nil)

	out, err := uc.CreatePaymentIntent(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, "pi_123", out.PaymentIntentID)
	assert.Equal(t, "pi_123_secret", out.ClientSecret)

	provider.AssertExpectations(t)
}

func TestConfirmOrder_PaymentNotSucceeded(t *testing.T) {
	provider := new(paymentProviderMock)

	uc := NewPaymentUsecase(provider, nil, nil, nil, nil, "usd", zap.NewNop())

	provider.On("RetrieveIntent", mock.Anything, "pi_123").Return(PaymentIntent{
		ID:     "pi_123",
		Status: "requires_payment_method",
	}, nil)

	_, err := uc.ConfirmOrder(context.Background(), 1, ConfirmOrderInput{
		PaymentIntentID: "pi_123",
		ShippingAddress: testAddress,
	})
	assertErrContains(t, err, "payment not completed")
}

func TestConfirmOrder_SucceededRunsPipelineWithIntentID(t *testing.T) {
	provider := new(paymentProviderMock)
	env := newOrderTestEnv()

	uc := NewPaymentUsecase(provider, nil, nil, nil, env.uc, "usd", zap.NewNop())

	provider.On("RetrieveIntent", mock.Anything, "pi_123").Return(PaymentIntent{
		ID:     "pi_123",
		Status: PaymentIntentStatusSucceeded,
	}, nil)

	//同じ決済参照の注文が既にある → 再利用
	existing := model.Order{ID: 777, OrderNumber: "ORD-X", UserID: 1, PaymentIntentID: ptr("pi_123")}
	env.orders.On("FindByUserAndPaymentIntent", mock.Anything, int64(1), "pi_123").Return(existing, true, nil)
	env.items.On("ListByOrderID", mock.Anything, int64(777)).Return([]model.OrderItem{}, nil)

	out, err := uc.ConfirmOrder(context.Background(), 1, ConfirmOrderInput{
		PaymentIntentID: "pi_123",
		ShippingAddress: testAddress,
	})
	assert.NoError(t, err)
	assert.True(t, out.Reused)
	assert.Equal(t, "ORD-X", out.Order.OrderNumber)
}

func TestConfirmOrder_MissingIntentID(t *testing.T) {
	uc := NewPaymentUsecase(new(paymentProviderMock), nil, nil, nil, nil, "usd", zap.NewNop())

	_, err := uc.ConfirmOrder(context.Background(), 1, ConfirmOrderInput{ShippingAddress: testAddress})
	assertErrContains(t, err, "payment_intent_id is required")
}

func ptr(s string) *string { return &s }

// =====================
// 注文番号
// =====================

func TestNewOrderNumber_Format(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		n := NewOrderNumber()
		assert.Regexp(t, `^ORD-\d+-[A-Z0-9]{7}$`, n)
		assert.False(t, seen[n], "duplicate order number %s", n)
		seen[n] = true
	}
}
