package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), wantSubstr), "err=%q want contains %q", err.Error(), wantSubstr)
	}
}

func assertErrCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	if assert.Error(t, err) {
		he, ok := AsHTTPError(err)
		if assert.True(t, ok, "expected HTTPError, got %T", err) {
			assert.Equal(t, wantCode, he.Code)
		}
	}
}

// =====================
// recalcCartTotals
// =====================

func TestRecalcCartTotals_NoCoupon(t *testing.T) {
	coupons := new(couponRepoMock)

	cart := model.Cart{ID: 1, UserID: 1}
	items := []model.CartItem{
		{CartID: 1, ProductID: 10, Quantity: 2, UnitPrice: 99.99},
		{CartID: 1, ProductID: 11, Quantity: 1, UnitPrice: 10},
	}

	err := recalcCartTotals(context.Background(), coupons, &cart, items, time.Now())
	assert.NoError(t, err)
	assert.InDelta(t, 209.98, cart.Subtotal, 1e-9)
	assert.InDelta(t, 0, cart.Discount, 1e-9)
	assert.InDelta(t, 209.98, cart.Total, 1e-9)
}

func TestRecalcCartTotals_PercentageCoupon(t *testing.T) {
	coupons := new(couponRepoMock)
	coupons.On("FindByCode", mock.Anything, "SAVE10").Return(model.Coupon{
		Code:     "SAVE10",
		Type:     model.CouponTypePercentage,
		Value:    10,
		IsActive: true,
	}, nil)

	cart := model.Cart{ID: 1, UserID: 1, CouponCode: "SAVE10"}
	items := []model.CartItem{
		{CartID: 1, ProductID: 10, Quantity: 2, UnitPrice: 99.99},
	}

	err := recalcCartTotals(context.Background(), coupons, &cart, items, time.Now())
	assert.NoError(t, err)
	assert.InDelta(t, 199.98, cart.Subtotal, 1e-9)
	assert.InDelta(t, 19.998, cart.Discount, 1e-9)
	assert.InDelta(t, 179.982, cart.Total, 1e-9)
	assert.Equal(t, "SAVE10", cart.CouponCode)
}

func TestRecalcCartTotals_CouponNoLongerApplicable_Detached(t *testing.T) {
	coupons := new(couponRepoMock)
	coupons.On("FindByCode", mock.Anything, "DEAD").Return(model.Coupon{
		Code:       "DEAD",
		Type:       model.CouponTypeFixed,
		Value:      5,
		IsActive:   true,
		UsageLimit: 1,
		UsedCount:  1,
	}, nil)

	cart := model.Cart{ID: 1, UserID: 1, CouponCode: "DEAD", Discount: 5}
	items := []model.CartItem{
		{CartID: 1, ProductID: 10, Quantity: 1, UnitPrice: 50},
	}

	err := recalcCartTotals(context.Background(), coupons, &cart, items, time.Now())
	assert.NoError(t, err)

	//使い切りクーポンは外れてdiscountは消える
	assert.Equal(t, "", cart.CouponCode)
	assert.InDelta(t, 0, cart.Discount, 1e-9)
	assert.InDelta(t, 50, cart.Total, 1e-9)
}

func TestRecalcCartTotals_CouponDeleted_Detached(t *testing.T) {
	coupons := new(couponRepoMock)
	coupons.On("FindByCode", mock.Anything, "GONE").Return(model.Coupon{}, repo.ErrNotFound)

	cart := model.Cart{ID: 1, UserID: 1, CouponCode: "GONE"}
	items := []model.CartItem{
		{CartID: 1, ProductID: 10, Quantity: 1, UnitPrice: 20},
	}

	err := recalcCartTotals(context.Background(), coupons, &cart, items, time.Now())
	assert.NoError(t, err)
	assert.Equal(t, "", cart.CouponCode)
	assert.InDelta(t, 20, cart.Total, 1e-9)
}

func TestRecalcCartTotals_EmptyItems(t *testing.T) {
	coupons := new(couponRepoMock)

	cart := model.Cart{ID: 1, UserID: 1, Subtotal: 100, Discount: 10, Total: 90}

	err := recalcCartTotals(context.Background(), coupons, &cart, nil, time.Now())
	assert.NoError(t, err)
	assert.InDelta(t, 0, cart.Subtotal, 1e-9)
	assert.InDelta(t, 0, cart.Total, 1e-9)
}

// =====================
// AddToCart
// =====================

func newCartUsecaseForTest() (*CartUsecase, *cartRepoMock, *cartItemRepoMock, *productRepoMock, *couponRepoMock) {
	carts := new(cartRepoMock)
	items := new(cartItemRepoMock)
	products := new(productRepoMock)
	coupons := new(couponRepoMock)
	return NewCartUsecase(carts, items, products, coupons), carts, items, products, coupons
}

func TestAddToCart_InvalidQuantity(t *testing.T) {
	uc, _, _, _, _ := newCartUsecaseForTest()

	_, err := uc.AddToCart(context.Background(), 1, AddCartInput{ProductID: 10, Quantity: 0})
	assertErrContains(t, err, "invalid quantity")
}

func TestAddToCart_ProductNotFound(t *testing.T) {
	uc, carts, _, products, _ := newCartUsecaseForTest()

	carts.On("GetOrCreateByUserID", mock.Anything, int64(1)).Return(model.Cart{ID: 5, UserID: 1}, nil)
	products.On("FindByID", mock.Anything, int64(10)).Return(model.Product{}, repo.ErrNotFound)

	_, err := uc.AddToCart(context.Background(), 1, AddCartInput{ProductID: 10, Quantity: 1})
	assertErrContains(t, err, "product not found")
}

func TestAddToCart_InactiveProduct(t *testing.T) {
	uc, carts, _, products, _ := newCartUsecaseForTest()

	carts.On("GetOrCreateByUserID", mock.Anything, int64(1)).Return(model.Cart{ID: 5, UserID: 1}, nil)
	products.On("FindByID", mock.Anything, int64(10)).Return(model.Product{ID: 10, IsActive: false, Stock: 100}, nil)

	_, err := uc.AddToCart(context.Background(), 1, AddCartInput{ProductID: 10, Quantity: 1})
	assertErrContains(t, err, "product not found")
}

func TestAddToCart_ExactStockOK(t *testing.T) {
	uc, carts, items, products, coupons := newCartUsecaseForTest()
	_ = coupons

	cart := model.Cart{ID: 5, UserID: 1}
	p := model.Product{ID: 10, Name: "Widget", Price: 25, Stock: 3, IsActive: true}

	carts.On("GetOrCreateByUserID", mock.Anything, int64(1)).Return(cart, nil)
	products.On("FindByID", mock.Anything, int64(10)).Return(p, nil)
	items.On("FindByCartAndProduct", mock.Anything, int64(5), int64(10)).Return(model.CartItem{}, repo.ErrNotFound)
	items.On("Upsert", mock.Anything, int64(5), int64(10), int64(3), 25.0).Return(nil)

	//refreshAndBuild側
	carts.On("FindByUserID", mock.Anything, int64(1)).Return(cart, nil)
	items.On("ListByCartID", mock.Anything, int64(5)).Return([]model.CartItem{
		{CartID: 5, ProductID: 10, Quantity: 3, UnitPrice: 25},
	}, nil)
	carts.On("SaveTotals", mock.Anything, mock.Anything).Return(nil)

	out, err := uc.AddToCart(context.Background(), 1, AddCartInput{ProductID: 10, Quantity: 3})
	assert.NoError(t, err)
	assert.InDelta(t, 75, out.Total, 1e-9)

	items.AssertExpectations(t)
}

func TestAddToCart_ExceedsStock_WithExistingQuantity(t *testing.T) {
	uc, carts, items, products, _ := newCartUsecaseForTest()

	cart := model.Cart{ID: 5, UserID: 1}
	p := model.Product{ID: 10, Name: "Widget", Price: 25, Stock: 3, IsActive: true}

	carts.On("GetOrCreateByUserID", mock.Anything, int64(1)).Return(cart, nil)
	products.On("FindByID", mock.Anything, int64(10)).Return(p, nil)
	//既に2個入っている
	items.On("FindByCartAndProduct", mock.Anything, int64(5), int64(10)).Return(model.CartItem{
		CartID: 5, ProductID: 10, Quantity: 2, UnitPrice: 25,
	}, nil)

	//2 + 2 > 3
	_, err := uc.AddToCart(context.Background(), 1, AddCartInput{ProductID: 10, Quantity: 2})
	assertErrCode(t, err, CodeInsufficientStock)
	assertErrContains(t, err, "Widget")

	items.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// =====================
// UpdateItem
// =====================

func TestUpdateItem_ZeroQuantityRemovesItem(t *testing.T) {
	uc, carts, items, _, _ := newCartUsecaseForTest()

	cart := model.Cart{ID: 5, UserID: 1}

	carts.On("FindByUserID", mock.Anything, int64(1)).Return(cart, nil)
	items.On("FindByCartAndProduct", mock.Anything, int64(5), int64(10)).Return(model.CartItem{
		CartID: 5, ProductID: 10, Quantity: 2, UnitPrice: 25,
	}, nil)
	items.On("DeleteByCartAndProduct", mock.Anything, int64(5), int64(10)).Return(nil)
	items.On("ListByCartID", mock.Anything, int64(5)).Return([]model.CartItem{}, nil)
	carts.On("SaveTotals", mock.Anything, mock.Anything).Return(nil)

	out, err := uc.UpdateItem(context.Background(), 1, 10, 0)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(out.Items))

	items.AssertCalled(t, "DeleteByCartAndProduct", mock.Anything, int64(5), int64(10))
}

func TestUpdateItem_QuantityOverStock(t *testing.T) {
	uc, carts, items, products, _ := newCartUsecaseForTest()

	cart := model.Cart{ID: 5, UserID: 1}

	carts.On("FindByUserID", mock.Anything, int64(1)).Return(cart, nil)
	items.On("FindByCartAndProduct", mock.Anything, int64(5), int64(10)).Return(model.CartItem{
		CartID: 5, ProductID: 10, Quantity: 1, UnitPrice: 25,
	}, nil)
	products.On("FindByID", mock.Anything, int64(10)).Return(model.Product{
		ID: 10, Name: "Widget", Price: 25, Stock: 3, IsActive: true,
	}, nil)

	//絶対値指定なので 4 > 3 で弾かれる
	_, err := uc.UpdateItem(context.Background(), 1, 10, 4)
	assertErrCode(t, err, CodeInsufficientStock)
}

func TestUpdateItem_ItemNotInCart(t *testing.T) {
	uc, carts, items, _, _ := newCartUsecaseForTest()

	carts.On("FindByUserID", mock.Anything, int64(1)).Return(model.Cart{ID: 5, UserID: 1}, nil)
	items.On("FindByCartAndProduct", mock.Anything, int64(5), int64(10)).Return(model.CartItem{}, repo.ErrNotFound)

	_, err := uc.UpdateItem(context.Background(), 1, 10, 2)
	assertErrContains(t, err, "item not found in cart")
}

// =====================
// ApplyCoupon
// =====================

func TestApplyCoupon_EmptyCart(t *testing.T) {
	uc, carts, items, _, _ := newCartUsecaseForTest()

	carts.On("FindByUserID", mock.Anything, int64(1)).Return(model.Cart{ID: 5, UserID: 1}, nil)
	items.On("ListByCartID", mock.Anything, int64(5)).Return([]model.CartItem{}, nil)

	_, err := uc.ApplyCoupon(context.Background(), 1, "SAVE10")
	assertErrCode(t, err, CodeEmptyCart)
}

func TestApplyCoupon_CodeNormalizedToUpper(t *testing.T) {
	uc, carts, items, products, coupons := newCartUsecaseForTest()

	cart := model.Cart{ID: 5, UserID: 1}
	cartItems := []model.CartItem{{CartID: 5, ProductID: 10, Quantity: 2, UnitPrice: 99.99}}

	carts.On("FindByUserID", mock.Anything, int64(1)).Return(cart, nil)
	items.On("ListByCartID", mock.Anything, int64(5)).Return(cartItems, nil)
	products.On("FindByID", mock.Anything, int64(10)).Return(model.Product{ID: 10, Name: "Widget", IsActive: true}, nil)
	//小文字で渡しても大文字で照会される
	coupons.On("FindByCode", mock.Anything, "SAVE10").Return(model.Coupon{
		Code:     "SAVE10",
		Type:     model.CouponTypePercentage,
		Value:    10,
		IsActive: true,
	}, nil)
	carts.On("SaveTotals", mock.Anything, mock.Anything).Return(nil)

	out, err := uc.ApplyCoupon(context.Background(), 1, "  save10 ")
	assert.NoError(t, err)
	assert.Equal(t, "SAVE10", out.CouponCode)
	assert.InDelta(t, 199.98, out.Subtotal, 1e-9)
	assert.InDelta(t, 19.998, out.Discount, 1e-9)
	assert.InDelta(t, 179.982, out.Total, 1e-9)

	coupons.AssertExpectations(t)
}

func TestApplyCoupon_NotFound(t *testing.T) {
	uc, carts, items, _, coupons := newCartUsecaseForTest()

	carts.On("FindByUserID", mock.Anything, int64(1)).Return(model.Cart{ID: 5, UserID: 1}, nil)
	items.On("ListByCartID", mock.Anything, int64(5)).Return([]model.CartItem{
		{CartID: 5, ProductID: 10, Quantity: 1, UnitPrice: 100},
	}, nil)
	coupons.On("FindByCode", mock.Anything, "NOPE").Return(model.Coupon{}, repo.ErrNotFound)

	_, err := uc.ApplyCoupon(context.Background(), 1, "NOPE")
	assertErrCode(t, err, CodeCouponNotApplicable)
	assertErrContains(t, err, CouponReasonNotFound)
}

func TestApplyCoupon_BelowMinSubtotal_NotAttached(t *testing.T) {
	uc, carts, items, _, coupons := newCartUsecaseForTest()

	cart := model.Cart{ID: 5, UserID: 1}
	cartItems := []model.CartItem{{CartID: 5, ProductID: 10, Quantity: 1, UnitPrice: 30}}

	carts.On("FindByUserID", mock.Anything, int64(1)).Return(cart, nil)
	items.On("ListByCartID", mock.Anything, int64(5)).Return(cartItems, nil)
	coupons.On("FindByCode", mock.Anything, "BIG50").Return(model.Coupon{
		Code:        "BIG50",
		Type:        model.CouponTypeFixed,
		Value:       50,
		MinSubtotal: 100,
		IsActive:    true,
	}, nil)
	carts.On("SaveTotals", mock.Anything, mock.MatchedBy(func(c model.Cart) bool {
		//失敗したクーポンはカートに残らない
		return c.CouponCode == ""
	})).Return(nil)

	_, err := uc.ApplyCoupon(context.Background(), 1, "BIG50")
	assertErrCode(t, err, CodeCouponNotApplicable)
	assertErrContains(t, err, "minimum subtotal")

	carts.AssertExpectations(t)
}
