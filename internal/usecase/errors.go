package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

// チェックアウト系の失敗コード（クライアントが分岐に使う）
const (
	CodeEmptyCart           = "EMPTY_CART"
	CodeInvalidCartItem     = "INVALID_CART_ITEM"
	CodeInsufficientStock   = "INSUFFICIENT_STOCK"
	CodeCouponNotApplicable = "COUPON_NOT_APPLICABLE"
	CodeAssistantTimeout    = "ASSISTANT_TIMEOUT"
)

type HTTPError struct {
	Status  int
	Code    string
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func NewCodedError(status int, code string, message string) error {
	return &HTTPError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func errEmptyCart() error {
	return NewCodedError(http.StatusBadRequest, CodeEmptyCart, "cart is empty")
}

func errInvalidCartItem() error {
	return NewCodedError(http.StatusBadRequest, CodeInvalidCartItem, "cart contains an invalid product")
}

// 商品名を入れて返す（どれが足りないかをユーザーに見せる）
func errInsufficientStock(productName string) error {
	return NewCodedError(http.StatusBadRequest, CodeInsufficientStock, "insufficient stock for "+productName)
}

func errCouponNotApplicable(reason string) error {
	return NewCodedError(http.StatusBadRequest, CodeCouponNotApplicable, reason)
}
