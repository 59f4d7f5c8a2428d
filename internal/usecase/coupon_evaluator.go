package usecase

import (
	"fmt"
	"time"

	"shop/internal/domain/model"
)

// クーポン不適用の理由（そのままエラーメッセージに使う）
const (
	CouponReasonNotFound     = "invalid coupon code"
	CouponReasonExpired      = "coupon has expired"
	CouponReasonLimitReached = "coupon usage limit reached"
)

type CouponEvaluation struct {
	Applicable bool
	Discount   float64
	Reason     string
}

// EvaluateCoupon はクーポンが小計に適用できるか判定し、割引額を計算する。
// 割引は負にならず、小計を超えない。
func EvaluateCoupon(c model.Coupon, subtotal float64, now time.Time) CouponEvaluation {
	if !c.IsActive {
		return CouponEvaluation{Reason: CouponReasonNotFound}
	}
	if c.ExpiresAt != nil && c.ExpiresAt.Before(now) {
		return CouponEvaluation{Reason: CouponReasonExpired}
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return CouponEvaluation{Reason: CouponReasonLimitReached}
	}
	if subtotal < c.MinSubtotal {
		return CouponEvaluation{Reason: fmt.Sprintf("minimum subtotal is %g", c.MinSubtotal)}
	}

	var discount float64
	switch c.Type {
	case model.CouponTypePercentage:
		discount = subtotal * c.Value / 100
	case model.CouponTypeFixed:
		discount = c.Value
	default:
		return CouponEvaluation{Reason: CouponReasonNotFound}
	}

	if discount < 0 {
		discount = 0
	}
	if discount > subtotal {
		discount = subtotal
	}

	return CouponEvaluation{Applicable: true, Discount: discount}
}
