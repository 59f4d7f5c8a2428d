package usecase

import (
	"testing"
	"time"

	"shop/internal/domain/model"

	"github.com/stretchr/testify/assert"
)

func activeCoupon(t model.CouponType, value float64) model.Coupon {
	return model.Coupon{
		Code:     "TESTCODE",
		Type:     t,
		Value:    value,
		IsActive: true,
	}
}

func TestEvaluateCoupon_Percentage(t *testing.T) {
	now := time.Now()

	// 99.99 x 2 = 199.98 の10%オフ
	ev := EvaluateCoupon(activeCoupon(model.CouponTypePercentage, 10), 199.98, now)
	assert.True(t, ev.Applicable)
	assert.InDelta(t, 19.998, ev.Discount, 1e-9)
}

func TestEvaluateCoupon_Fixed(t *testing.T) {
	now := time.Now()

	ev := EvaluateCoupon(activeCoupon(model.CouponTypeFixed, 15), 100, now)
	assert.True(t, ev.Applicable)
	assert.InDelta(t, 15, ev.Discount, 1e-9)
}

func TestEvaluateCoupon_FixedClampedToSubtotal(t *testing.T) {
	now := time.Now()

	//割引が小計を超えない
	ev := EvaluateCoupon(activeCoupon(model.CouponTypeFixed, 50), 30, now)
	assert.True(t, ev.Applicable)
	assert.InDelta(t, 30, ev.Discount, 1e-9)
}

func TestEvaluateCoupon_Percentage100(t *testing.T) {
	now := time.Now()

	ev := EvaluateCoupon(activeCoupon(model.CouponTypePercentage, 100), 42.5, now)
	assert.True(t, ev.Applicable)
	assert.InDelta(t, 42.5, ev.Discount, 1e-9)
}

func TestEvaluateCoupon_Inactive(t *testing.T) {
	now := time.Now()

	c := activeCoupon(model.CouponTypePercentage, 10)
	c.IsActive = false

	//無効化済みは「存在しない」のと同じ扱い
	ev := EvaluateCoupon(c, 100, now)
	assert.False(t, ev.Applicable)
	assert.Equal(t, CouponReasonNotFound, ev.Reason)
}

func TestEvaluateCoupon_Expired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)

	c := activeCoupon(model.CouponTypePercentage, 10)
	c.ExpiresAt = &past

	ev := EvaluateCoupon(c, 100, now)
	assert.False(t, ev.Applicable)
	assert.Equal(t, CouponReasonExpired, ev.Reason)
}

func TestEvaluateCoupon_NotYetExpired(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)

	c := activeCoupon(model.CouponTypePercentage, 10)
	c.ExpiresAt = &future

	ev := EvaluateCoupon(c, 100, now)
	assert.True(t, ev.Applicable)
}

func TestEvaluateCoupon_UsageLimitReached(t *testing.T) {
	now := time.Now()

	c := activeCoupon(model.CouponTypeFixed, 5)
	c.UsageLimit = 3
	c.UsedCount = 3

	ev := EvaluateCoupon(c, 100, now)
	assert.False(t, ev.Applicable)
	assert.Equal(t, CouponReasonLimitReached, ev.Reason)
}

func TestEvaluateCoupon_UsageLimitZeroMeansUnlimited(t *testing.T) {
	now := time.Now()

	c := activeCoupon(model.CouponTypeFixed, 5)
	c.UsageLimit = 0
	c.UsedCount = 100000

	ev := EvaluateCoupon(c, 100, now)
	assert.True(t, ev.Applicable)
}

func TestEvaluateCoupon_BelowMinSubtotal(t *testing.T) {
	now := time.Now()

	c := activeCoupon(model.CouponTypePercentage, 10)
	c.MinSubtotal = 50

	ev := EvaluateCoupon(c, 49.99, now)
	assert.False(t, ev.Applicable)
	assert.Contains(t, ev.Reason, "minimum subtotal")
}

func TestEvaluateCoupon_ExactlyMinSubtotal(t *testing.T) {
	now := time.Now()

	c := activeCoupon(model.CouponTypePercentage, 10)
	c.MinSubtotal = 50

	//ちょうどは適用できる
	ev := EvaluateCoupon(c, 50, now)
	assert.True(t, ev.Applicable)
	assert.InDelta(t, 5, ev.Discount, 1e-9)
}
