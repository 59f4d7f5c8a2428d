package model

import "time"

// 割引の種類
type CouponType string

const (
	//小計に対する割合（value = パーセント）
	CouponTypePercentage CouponType = "percentage"
	//固定額
	CouponTypeFixed CouponType = "fixed"
)

// クーポン。コードは大文字に正規化して保存する。
// UsedCountは注文確定時にだけ+1する（カートに付けただけでは消費しない）。
type Coupon struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Code        string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"code"`
	Type        CouponType `gorm:"type:varchar(20);not null" json:"type"`
	Value       float64    `gorm:"not null" json:"value"`
	MinSubtotal float64    `gorm:"not null;default:0" json:"min_subtotal"`
	//0 = 無制限
	UsageLimit int64      `gorm:"not null;default:0" json:"usage_limit"`
	UsedCount  int64      `gorm:"not null;default:0" json:"used_count"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	IsActive   bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
