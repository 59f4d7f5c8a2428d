package model

import "time"

// カート。1ユーザーにつき1つで、削除はしない。
// 注文確定後は明細と合計をリセットして使い回す。
// 合計は total = max(0, subtotal - discount) を常に保つ。
type Cart struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"not null;uniqueIndex" json:"user_id"`
	CouponCode string    `gorm:"type:varchar(64)" json:"coupon_code,omitempty"`
	Subtotal   float64   `gorm:"not null;default:0" json:"subtotal"`
	Discount   float64   `gorm:"not null;default:0" json:"discount"`
	Total      float64   `gorm:"not null;default:0" json:"total"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
