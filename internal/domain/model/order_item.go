package model

import "time"

// 注文明細。購入時点の商品名・価格・画像を写して持つ。
// 以後の商品編集の影響を受けない。
type OrderItem struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID       int64     `gorm:"not null;index" json:"order_id"`
	ProductID     int64     `gorm:"not null;index" json:"product_id"`
	NameSnapshot  string    `gorm:"type:varchar(255);not null" json:"name"`
	PriceSnapshot float64   `gorm:"not null" json:"price"`
	Quantity      int64     `gorm:"not null" json:"quantity"`
	ImageSnapshot string    `gorm:"type:varchar(500)" json:"image"`
	CreatedAt     time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
