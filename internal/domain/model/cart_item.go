package model

import "time"

// カートの明細。
// UnitPriceは追加時点の価格スナップショット（追加・数量変更のたびに取り直す）。
type CartItem struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID    int64     `gorm:"not null;index:idx_cart_items_cart_product,unique" json:"cart_id"`
	ProductID int64     `gorm:"not null;index:idx_cart_items_cart_product,unique" json:"product_id"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	UnitPrice float64   `gorm:"not null" json:"unit_price"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
