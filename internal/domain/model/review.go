package model

import "time"

// レビュー。1ユーザー1商品につき1件（上書き更新）。
// 集計（商品のRating/ReviewCount）は保存と同じトランザクションで更新する。
type Review struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64  `gorm:"not null;index:idx_reviews_product_user,unique" json:"product_id"`
	UserID    int64  `gorm:"not null;index:idx_reviews_product_user,unique" json:"user_id"`
	Rating    int    `gorm:"not null" json:"rating"`
	Comment   string `gorm:"type:text;not null" json:"comment"`
	//購入確認済みか（完了済み注文にその商品があるか）
	IsVerifiedPurchase bool      `gorm:"not null;default:false" json:"is_verified_purchase"`
	CreatedAt          time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
