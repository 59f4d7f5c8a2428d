package model

import (
	"time"

	"gorm.io/gorm"
)

// 商品。価格と在庫はこのレコードが唯一の正。
// カート追加・注文確定のたびにここを読み直す。
type Product struct {
	ID             int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string         `gorm:"type:varchar(255);not null" json:"name"`
	Slug           string         `gorm:"type:varchar(255);not null;uniqueIndex" json:"slug"`
	Brand          string         `gorm:"type:varchar(255)" json:"brand"`
	Category       string         `gorm:"type:varchar(255);index" json:"category"`
	SKU            string         `gorm:"type:varchar(100);not null;uniqueIndex" json:"sku"`
	Description    string         `gorm:"type:text" json:"description"`
	Price          float64        `gorm:"not null" json:"price"`
	CompareAtPrice float64        `json:"compare_at_price"`
	Stock          int64          `gorm:"not null" json:"stock"`
	ImageURL       string         `gorm:"type:varchar(500)" json:"image_url"`
	Rating         float64        `gorm:"not null;default:0" json:"rating"`
	ReviewCount    int64          `gorm:"not null;default:0" json:"review_count"`
	IsActive       bool           `gorm:"not null;default:false" json:"is_active"`
	IsFeatured     bool           `gorm:"not null;default:false" json:"is_featured"`
	CreatedAt      time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}
