package model

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

type PaymentMethod string

const (
	PaymentMethodStripe PaymentMethod = "stripe"
	//代金引換
	PaymentMethodCOD PaymentMethod = "cod"
)

// 注文に埋め込む配送先。住所帳は持たず、確定時の入力をそのまま写す。
type ShippingAddress struct {
	FullName   string `gorm:"type:varchar(255)" json:"full_name"`
	Line1      string `gorm:"type:varchar(255)" json:"line1"`
	Line2      string `gorm:"type:varchar(255)" json:"line2"`
	City       string `gorm:"type:varchar(255)" json:"city"`
	State      string `gorm:"type:varchar(100)" json:"state"`
	PostalCode string `gorm:"type:varchar(20)" json:"postal_code"`
	Country    string `gorm:"type:varchar(100)" json:"country"`
	Phone      string `gorm:"type:varchar(30)" json:"phone"`
}

// 注文。確定後は明細もスナップショットも書き換えない（statusだけ遷移する）。
// PaymentIntentIDは決済確認リトライの二重作成防止キー。
// 同じ(user_id, payment_intent_id)の注文は高々1件。
type Order struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNumber     string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"order_number"`
	UserID          int64           `gorm:"not null;index;index:idx_orders_user_payment_intent,unique" json:"user_id"`
	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:ship_" json:"shipping_address"`
	PaymentMethod   PaymentMethod   `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaymentStatus   PaymentStatus   `gorm:"type:varchar(20);not null;index" json:"payment_status"`
	OrderStatus     OrderStatus     `gorm:"type:varchar(20);not null;index" json:"order_status"`
	Subtotal        float64         `gorm:"not null" json:"subtotal"`
	Discount        float64         `gorm:"not null;default:0" json:"discount"`
	ShippingCost    float64         `gorm:"not null;default:0" json:"shipping_cost"`
	Total           float64         `gorm:"not null" json:"total"`
	CouponCode      string          `gorm:"type:varchar(64)" json:"coupon_code,omitempty"`
	PaymentIntentID *string         `gorm:"type:varchar(255);index:idx_orders_user_payment_intent,unique" json:"payment_intent_id,omitempty"`
	CreatedAt       time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
