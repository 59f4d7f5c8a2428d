package repository

import (
	"context"
	"errors"
	"time"

	"shop/internal/domain/model"
)

// 一意制約違反（order_number か (user_id, payment_intent_id)）
var ErrConflict = errors.New("conflict")

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
	From   *time.Time
	To     *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)
	Create(ctx context.Context, order model.Order) (int64, error)
	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error
	UpdatePaymentStatus(ctx context.Context, orderID int64, status model.PaymentStatus) error

	//決済確認リトライの検索（同じ(user, paymentIntentID)なら同じ注文を返す）
	FindByUserAndPaymentIntent(ctx context.Context, userID int64, paymentIntentID string) (model.Order, bool, error)

	//レビューの購入確認（完了済み注文にその商品があるか）
	HasCompletedPurchase(ctx context.Context, userID int64, productID int64) (bool, error)

	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}
