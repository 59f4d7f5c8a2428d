package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"go.uber.org/zap"
)

// 一意制約に当たったときの内部リトライ用
var errPlaceOrderConflict = errors.New("place order conflict")

const placeOrderMaxAttempts = 3

// OrderUsecase はカートから注文への変換パイプライン。
// 検証（カート再計算・在庫チェック）→ 注文作成 → クーポン消費 → 在庫減算 →
// カートリセット、までを1トランザクションで行う。
type OrderUsecase struct {
	tx     repo.TransactionManager
	logger *zap.Logger
}

func NewOrderUsecase(tx repo.TransactionManager, logger *zap.Logger) *OrderUsecase {
	return &OrderUsecase{tx: tx, logger: logger}
}

type PlaceOrderInput struct {
	ShippingAddress model.ShippingAddress
	PaymentMethod   model.PaymentMethod
	PaymentStatus   model.PaymentStatus
	OrderStatus     model.OrderStatus
	//決済確認リトライの二重作成防止キー（省略可）
	PaymentIntentID string
}

type OrderItemOutput struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int64   `json:"quantity"`
	ImageURL  string  `json:"image_url"`
}

type OrderOutput struct {
	ID              int64                 `json:"id"`
	OrderNumber     string                `json:"order_number"`
	UserID          int64                 `json:"user_id"`
	Items           []OrderItemOutput     `json:"items"`
	ShippingAddress model.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                `json:"payment_method"`
	PaymentStatus   string                `json:"payment_status"`
	OrderStatus     string                `json:"order_status"`
	Subtotal        float64               `json:"subtotal"`
	Discount        float64               `json:"discount"`
	ShippingCost    float64               `json:"shipping_cost"`
	Total           float64               `json:"total"`
	CouponCode      string                `json:"coupon_code,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

// PlaceOrder はカートを注文に変換する。
// 同じ(userID, PaymentIntentID)で呼ばれたら既存の注文を返す（reused=true）。
// その場合、在庫減算もクーポン消費も再実行しない。
func (u *OrderUsecase) PlaceOrder(ctx context.Context, userID int64, in PlaceOrderInput) (OrderOutput, bool, error) {
	if userID <= 0 {
		return OrderOutput{}, false, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(in.ShippingAddress.FullName) == "" || strings.TrimSpace(in.ShippingAddress.Line1) == "" {
		return OrderOutput{}, false, NewHTTPError(http.StatusBadRequest, "shipping address is required")
	}
	switch in.PaymentMethod {
	case model.PaymentMethodStripe, model.PaymentMethodCOD:
	default:
		return OrderOutput{}, false, NewHTTPError(http.StatusBadRequest, "invalid payment method")
	}

	intentID := strings.TrimSpace(in.PaymentIntentID)

	var out OrderOutput
	var reused bool

	//一意制約に当たったらトランザクションごとやり直す。
	//(user, paymentIntent)の重複なら次の周の冒頭で既存注文が見つかる。
	//注文番号の衝突なら次の周で新しい番号を引く。
	var err error
	for attempt := 0; attempt < placeOrderMaxAttempts; attempt++ {
		err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			return u.placeOrderTx(ctx, r, userID, in, intentID, &out, &reused)
		})
		if !errors.Is(err, errPlaceOrderConflict) {
			break
		}
	}
	if errors.Is(err, errPlaceOrderConflict) {
		return OrderOutput{}, false, NewHTTPError(http.StatusConflict, "order conflict")
	}
	if err != nil {
		return OrderOutput{}, false, err
	}

	u.logger.Info("order placed",
		zap.Int64("user_id", userID),
		zap.String("order_number", out.OrderNumber),
		zap.Float64("total", out.Total),
		zap.Bool("reused", reused),
	)
	return out, reused, nil
}

func (u *OrderUsecase) placeOrderTx(ctx context.Context, r repo.TxRepos, userID int64, in PlaceOrderInput, intentID string, out *OrderOutput, reused *bool) error {
	// 1. 冪等チェック：同じ決済参照の注文が既にあればそれを返して終わり
	if intentID != "" {
		existing, found, err := r.Orders().FindByUserAndPaymentIntent(ctx, userID, intentID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if found {
			items, err := r.OrderItems().ListByOrderID(ctx, existing.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			*out = toOrderOutput(existing, items)
			*reused = true
			return nil
		}
	}

	// 2. カート再読込
	cart, err := r.Carts().FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return errEmptyCart()
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if len(cartItems) == 0 {
		return errEmptyCart()
	}

	// 3. 再計算して保存（古い価格・失効クーポンを注文に持ち込まない）
	if err := recalcCartTotals(ctx, r.Coupons(), &cart, cartItems, time.Now()); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if err := r.Carts().SaveTotals(ctx, cart); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	appliedCoupon := cart.CouponCode

	// 4. 在庫検証。全明細を書き込み前にチェックし切る（部分注文を作らない）
	type lineProduct struct {
		item    model.CartItem
		product model.Product
	}
	lines := make([]lineProduct, 0, len(cartItems))

	for _, ci := range cartItems {
		p, err := r.Products().FindByID(ctx, ci.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return errInvalidCartItem()
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !p.IsActive {
			return errInvalidCartItem()
		}
		if p.Stock < ci.Quantity {
			return errInsufficientStock(p.Name)
		}
		lines = append(lines, lineProduct{item: ci, product: p})
	}

	// 5. スナップショット作成
	now := time.Now()
	orderItems := make([]model.OrderItem, 0, len(lines))
	for _, l := range lines {
		orderItems = append(orderItems, model.OrderItem{
			ProductID:     l.item.ProductID,
			NameSnapshot:  l.product.Name,
			PriceSnapshot: l.item.UnitPrice,
			Quantity:      l.item.Quantity,
			ImageSnapshot: l.product.ImageURL,
			CreatedAt:     now,
		})
	}

	// 6. 注文作成
	order := model.Order{
		OrderNumber:     NewOrderNumber(),
		UserID:          userID,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   in.PaymentStatus,
		OrderStatus:     in.OrderStatus,
		Subtotal:        cart.Subtotal,
		Discount:        cart.Discount,
		ShippingCost:    0,
		Total:           cart.Total,
		CouponCode:      appliedCoupon,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if intentID != "" {
		order.PaymentIntentID = &intentID
	}

	orderID, err := r.Orders().Create(ctx, order)
	if errors.Is(err, repo.ErrConflict) {
		//番号衝突か決済参照の同時挿入。全部巻き戻してやり直す
		return errPlaceOrderConflict
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	order.ID = orderID

	if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	// 7. クーポン消費はここでだけ+1する（注文にならなかったカートは消費しない）
	if appliedCoupon != "" {
		if err := r.Coupons().IncrementUsage(ctx, appliedCoupon); err != nil {
			if !errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			//再計算後に無効化された場合。割引は確定済みなので注文はそのまま通す
			u.logger.Warn("coupon vanished before usage increment",
				zap.String("code", appliedCoupon),
				zap.Int64("user_id", userID),
			)
		}
	}

	// 8. 在庫減算。条件付きUPDATEなので並行チェックアウトでも負にならない
	for _, l := range lines {
		ok, err := r.Inventory().DecreaseStockIfEnough(ctx, l.item.ProductID, l.item.Quantity)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !ok {
			//事前チェック後に他の注文が在庫を取った。全部巻き戻す
			return errInsufficientStock(l.product.Name)
		}
	}

	// 9. カートリセット
	if err := r.Carts().Reset(ctx, cart.ID); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	*out = toOrderOutput(order, orderItems)
	*reused = false
	return nil
}

// CreateOrder はStripe以外（代引きなど）の注文作成。
// Stripe決済はPaymentUsecase.ConfirmOrderを使う。
func (u *OrderUsecase) CreateOrder(ctx context.Context, userID int64, address model.ShippingAddress, method model.PaymentMethod) (OrderOutput, error) {
	if method == model.PaymentMethodStripe {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "use payment confirmation for stripe orders")
	}

	out, _, err := u.PlaceOrder(ctx, userID, PlaceOrderInput{
		ShippingAddress: address,
		PaymentMethod:   method,
		PaymentStatus:   model.PaymentStatusCompleted,
		OrderStatus:     model.OrderStatusConfirmed,
	})
	return out, err
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64, page int, limit int) ([]OrderOutput, int64, error) {
	if userID <= 0 {
		return []OrderOutput{}, 0, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var outs []OrderOutput
	var total int64

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, t, err := r.Orders().ListByUserID(ctx, userID, page, limit)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		total = t

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, 0, err
	}
	return outs, total, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.NameSnapshot,
			Price:     it.PriceSnapshot,
			Quantity:  it.Quantity,
			ImageURL:  it.ImageSnapshot,
		})
	}

	return OrderOutput{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		Items:           outItems,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		OrderStatus:     string(o.OrderStatus),
		Subtotal:        o.Subtotal,
		Discount:        o.Discount,
		ShippingCost:    o.ShippingCost,
		Total:           o.Total,
		CouponCode:      o.CouponCode,
		CreatedAt:       o.CreatedAt,
	}
}
