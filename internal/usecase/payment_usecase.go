package usecase

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"go.uber.org/zap"
)

// 決済プロバイダから見えるインテントの状態
const PaymentIntentStatusSucceeded = "succeeded"

type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
	//最小通貨単位（セント）
	Amount   int64
	Currency string
}

// PaymentProvider は外部決済サービスの窓口。
type PaymentProvider interface {
	CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (PaymentIntent, error)
	RetrieveIntent(ctx context.Context, id string) (PaymentIntent, error)
}

type PaymentUsecase struct {
	provider     PaymentProvider
	cartRepo     repo.CartRepository
	cartItemRepo repo.CartItemRepository
	couponRepo   repo.CouponRepository
	orderUC      *OrderUsecase
	currency     string
	logger       *zap.Logger
}

func NewPaymentUsecase(
	provider PaymentProvider,
	cartRepo repo.CartRepository,
	cartItemRepo repo.CartItemRepository,
	couponRepo repo.CouponRepository,
	orderUC *OrderUsecase,
	currency string,
	logger *zap.Logger,
) *PaymentUsecase {
	if currency == "" {
		currency = "usd"
	}
	return &PaymentUsecase{
		provider:     provider,
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		couponRepo:   couponRepo,
		orderUC:      orderUC,
		currency:     currency,
		logger:       logger,
	}
}

type CreateIntentOutput struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// 金額はセントに丸めて渡す
func toCents(amount float64) int64 {
	cents := int64(math.Round(amount * 100))
	if cents < 0 {
		return 0
	}
	return cents
}

// CreatePaymentIntent はカートの現在合計で決済インテントを作る。
func (u *PaymentUsecase) CreatePaymentIntent(ctx context.Context, userID int64) (CreateIntentOutput, error) {
	if userID <= 0 {
		return CreateIntentOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	cart, err := u.cartRepo.FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return CreateIntentOutput{}, errEmptyCart()
	}
	if err != nil {
		return CreateIntentOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	items, err := u.cartItemRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CreateIntentOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if len(items) == 0 {
		return CreateIntentOutput{}, errEmptyCart()
	}

	//金額は今の状態で再計算してから決める
	if err := recalcCartTotals(ctx, u.couponRepo, &cart, items, time.Now()); err != nil {
		return CreateIntentOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if err := u.cartRepo.SaveTotals(ctx, cart); err != nil {
		return CreateIntentOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	amount := toCents(cart.Total)
	if amount <= 0 {
		return CreateIntentOutput{}, NewHTTPError(http.StatusBadRequest, "cart total is invalid")
	}

	intent, err := u.provider.CreateIntent(ctx, amount, u.currency, map[string]string{
		"user_id": strconv.FormatInt(userID, 10),
		"cart_id": strconv.FormatInt(cart.ID, 10),
	})
	if err != nil {
		u.logger.Error("create payment intent failed", zap.Int64("user_id", userID), zap.Error(err))
		return CreateIntentOutput{}, NewHTTPError(http.StatusBadGateway, "payment provider error")
	}

	return CreateIntentOutput{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	}, nil
}

type ConfirmOrderInput struct {
	PaymentIntentID string
	ShippingAddress model.ShippingAddress
}

type ConfirmOrderOutput struct {
	Order  OrderOutput `json:"order"`
	Reused bool        `json:"reused"`
}

// ConfirmOrder は決済完了後の注文確定。
// プロバイダ側で決済が成功していなければ注文は作らない。
// PaymentIntentIDをそのまま冪等キーとして渡すので、リトライされても注文は1件。
func (u *PaymentUsecase) ConfirmOrder(ctx context.Context, userID int64, in ConfirmOrderInput) (ConfirmOrderOutput, error) {
	if userID <= 0 {
		return ConfirmOrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	intentID := strings.TrimSpace(in.PaymentIntentID)
	if intentID == "" {
		return ConfirmOrderOutput{}, NewHTTPError(http.StatusBadRequest, "payment_intent_id is required")
	}

	intent, err := u.provider.RetrieveIntent(ctx, intentID)
	if err != nil {
		u.logger.Error("retrieve payment intent failed", zap.String("intent_id", intentID), zap.Error(err))
		return ConfirmOrderOutput{}, NewHTTPError(http.StatusBadGateway, "payment provider error")
	}
	if intent.Status != PaymentIntentStatusSucceeded {
		return ConfirmOrderOutput{}, NewHTTPError(http.StatusBadRequest, "payment not completed: "+intent.Status)
	}

	order, reused, err := u.orderUC.PlaceOrder(ctx, userID, PlaceOrderInput{
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   model.PaymentMethodStripe,
		PaymentStatus:   model.PaymentStatusCompleted,
		OrderStatus:     model.OrderStatusConfirmed,
		PaymentIntentID: intentID,
	})
	if err != nil {
		return ConfirmOrderOutput{}, err
	}

	return ConfirmOrderOutput{Order: order, Reused: reused}, nil
}
