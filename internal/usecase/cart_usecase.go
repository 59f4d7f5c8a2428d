package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"
)

// CartUsecase は /cart の業務ロジック。
// 読み出しのたびに合計を再計算する（価格・クーポンの状態が変わっているかもしれないため）。
type CartUsecase struct {
	cartRepo     repo.CartRepository
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
	couponRepo   repo.CouponRepository
}

func NewCartUsecase(
	cartRepo repo.CartRepository,
	cartItemRepo repo.CartItemRepository,
	productRepo repo.ProductRepository,
	couponRepo repo.CouponRepository,
) *CartUsecase {
	return &CartUsecase{
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		productRepo:  productRepo,
		couponRepo:   couponRepo,
	}
}

type CartItemResponse struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int64   `json:"quantity"`
	ImageURL  string  `json:"image_url"`
}

type CartResponse struct {
	Items      []CartItemResponse `json:"items"`
	CouponCode string             `json:"coupon_code,omitempty"`
	Subtotal   float64            `json:"subtotal"`
	Discount   float64            `json:"discount"`
	Total      float64            `json:"total"`
}

type AddCartInput struct {
	ProductID int64
	Quantity  int64
}

// recalcCartTotals はカート合計エンジン。
// 小計を明細から再計算し、付いているクーポンを今の状態で再評価する。
// 適用できなくなったクーポンはカートから外す（discountは0に戻す）。
// total = max(0, subtotal - discount) を保証する。
func recalcCartTotals(ctx context.Context, coupons repo.CouponRepository, cart *model.Cart, items []model.CartItem, now time.Time) error {
	var subtotal float64
	for _, it := range items {
		subtotal += it.UnitPrice * float64(it.Quantity)
	}
	cart.Subtotal = subtotal
	cart.Discount = 0

	if cart.CouponCode != "" {
		c, err := coupons.FindByCode(ctx, cart.CouponCode)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if errors.Is(err, repo.ErrNotFound) {
			cart.CouponCode = ""
		} else {
			ev := EvaluateCoupon(c, subtotal, now)
			if ev.Applicable {
				cart.Discount = ev.Discount
			} else {
				cart.CouponCode = ""
			}
		}
	}

	total := cart.Subtotal - cart.Discount
	if total < 0 {
		total = 0
	}
	cart.Total = total
	return nil
}

// GetCart はカート取得（無ければ空で作る）。取得時にも合計を再計算する。
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	cart, err := u.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.refreshAndBuild(ctx, cart)
}

// AddToCart はカートに追加（同一商品は数量加算）。
// 在庫は「既にカートにある数量＋追加分」でチェックする。
func (u *CartUsecase) AddToCart(ctx context.Context, userID int64, in AddCartInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.ProductID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	cart, err := u.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	p, err := u.productRepo.FindByID(ctx, in.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "product not found")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !p.IsActive {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "product not found")
	}

	//既存数量と合わせて在庫を超えないか
	var existingQty int64
	existing, err := u.cartItemRepo.FindByCartAndProduct(ctx, cart.ID, in.ProductID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if err == nil {
		existingQty = existing.Quantity
	}

	if existingQty+in.Quantity > p.Stock {
		return CartResponse{}, errInsufficientStock(p.Name)
	}

	//unit_priceは追加時点の価格で取り直す
	if err := u.cartItemRepo.Upsert(ctx, cart.ID, in.ProductID, in.Quantity, p.Price); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.refreshAndBuild(ctx, cart)
}

// UpdateItem は数量の絶対値指定。0以下は削除扱い（在庫チェックしない）。
func (u *CartUsecase) UpdateItem(ctx context.Context, userID int64, productID int64, quantity int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}

	cart, err := u.cartRepo.FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "cart not found")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if _, err := u.cartItemRepo.FindByCartAndProduct(ctx, cart.ID, productID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, NewHTTPError(http.StatusNotFound, "item not found in cart")
		}
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if quantity <= 0 {
		if err := u.cartItemRepo.DeleteByCartAndProduct(ctx, cart.ID, productID); err != nil {
			return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return u.refreshAndBuild(ctx, cart)
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "product not found")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if quantity > p.Stock {
		return CartResponse{}, errInsufficientStock(p.Name)
	}

	if err := u.cartItemRepo.SetQuantity(ctx, cart.ID, productID, quantity, p.Price); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, NewHTTPError(http.StatusNotFound, "item not found in cart")
		}
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.refreshAndBuild(ctx, cart)
}

func (u *CartUsecase) RemoveItem(ctx context.Context, userID int64, productID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}

	cart, err := u.cartRepo.FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "cart not found")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	err = u.cartItemRepo.DeleteByCartAndProduct(ctx, cart.ID, productID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.refreshAndBuild(ctx, cart)
}

func (u *CartUsecase) ClearCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	cart, err := u.cartRepo.FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "cart not found")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if err := u.cartRepo.Reset(ctx, cart.ID); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return CartResponse{Items: []CartItemResponse{}}, nil
}

// ApplyCoupon はクーポンをカートに付ける。
// 適用できない場合はカートに残さない（付けただけでは使用回数を消費しない）。
func (u *CartUsecase) ApplyCoupon(ctx context.Context, userID int64, code string) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "code is required")
	}

	cart, err := u.cartRepo.FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, errEmptyCart()
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	items, err := u.cartItemRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if len(items) == 0 {
		return CartResponse{}, errEmptyCart()
	}

	c, err := u.couponRepo.FindByCode(ctx, normalized)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, errCouponNotApplicable(CouponReasonNotFound)
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	var subtotal float64
	for _, it := range items {
		subtotal += it.UnitPrice * float64(it.Quantity)
	}

	ev := EvaluateCoupon(c, subtotal, time.Now())
	if !ev.Applicable {
		//外れた状態を保存して、理由を返す
		cart.CouponCode = ""
		if err := recalcCartTotals(ctx, u.couponRepo, &cart, items, time.Now()); err != nil {
			return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if err := u.cartRepo.SaveTotals(ctx, cart); err != nil {
			return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return CartResponse{}, errCouponNotApplicable(ev.Reason)
	}

	cart.CouponCode = normalized
	cart.Subtotal = subtotal
	cart.Discount = ev.Discount
	cart.Total = subtotal - ev.Discount
	if cart.Total < 0 {
		cart.Total = 0
	}

	if err := u.cartRepo.SaveTotals(ctx, cart); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildResponse(ctx, cart, items)
}

func (u *CartUsecase) RemoveCoupon(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	cart, err := u.cartRepo.FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "cart not found")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	cart.CouponCode = ""
	return u.refreshAndBuildFrom(ctx, cart)
}

// refreshAndBuild は明細を読み直してから再計算・保存・レスポンス作成まで行う。
func (u *CartUsecase) refreshAndBuild(ctx context.Context, cart model.Cart) (CartResponse, error) {
	//保存済みのクーポンを評価対象にするため読み直す
	fresh, err := u.cartRepo.FindByUserID(ctx, cart.UserID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return u.refreshAndBuildFrom(ctx, fresh)
}

func (u *CartUsecase) refreshAndBuildFrom(ctx context.Context, cart model.Cart) (CartResponse, error) {
	items, err := u.cartItemRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if err := recalcCartTotals(ctx, u.couponRepo, &cart, items, time.Now()); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if err := u.cartRepo.SaveTotals(ctx, cart); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildResponse(ctx, cart, items)
}

func (u *CartUsecase) buildResponse(ctx context.Context, cart model.Cart, items []model.CartItem) (CartResponse, error) {
	respItems := make([]CartItemResponse, 0, len(items))

	for _, it := range items {
		name := ""
		image := ""
		if p, err := u.productRepo.FindByID(ctx, it.ProductID); err == nil {
			name = p.Name
			image = p.ImageURL
		}

		respItems = append(respItems, CartItemResponse{
			ProductID: it.ProductID,
			Name:      name,
			Price:     it.UnitPrice,
			Quantity:  it.Quantity,
			ImageURL:  image,
		})
	}

	return CartResponse{
		Items:      respItems,
		CouponCode: cart.CouponCode,
		Subtotal:   cart.Subtotal,
		Discount:   cart.Discount,
		Total:      cart.Total,
	}, nil
}
