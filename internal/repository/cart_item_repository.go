package repository

import (
	"context"

	"shop/internal/domain/model"
)

type CartItemRepository interface {
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)
	FindByCartAndProduct(ctx context.Context, cartID int64, productID int64) (model.CartItem, error)

	//同一商品は数量加算。unitPriceは追加時点の価格で毎回取り直す
	Upsert(ctx context.Context, cartID int64, productID int64, addQty int64, unitPrice float64) error

	//絶対数量で上書き
	SetQuantity(ctx context.Context, cartID int64, productID int64, qty int64, unitPrice float64) error

	DeleteByCartAndProduct(ctx context.Context, cartID int64, productID int64) error
}
