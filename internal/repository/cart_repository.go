package repository

import (
	"context"

	"shop/internal/domain/model"
)

type CartRepository interface {
	//ユーザーのカートを取得し、無ければ空で作る
	GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error)
	FindByUserID(ctx context.Context, userID int64) (model.Cart, error)

	//再計算後の合計とクーポンを保存する
	SaveTotals(ctx context.Context, cart model.Cart) error

	//明細を全削除し、合計とクーポンをゼロに戻す
	Reset(ctx context.Context, cartID int64) error
}
