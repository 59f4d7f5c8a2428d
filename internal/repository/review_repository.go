package repository

import (
	"context"

	"shop/internal/domain/model"
)

type ReviewRepository interface {
	//同じ(product, user)があれば上書き、無ければ作成
	Upsert(ctx context.Context, review model.Review) (model.Review, error)

	ListByProductID(ctx context.Context, productID int64, limit int) ([]model.Review, error)

	//商品の平均評価と件数
	AggregateByProductID(ctx context.Context, productID int64) (avg float64, count int64, err error)
}
