package repository

import (
	"context"

	"shop/internal/domain/model"
)

type CouponRepository interface {
	//正規化済み（大文字）のコードで1件取得
	FindByCode(ctx context.Context, code string) (model.Coupon, error)

	//used_countをアトミックに+1する（read-modify-writeしない）
	IncrementUsage(ctx context.Context, code string) error
}
