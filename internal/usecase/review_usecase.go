package usecase

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"
)

type ReviewUsecase struct {
	tx          repo.TransactionManager
	reviewRepo  repo.ReviewRepository
	productRepo repo.ProductRepository
}

func NewReviewUsecase(tx repo.TransactionManager, reviewRepo repo.ReviewRepository, productRepo repo.ProductRepository) *ReviewUsecase {
	return &ReviewUsecase{tx: tx, reviewRepo: reviewRepo, productRepo: productRepo}
}

type ReviewOutput struct {
	ID                 int64     `json:"id"`
	ProductID          int64     `json:"product_id"`
	UserID             int64     `json:"user_id"`
	Rating             int       `json:"rating"`
	Comment            string    `json:"comment"`
	IsVerifiedPurchase bool      `json:"is_verified_purchase"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func toReviewOutput(r model.Review) ReviewOutput {
	return ReviewOutput{
		ID:                 r.ID,
		ProductID:          r.ProductID,
		UserID:             r.UserID,
		Rating:             r.Rating,
		Comment:            r.Comment,
		IsVerifiedPurchase: r.IsVerifiedPurchase,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func (u *ReviewUsecase) ListByProduct(ctx context.Context, productID int64) ([]ReviewOutput, error) {
	if productID <= 0 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if _, err := u.productRepo.FindByID(ctx, productID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NewHTTPError(http.StatusNotFound, "product not found")
		}
		return nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	reviews, err := u.reviewRepo.ListByProductID(ctx, productID, 100)
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	out := make([]ReviewOutput, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, toReviewOutput(r))
	}
	return out, nil
}

type UpsertReviewInput struct {
	Rating  int
	Comment string
}

// UpsertMyReview はレビューの作成・更新と商品の評価集計を同一トランザクションで行う。
// 購入済みユーザーのレビューには認証済みフラグを立てる。
func (u *ReviewUsecase) UpsertMyReview(ctx context.Context, userID, productID int64, in UpsertReviewInput) (ReviewOutput, error) {
	if userID <= 0 {
		return ReviewOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return ReviewOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if in.Rating < 1 || in.Rating > 5 {
		return ReviewOutput{}, NewHTTPError(http.StatusBadRequest, "rating must be between 1 and 5")
	}
	comment := strings.TrimSpace(in.Comment)
	if comment == "" {
		return ReviewOutput{}, NewHTTPError(http.StatusBadRequest, "comment is required")
	}

	var saved model.Review
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		product, err := r.Products().FindByID(ctx, productID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "product not found")
			}
			return err
		}
		if !product.IsActive {
			return NewHTTPError(http.StatusNotFound, "product not found")
		}

		purchased, err := r.Orders().HasCompletedPurchase(ctx, userID, productID)
		if err != nil {
			return err
		}

		review := model.Review{
			ProductID:          productID,
			UserID:             userID,
			Rating:             in.Rating,
			Comment:            comment,
			IsVerifiedPurchase: purchased,
		}
		review, err = r.Reviews().Upsert(ctx, review)
		if err != nil {
			return err
		}

		avg, count, err := r.Reviews().AggregateByProductID(ctx, productID)
		if err != nil {
			return err
		}
		//表示用に小数1桁へ丸める
		product.Rating = math.Round(avg*10) / 10
		product.ReviewCount = count
		if err := r.Products().Update(ctx, product); err != nil {
			return err
		}

		saved = review
		return nil
	})
	if err != nil {
		if he, ok := AsHTTPError(err); ok {
			return ReviewOutput{}, he
		}
		return ReviewOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return toReviewOutput(saved), nil
}
