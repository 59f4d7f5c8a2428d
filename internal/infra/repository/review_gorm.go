package repository

import (
	"context"
	"errors"
	"time"

	"shop/internal/domain/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReviewGormRepository struct {
	db *gorm.DB
}

func NewReviewGormRepository(db *gorm.DB) *ReviewGormRepository {
	return &ReviewGormRepository{db: db}
}

// 同じ(product, user)があれば上書き、無ければ作成。
func (r *ReviewGormRepository) Upsert(ctx context.Context, review model.Review) (model.Review, error) {
	var saved model.Review

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Review

		findErr := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("product_id = ? AND user_id = ?", review.ProductID, review.UserID).
			First(&existing).Error

		if findErr == nil {
			existing.Rating = review.Rating
			existing.Comment = review.Comment
			existing.IsVerifiedPurchase = review.IsVerifiedPurchase
			existing.UpdatedAt = time.Now()
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			saved = existing
			return nil
		}

		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}

		if err := tx.Create(&review).Error; err != nil {
			return err
		}
		saved = review
		return nil
	})

	if err != nil {
		return model.Review{}, err
	}
	return saved, nil
}

func (r *ReviewGormRepository) ListByProductID(ctx context.Context, productID int64, limit int) ([]model.Review, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var items []model.Review
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id desc").
		Limit(limit).
		Find(&items).Error; err != nil {
		return []model.Review{}, err
	}

	return items, nil
}

func (r *ReviewGormRepository) AggregateByProductID(ctx context.Context, productID int64) (float64, int64, error) {
	type row struct {
		Avg   float64
		Count int64
	}
	var out row

	err := r.db.WithContext(ctx).
		Model(&model.Review{}).
		Select("coalesce(avg(rating), 0) as avg, count(*) as count").
		Where("product_id = ?", productID).
		Scan(&out).Error

	if err != nil {
		return 0, 0, err
	}
	return out.Avg, out.Count, nil
}
