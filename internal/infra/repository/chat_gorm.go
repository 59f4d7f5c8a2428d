package repository

import (
	"context"

	"shop/internal/domain/model"

	"gorm.io/gorm"
)

type ChatGormRepository struct {
	db *gorm.DB
}

func NewChatGormRepository(db *gorm.DB) *ChatGormRepository {
	return &ChatGormRepository{db: db}
}

func (r *ChatGormRepository) Append(ctx context.Context, msg model.ChatMessage) error {
	return r.db.WithContext(ctx).Create(&msg).Error
}

// セッションの履歴を古い順で返す。
func (r *ChatGormRepository) ListBySession(ctx context.Context, userID int64, sessionID string, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var msgs []model.ChatMessage
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("id asc").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return []model.ChatMessage{}, err
	}

	return msgs, nil
}
