package repository

import (
	"context"

	"shop/internal/domain/model"
)

type ChatRepository interface {
	Append(ctx context.Context, msg model.ChatMessage) error

	//セッションの履歴を古い順で返す
	ListBySession(ctx context.Context, userID int64, sessionID string, limit int) ([]model.ChatMessage, error)
}
