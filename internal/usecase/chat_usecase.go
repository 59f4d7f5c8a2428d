package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// アシスタントとの1往復で許すツール呼び出しラウンド数
const assistantMaxToolRounds = 3

// 1リクエストに与える応答期限
const assistantTimeout = 20 * time.Second

// 履歴としてモデルに渡す直近メッセージ数
const assistantHistoryLimit = 20

type AssistantMessage struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

type AssistantReply struct {
	Content   string
	ToolCalls []ToolCall
}

// AssistantProvider はチャット補完APIの窓口。
type AssistantProvider interface {
	Complete(ctx context.Context, messages []AssistantMessage) (AssistantReply, error)
}

type ChatUsecase struct {
	provider    AssistantProvider
	chatRepo    repo.ChatRepository
	productRepo repo.ProductRepository
	orderRepo   repo.OrderRepository
	cartUC      *CartUsecase
	logger      *zap.Logger
}

func NewChatUsecase(
	provider AssistantProvider,
	chatRepo repo.ChatRepository,
	productRepo repo.ProductRepository,
	orderRepo repo.OrderRepository,
	cartUC *CartUsecase,
	logger *zap.Logger,
) *ChatUsecase {
	return &ChatUsecase{
		provider:    provider,
		chatRepo:    chatRepo,
		productRepo: productRepo,
		orderRepo:   orderRepo,
		cartUC:      cartUC,
		logger:      logger,
	}
}

const assistantSystemPrompt = "You are a helpful shopping assistant for an online store. " +
	"Use the available tools to look up products and the customer's cart before answering. " +
	"Keep answers short and concrete. Never invent products or prices."

type ChatInput struct {
	SessionID string
	Message   string
}

type ChatOutput struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

// Chat は1メッセージを処理して返信を返す。ツール呼び出しは有限回で打ち切る。
func (u *ChatUsecase) Chat(ctx context.Context, userID int64, in ChatInput) (ChatOutput, error) {
	if userID <= 0 {
		return ChatOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return ChatOutput{}, NewHTTPError(http.StatusBadRequest, "message is required")
	}

	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	} else if _, err := uuid.Parse(sessionID); err != nil {
		return ChatOutput{}, NewHTTPError(http.StatusBadRequest, "invalid session_id")
	}

	history, err := u.chatRepo.ListBySession(ctx, userID, sessionID, assistantHistoryLimit)
	if err != nil {
		return ChatOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	messages := make([]AssistantMessage, 0, len(history)+2)
	messages = append(messages, AssistantMessage{Role: "system", Content: assistantSystemPrompt})
	for _, h := range history {
		messages = append(messages, AssistantMessage{Role: string(h.Role), Content: h.Content})
	}
	messages = append(messages, AssistantMessage{Role: "user", Content: msg})

	cctx, cancel := context.WithTimeout(ctx, assistantTimeout)
	defer cancel()

	reply, err := u.runWithTools(cctx, userID, messages)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ChatOutput{}, NewCodedError(http.StatusGatewayTimeout, "ASSISTANT_TIMEOUT", "assistant did not respond in time")
		}
		u.logger.Error("assistant request failed", zap.Int64("user_id", userID), zap.Error(err))
		return ChatOutput{}, NewHTTPError(http.StatusBadGateway, "assistant error")
	}

	//履歴保存の失敗で返信を落とさない
	if err := u.chatRepo.Append(ctx, model.ChatMessage{
		SessionID: sessionID,
		UserID:    userID,
		Role:      model.ChatRoleUser,
		Content:   msg,
	}); err != nil {
		u.logger.Warn("failed to persist user chat message", zap.Error(err))
	}
	if err := u.chatRepo.Append(ctx, model.ChatMessage{
		SessionID: sessionID,
		UserID:    userID,
		Role:      model.ChatRoleAssistant,
		Content:   reply,
	}); err != nil {
		u.logger.Warn("failed to persist assistant chat message", zap.Error(err))
	}

	return ChatOutput{SessionID: sessionID, Reply: reply}, nil
}

func (u *ChatUsecase) runWithTools(ctx context.Context, userID int64, messages []AssistantMessage) (string, error) {
	for round := 0; ; round++ {
		reply, err := u.provider.Complete(ctx, messages)
		if err != nil {
			return "", err
		}
		if len(reply.ToolCalls) == 0 {
			return reply.Content, nil
		}
		if round >= assistantMaxToolRounds {
			//ツールを使い切った場合は素の内容で打ち切る
			if reply.Content != "" {
				return reply.Content, nil
			}
			return "Sorry, I could not finish looking that up. Please try again.", nil
		}

		messages = append(messages, AssistantMessage{
			Role:      "assistant",
			Content:   reply.Content,
			ToolCalls: reply.ToolCalls,
		})
		for _, tc := range reply.ToolCalls {
			result := u.executeTool(ctx, userID, tc)
			messages = append(messages, AssistantMessage{
				Role:       "tool",
				Content:    result,
				ToolCallID: tc.ID,
			})
		}
	}
}

func (u *ChatUsecase) executeTool(ctx context.Context, userID int64, tc ToolCall) string {
	switch tc.Name {
	case "search_products":
		return u.toolSearchProducts(ctx, tc.Arguments)
	case "get_product_details":
		return u.toolProductDetails(ctx, tc.Arguments)
	case "get_cart_info":
		return u.toolCartInfo(ctx, userID)
	case "track_order":
		return u.toolTrackOrder(ctx, userID, tc.Arguments)
	default:
		return `{"error":"unknown tool"}`
	}
}

type toolProductSummary struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Slug     string  `json:"slug"`
	Price    float64 `json:"price"`
	Stock    int64   `json:"stock"`
	Category string  `json:"category"`
	Rating   float64 `json:"rating"`
}

func (u *ChatUsecase) toolSearchProducts(ctx context.Context, args json.RawMessage) string {
	var in struct {
		Query    string `json:"query"`
		Category string `json:"category"`
		Limit    int    `json:"limit"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return `{"error":"invalid arguments"}`
	}
	if in.Limit <= 0 || in.Limit > 10 {
		in.Limit = 5
	}
	products, _, err := u.productRepo.ListPublic(ctx, repo.ProductListQuery{
		Page:     1,
		Limit:    in.Limit,
		Q:        in.Query,
		Category: in.Category,
	})
	if err != nil {
		return `{"error":"search failed"}`
	}
	out := make([]toolProductSummary, 0, len(products))
	for _, p := range products {
		out = append(out, toolProductSummary{
			ID:       p.ID,
			Name:     p.Name,
			Slug:     p.Slug,
			Price:    p.Price,
			Stock:    p.Stock,
			Category: p.Category,
			Rating:   p.Rating,
		})
	}
	b, _ := json.Marshal(map[string]any{"products": out})
	return string(b)
}

func (u *ChatUsecase) toolProductDetails(ctx context.Context, args json.RawMessage) string {
	var in struct {
		ProductID int64 `json:"product_id"`
	}
	if err := json.Unmarshal(args, &in); err != nil || in.ProductID <= 0 {
		return `{"error":"invalid arguments"}`
	}
	p, err := u.productRepo.FindByID(ctx, in.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return `{"error":"product not found"}`
	}
	if err != nil {
		return `{"error":"lookup failed"}`
	}
	b, _ := json.Marshal(map[string]any{
		"id":           p.ID,
		"name":         p.Name,
		"slug":         p.Slug,
		"brand":        p.Brand,
		"category":     p.Category,
		"description":  p.Description,
		"price":        p.Price,
		"stock":        p.Stock,
		"rating":       p.Rating,
		"review_count": p.ReviewCount,
		"is_active":    p.IsActive,
	})
	return string(b)
}

func (u *ChatUsecase) toolTrackOrder(ctx context.Context, userID int64, args json.RawMessage) string {
	var in struct {
		OrderNumber string `json:"order_number"`
	}
	if err := json.Unmarshal(args, &in); err != nil || strings.TrimSpace(in.OrderNumber) == "" {
		return `{"error":"invalid arguments"}`
	}
	order, err := u.orderRepo.FindByOrderNumber(ctx, strings.TrimSpace(in.OrderNumber))
	if errors.Is(err, repo.ErrNotFound) {
		return `{"error":"order not found"}`
	}
	if err != nil {
		return `{"error":"lookup failed"}`
	}
	//他人の注文は見せない
	if order.UserID != userID {
		return `{"error":"order not found"}`
	}
	b, _ := json.Marshal(map[string]any{
		"order_number":   order.OrderNumber,
		"status":         order.OrderStatus,
		"payment_status": order.PaymentStatus,
		"total":          order.Total,
		"created_at":     order.CreatedAt,
	})
	return string(b)
}

func (u *ChatUsecase) toolCartInfo(ctx context.Context, userID int64) string {
	cart, err := u.cartUC.GetCart(ctx, userID)
	if err != nil {
		return `{"error":"cart lookup failed"}`
	}
	b, _ := json.Marshal(cart)
	return string(b)
}
