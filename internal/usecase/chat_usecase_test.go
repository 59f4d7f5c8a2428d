package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"shop/internal/domain/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type assistantProviderMock struct{ mock.Mock }

func (m *assistantProviderMock) Complete(ctx context.Context, messages []AssistantMessage) (AssistantReply, error) {
	args := m.Called(ctx, messages)
	r, _ := args.Get(0).(AssistantReply)
	return r, args.Error(1)
}

type chatRepoMock struct{ mock.Mock }

func (m *chatRepoMock) Append(ctx context.Context, msg model.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *chatRepoMock) ListBySession(ctx context.Context, userID int64, sessionID string, limit int) ([]model.ChatMessage, error) {
	args := m.Called(ctx, userID, sessionID, limit)
	msgs, _ := args.Get(0).([]model.ChatMessage)
	return msgs, args.Error(1)
}

func newChatTestEnv() (*ChatUsecase, *assistantProviderMock, *chatRepoMock, *productRepoMock, *orderRepoMock) {
	provider := new(assistantProviderMock)
	chats := new(chatRepoMock)
	products := new(productRepoMock)
	orders := new(orderRepoMock)

	cartUC, carts, cartItems, _, _ := newCartUsecaseForTest()
	//get_cart_info用に空カートで固定
	carts.On("GetOrCreateByUserID", mock.Anything, mock.Anything).Return(model.Cart{ID: 1, UserID: 1}, nil)
	carts.On("FindByUserID", mock.Anything, mock.Anything).Return(model.Cart{ID: 1, UserID: 1}, nil)
	carts.On("SaveTotals", mock.Anything, mock.Anything).Return(nil)
	cartItems.On("ListByCartID", mock.Anything, mock.Anything).Return([]model.CartItem{}, nil)

	uc := NewChatUsecase(provider, chats, products, orders, cartUC, zap.NewNop())
	return uc, provider, chats, products, orders
}

func TestChat_EmptyMessage(t *testing.T) {
	uc, _, _, _, _ := newChatTestEnv()

	_, err := uc.Chat(context.Background(), 1, ChatInput{Message: "   "})
	assertErrContains(t, err, "message is required")
}

func TestChat_InvalidSessionID(t *testing.T) {
	uc, _, _, _, _ := newChatTestEnv()

	_, err := uc.Chat(context.Background(), 1, ChatInput{SessionID: "not-a-uuid", Message: "hi"})
	assertErrContains(t, err, "invalid session_id")
}

func TestChat_NewSessionGetsUUID(t *testing.T) {
	uc, provider, chats, _, _ := newChatTestEnv()

	chats.On("ListBySession", mock.Anything, int64(1), mock.Anything, assistantHistoryLimit).Return([]model.ChatMessage{}, nil)
	provider.On("Complete", mock.Anything, mock.Anything).Return(AssistantReply{Content: "Hello!"}, nil)
	chats.On("Append", mock.Anything, mock.Anything).Return(nil)

	out, err := uc.Chat(context.Background(), 1, ChatInput{Message: "hi"})
	assert.NoError(t, err)
	assert.Equal(t, "Hello!", out.Reply)

	_, parseErr := uuid.Parse(out.SessionID)
	assert.NoError(t, parseErr)

	//user分とassistant分で2回保存される
	chats.AssertNumberOfCalls(t, "Append", 2)
}

func TestChat_TimeoutMapsToAssistantTimeout(t *testing.T) {
	uc, provider, chats, _, _ := newChatTestEnv()

	chats.On("ListBySession", mock.Anything, int64(1), mock.Anything, assistantHistoryLimit).Return([]model.ChatMessage{}, nil)
	provider.On("Complete", mock.Anything, mock.Anything).Return(AssistantReply{}, context.DeadlineExceeded)

	_, err := uc.Chat(context.Background(), 1, ChatInput{Message: "hi"})
	assertErrCode(t, err, CodeAssistantTimeout)
	he, _ := AsHTTPError(err)
	assert.Equal(t, 504, he.Status)

	//タイムアウト時は履歴も残さない
	chats.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestChat_ToolCallRound(t *testing.T) {
	uc, provider, chats, products, _ := newChatTestEnv()

	chats.On("ListBySession", mock.Anything, int64(1), mock.Anything, assistantHistoryLimit).Return([]model.ChatMessage{}, nil)
	chats.On("Append", mock.Anything, mock.Anything).Return(nil)

	// 1回目：ツール呼び出し、2回目：最終回答
	provider.On("Complete", mock.Anything, mock.Anything).Return(AssistantReply{
		ToolCalls: []ToolCall{{
			ID:        "call_1",
			Name:      "search_products",
			Arguments: json.RawMessage(`{"query":"widget"}`),
		}},
	}, nil).Once()
	provider.On("Complete", mock.Anything, mock.Anything).Return(AssistantReply{
		Content: "We have the Widget for $25.",
	}, nil).Once()

	products.On("ListPublic", mock.Anything, mock.Anything).Return([]model.Product{
		{ID: 10, Name: "Widget", Price: 25, Stock: 3, IsActive: true},
	}, int64(1), nil)

	out, err := uc.Chat(context.Background(), 1, ChatInput{Message: "do you have widgets?"})
	assert.NoError(t, err)
	assert.Equal(t, "We have the Widget for $25.", out.Reply)

	provider.AssertNumberOfCalls(t, "Complete", 2)
	products.AssertCalled(t, "ListPublic", mock.Anything, mock.Anything)
}

func TestChat_ToolRoundsBounded(t *testing.T) {
	uc, provider, chats, products, _ := newChatTestEnv()

	chats.On("ListBySession", mock.Anything, int64(1), mock.Anything, assistantHistoryLimit).Return([]model.ChatMessage{}, nil)
	chats.On("Append", mock.Anything, mock.Anything).Return(nil)
	products.On("ListPublic", mock.Anything, mock.Anything).Return([]model.Product{}, int64(0), nil)

	//毎回ツールを要求し続けるモデル
	provider.On("Complete", mock.Anything, mock.Anything).Return(AssistantReply{
		ToolCalls: []ToolCall{{
			ID:        "call_n",
			Name:      "search_products",
			Arguments: json.RawMessage(`{"query":"loop"}`),
		}},
	}, nil)

	out, err := uc.Chat(context.Background(), 1, ChatInput{Message: "loop"})
	assert.NoError(t, err)
	assert.NotEmpty(t, out.Reply)

	//初回+リトライ上限で打ち切られる
	provider.AssertNumberOfCalls(t, "Complete", assistantMaxToolRounds+1)
}

func TestChat_TrackOrderToolHidesOthersOrders(t *testing.T) {
	uc, provider, chats, _, orders := newChatTestEnv()

	chats.On("ListBySession", mock.Anything, int64(1), mock.Anything, assistantHistoryLimit).Return([]model.ChatMessage{}, nil)
	chats.On("Append", mock.Anything, mock.Anything).Return(nil)

	//他人の注文番号を聞いてきた
	orders.On("FindByOrderNumber", mock.Anything, "ORD-X").Return(model.Order{
		ID: 777, OrderNumber: "ORD-X", UserID: 2,
	}, nil)

	var toolResult string
	provider.On("Complete", mock.Anything, mock.Anything).Return(AssistantReply{
		ToolCalls: []ToolCall{{
			ID:        "call_1",
			Name:      "track_order",
			Arguments: json.RawMessage(`{"order_number":"ORD-X"}`),
		}},
	}, nil).Once()
	provider.On("Complete", mock.Anything, mock.MatchedBy(func(msgs []AssistantMessage) bool {
		for _, m := range msgs {
			if m.Role == "tool" {
				toolResult = m.Content
			}
		}
		return true
	})).Return(AssistantReply{Content: "I could not find that order."}, nil).Once()

	_, err := uc.Chat(context.Background(), 1, ChatInput{Message: "where is ORD-X?"})
	assert.NoError(t, err)
	assert.Contains(t, toolResult, "order not found")
}

func TestChat_TrackOrderToolReturnsStatus(t *testing.T) {
	uc, provider, chats, _, orders := newChatTestEnv()

	chats.On("ListBySession", mock.Anything, int64(1), mock.Anything, assistantHistoryLimit).Return([]model.ChatMessage{}, nil)
	chats.On("Append", mock.Anything, mock.Anything).Return(nil)

	//本人の注文はステータスまで返す
	orders.On("FindByOrderNumber", mock.Anything, "ORD-Y").Return(model.Order{
		ID:            888,
		OrderNumber:   "ORD-Y",
		UserID:        1,
		OrderStatus:   model.OrderStatusConfirmed,
		PaymentStatus: model.PaymentStatusCompleted,
		Total:         188.982,
	}, nil)

	var toolResult string
	provider.On("Complete", mock.Anything, mock.Anything).Return(AssistantReply{
		ToolCalls: []ToolCall{{
			ID:        "call_1",
			Name:      "track_order",
			Arguments: json.RawMessage(`{"order_number":"ORD-Y"}`),
		}},
	}, nil).Once()
	provider.On("Complete", mock.Anything, mock.MatchedBy(func(msgs []AssistantMessage) bool {
		for _, m := range msgs {
			if m.Role == "tool" {
				toolResult = m.Content
			}
		}
		return true
	})).Return(AssistantReply{Content: "Your order is confirmed."}, nil).Once()

	_, err := uc.Chat(context.Background(), 1, ChatInput{Message: "where is ORD-Y?"})
	assert.NoError(t, err)
	assert.Contains(t, toolResult, `"status":"confirmed"`)
	assert.Contains(t, toolResult, `"payment_status":"completed"`)
	assert.Contains(t, toolResult, "ORD-Y")
}
