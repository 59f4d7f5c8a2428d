package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shop/internal/usecase"
)

// OpenAIClient はOpenAI互換のchat completions APIを叩くAssistantProvider実装。
// xAIやGroqなど互換エンドポイントでも動く。
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewOpenAIClient(baseURL, apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 25 * time.Second,
		},
	}
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatRequest struct {
	Model       string          `json:"model"`
	Messages    []chatMessage   `json:"messages"`
	Tools       json.RawMessage `json:"tools,omitempty"`
	ToolChoice  string          `json:"tool_choice,omitempty"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// モデルに渡すツール定義。
var toolsJSON = json.RawMessage(`[
  {"type":"function","function":{"name":"search_products","description":"Search for products based on query, category, price range","parameters":{"type":"object","properties":{"query":{"type":"string","description":"Search query for products"},"category":{"type":"string","description":"Product category filter"},"limit":{"type":"integer","description":"Max results to return"}}}}},
  {"type":"function","function":{"name":"get_product_details","description":"Get detailed information about a specific product","parameters":{"type":"object","properties":{"product_id":{"type":"integer","description":"Product ID"}},"required":["product_id"]}}},
  {"type":"function","function":{"name":"get_cart_info","description":"Get current cart information for the user","parameters":{"type":"object","properties":{}}}},
  {"type":"function","function":{"name":"track_order","description":"Track order status by order number","parameters":{"type":"object","properties":{"order_number":{"type":"string","description":"Order number to track"}},"required":["order_number"]}}}
]`)

func (c *OpenAIClient) Complete(ctx context.Context, messages []usecase.AssistantMessage) (usecase.AssistantReply, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    toChatMessages(messages),
		Tools:       toolsJSON,
		ToolChoice:  "auto",
		Temperature: 0.7,
		MaxTokens:   1024,
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return usecase.AssistantReply{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(b))
	if err != nil {
		return usecase.AssistantReply{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return usecase.AssistantReply{}, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return usecase.AssistantReply{}, err
	}
	if res.StatusCode >= 400 {
		return usecase.AssistantReply{}, fmt.Errorf("assistant api status %d", res.StatusCode)
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return usecase.AssistantReply{}, fmt.Errorf("assistant api decode: %w", err)
	}
	if len(cr.Choices) == 0 {
		return usecase.AssistantReply{}, fmt.Errorf("assistant api returned no choices")
	}

	msg := cr.Choices[0].Message
	reply := usecase.AssistantReply{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, usecase.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return reply, nil
}

func toChatMessages(in []usecase.AssistantMessage) []chatMessage {
	out := make([]chatMessage, 0, len(in))
	for _, m := range in {
		cm := chatMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			call := chatToolCall{ID: tc.ID, Type: "function"}
			call.Function.Name = tc.Name
			call.Function.Arguments = string(tc.Arguments)
			cm.ToolCalls = append(cm.ToolCalls, call)
		}
		out = append(out, cm)
	}
	return out
}
