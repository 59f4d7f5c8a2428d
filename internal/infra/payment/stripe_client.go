package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"shop/internal/usecase"
)

// StripeClient はStripe互換API向けのPaymentProvider実装。
type StripeClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewStripeClient(baseURL, secretKey string) *StripeClient {
	return &StripeClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type intentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *StripeClient) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (usecase.PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", currency)
	form.Set("automatic_payment_methods[enabled]", "true")
	for k, v := range metadata {
		form.Set("metadata["+k+"]", v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return usecase.PaymentIntent{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req)
}

func (c *StripeClient) RetrieveIntent(ctx context.Context, id string) (usecase.PaymentIntent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payment_intents/"+url.PathEscape(id), nil)
	if err != nil {
		return usecase.PaymentIntent{}, err
	}
	return c.do(req)
}

func (c *StripeClient) do(req *http.Request) (usecase.PaymentIntent, error) {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return usecase.PaymentIntent{}, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return usecase.PaymentIntent{}, err
	}

	if res.StatusCode >= 400 {
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
			return usecase.PaymentIntent{}, fmt.Errorf("payment api %d: %s", res.StatusCode, er.Error.Message)
		}
		return usecase.PaymentIntent{}, fmt.Errorf("payment api status %d", res.StatusCode)
	}

	var ir intentResponse
	if err := json.Unmarshal(body, &ir); err != nil {
		return usecase.PaymentIntent{}, fmt.Errorf("payment api decode: %w", err)
	}
	if ir.ID == "" {
		return usecase.PaymentIntent{}, fmt.Errorf("payment api returned empty intent id")
	}

	return usecase.PaymentIntent{
		ID:           ir.ID,
		ClientSecret: ir.ClientSecret,
		Status:       ir.Status,
		Amount:       ir.Amount,
		Currency:     ir.Currency,
	}, nil
}
