package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"storefront-checkout/internal/config"
	"storefront-checkout/internal/model"
	"time"
)

// Hosted-intent provider statuses as they appear on the wire.
const (
	HostedStatusSucceeded      = "succeeded"
	HostedStatusRequiresAction = "requires_action"
	HostedStatusFailed         = "failed"
)

// ErrIntentStale is returned when the provider reports the intent can no
// longer be confirmed (expired or amount changed underneath it). The
// caller must request a fresh intent rather than retry against this one.
var ErrIntentStale = errors.New("payment intent is stale")

// DeclineError carries the provider's user-facing decline message.
type DeclineError struct {
	Code    string
	Message string
}

func (e *DeclineError) Error() string {
	return fmt.Sprintf("payment declined (%s): %s", e.Code, e.Message)
}

type HostedClient interface {
	CreateIntent(ctx context.Context, req *CreateIntentRequest) (*model.HostedIntentResult, error)
	ConfirmIntent(ctx context.Context, intentID, methodToken string) (*model.HostedConfirmResult, error)
	ResolveAction(ctx context.Context, intentID, actionResult string) (*model.HostedConfirmResult, error)
	PublishableKey(ctx context.Context) (string, error)
}

type CreateIntentRequest struct {
	Value      string // final quote amount, decimal string
	Currency   string
	Email      string
	CouponCode string
}

type hostedClientImpl struct {
	httpClient *http.Client
	baseApiURL string
	secretKey  string
}

func NewHostedClient(cfg *config.Hosted) HostedClient {
	return &hostedClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL: cfg.BaseApiURL,
		secretKey:  cfg.SecretKey,
	}
}

func (c *hostedClientImpl) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal req payload: %w", err)
		}
		body = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseApiURL+path, body)
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil {
			switch apiErr.Error.Code {
			case "intent_expired", "intent_amount_mismatch":
				return ErrIntentStale
			case "card_declined", "invalid_payment_method", "authentication_failed":
				return &DeclineError{Code: apiErr.Error.Code, Message: apiErr.Error.Message}
			}
		}
		return fmt.Errorf("hosted provider error %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode hosted response: %w", err)
	}
	return nil
}

func (c *hostedClientImpl) CreateIntent(ctx context.Context, intentReq *CreateIntentRequest) (*model.HostedIntentResult, error) {
	payload := map[string]interface{}{
		"amount": map[string]string{
			"currency_code": intentReq.Currency,
			"value":         intentReq.Value,
		},
		"receipt_email": intentReq.Email,
	}
	if intentReq.CouponCode != "" {
		payload["metadata"] = map[string]string{"coupon_code": intentReq.CouponCode}
	}

	var result model.HostedIntentResult
	if err := c.post(ctx, "/v1/payment_intents", payload, &result); err != nil {
		return nil, fmt.Errorf("create hosted intent: %w", err)
	}
	return &result, nil
}

func (c *hostedClientImpl) ConfirmIntent(ctx context.Context, intentID, methodToken string) (*model.HostedConfirmResult, error) {
	payload := map[string]string{
		"payment_method": methodToken,
	}

	var result model.HostedConfirmResult
	err := c.post(ctx, fmt.Sprintf("/v1/payment_intents/%s/confirm", intentID), payload, &result)
	if err != nil {
		return nil, fmt.Errorf("confirm hosted intent: %w", err)
	}
	return &result, nil
}

func (c *hostedClientImpl) ResolveAction(ctx context.Context, intentID, actionResult string) (*model.HostedConfirmResult, error) {
	payload := map[string]string{
		"action_result": actionResult,
	}

	var result model.HostedConfirmResult
	err := c.post(ctx, fmt.Sprintf("/v1/payment_intents/%s/resolve_action", intentID), payload, &result)
	if err != nil {
		return nil, fmt.Errorf("resolve intent action: %w", err)
	}
	return &result, nil
}

func (c *hostedClientImpl) PublishableKey(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseApiURL+"/v1/publishable_key", nil)
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	var res struct {
		PublishableKey string `json:"publishable_key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("decode publishable key response: %w", err)
	}
	return res.PublishableKey, nil
}
