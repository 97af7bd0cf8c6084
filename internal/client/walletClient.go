package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"storefront-checkout/internal/config"
	"storefront-checkout/internal/model"
	"strings"
	"time"
)

// ErrAlreadyCaptured is returned when the provider rejects a capture
// because the order was captured before. The backend treats the order id
// as an idempotency key; a duplicate capture is a terminal no-op there.
var ErrAlreadyCaptured = errors.New("wallet order already captured")

type WalletClient interface {
	CreateOrder(ctx context.Context, req *CreateWalletOrderRequest) (*CreateWalletOrderResponse, error)
	CaptureOrder(ctx context.Context, orderID string) (*CaptureWalletOrderResponse, error)
	VerifyWebhookSignature(ctx context.Context, headers http.Header, body []byte) error
}

type CreateWalletOrderRequest struct {
	Value     string // final quote amount, decimal string
	Currency  string
	ReturnURL string
	CancelURL string
}

type CreateWalletOrderResponse struct {
	OrderID    string
	ApproveURL string
}

type CaptureWalletOrderResponse struct {
	OrderID string
	PayerID string
	Status  string
}

type walletClientImpl struct {
	httpClient   *http.Client
	baseApiURL   string
	clientID     string
	clientSecret string
	webhookID    string
}

func NewWalletClient(cfg *config.Wallet) WalletClient {
	return &walletClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL:   cfg.BaseApiURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		webhookID:    cfg.WebhookID,
	}
}

func (c *walletClientImpl) getAccessToken(ctx context.Context) (string, error) {
	auth := base64.StdEncoding.EncodeToString(
		[]byte(c.clientID + ":" + c.clientSecret),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseApiURL+"/v1/oauth2/token",
		bytes.NewBufferString("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	var res struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	return res.AccessToken, nil
}

func (c *walletClientImpl) CreateOrder(ctx context.Context, orderReq *CreateWalletOrderRequest) (*CreateWalletOrderResponse, error) {
	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get wallet access token: %w", err)
	}

	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"amount": map[string]string{
					"currency_code": orderReq.Currency,
					"value":         orderReq.Value,
				},
			},
		},
		"application_context": map[string]string{
			"return_url": orderReq.ReturnURL,
			"cancel_url": orderReq.CancelURL,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal req payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/v2/checkout/orders",
		bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("wallet provider error %d: %s", resp.StatusCode, string(b))
	}

	var result model.WalletOrderResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode wallet response: %w", err)
	}

	approveURL := extractApproveURL(result.Links)
	if approveURL == "" {
		return nil, fmt.Errorf("wallet order %s has no approval link", result.ID)
	}

	return &CreateWalletOrderResponse{
		OrderID:    result.ID,
		ApproveURL: approveURL,
	}, nil
}

func (c *walletClientImpl) CaptureOrder(ctx context.Context, orderID string) (*CaptureWalletOrderResponse, error) {
	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get wallet access token: %w", err)
	}

	url := fmt.Sprintf(
		"%s/v2/checkout/orders/%s/capture",
		c.baseApiURL,
		orderID,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create capture request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wallet capture request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if strings.Contains(string(body), "ORDER_ALREADY_CAPTURED") {
			return nil, ErrAlreadyCaptured
		}
		return nil, fmt.Errorf(
			"wallet capture failed: status=%d body=%s",
			resp.StatusCode,
			string(body),
		)
	}

	var result model.WalletOrderResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode capture response: %w", err)
	}

	return &CaptureWalletOrderResponse{
		OrderID: result.ID,
		PayerID: result.Payer.PayerID,
		Status:  result.Status,
	}, nil
}

func (c *walletClientImpl) VerifyWebhookSignature(ctx context.Context, headers http.Header, body []byte) error {
	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("get wallet access token: %w", err)
	}

	payload := map[string]interface{}{
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_sig":  headers.Get("Paypal-Transmission-Sig"),
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"webhook_id":        c.webhookID,
		"webhook_event":     json.RawMessage(body),
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal verify payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/v1/notifications/verify-webhook-signature",
		bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	var res struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return fmt.Errorf("decode verify response: %w", err)
	}

	if res.VerificationStatus != "SUCCESS" {
		return fmt.Errorf("webhook signature verification failed: %s", res.VerificationStatus)
	}
	return nil
}

func extractApproveURL(links []model.WalletLink) string {
	for _, link := range links {
		if link.Rel == "approve" {
			return link.Href
		}
	}
	return ""
}
