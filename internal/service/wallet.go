package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-checkout/internal/client"
	"storefront-checkout/internal/dto"
	"storefront-checkout/internal/metrics"
	"storefront-checkout/internal/model"
	"storefront-checkout/internal/pricing"
	"storefront-checkout/internal/signal"

	"go.uber.org/zap"
)

// StartWallet opens a wallet attempt: creates a provider order for the
// quote and hands back the approval URL for the popup. Must be invoked
// directly from the user's click (popup-blocker constraint), so the
// approval URL is returned synchronously; everything after runs off the
// completion signals.
func (s *CheckoutService) StartWallet(ctx context.Context, req *dto.StartCheckoutRequest, sessionAcctID string) (*dto.StartWalletResponse, error) {
	a := s.newAttempt(req, pricing.MethodWalletPopup, sessionAcctID)

	quote, err := s.resolveQuote(a.Cart, a.GeoKey, req.CouponCode, pricing.MethodWalletPopup)
	if err != nil {
		return nil, err
	}

	// Capture happens asynchronously; returning-customer credentials are
	// checked now so a bad password cannot surface after approval.
	if a.Mode == ModeReturning && a.SessionAcctID == "" {
		if err := s.materializer.Authenticate(ctx, a.Email, req.Password); err != nil {
			return nil, err
		}
	}

	a.mu.Lock()
	a.quote = quote
	a.state = StateOrderRequested
	a.mu.Unlock()

	resp, err := s.walletClient.CreateOrder(ctx, &client.CreateWalletOrderRequest{
		Value:     quote.FinalAmount.StringFixed(2),
		Currency:  quote.Currency,
		ReturnURL: fmt.Sprintf("%s/api/checkout/wallet/return?attempt_id=%s&method=wallet", s.baseURL, a.ID),
		CancelURL: fmt.Sprintf("%s/api/checkout/wallet/cancel?attempt_id=%s", s.baseURL, a.ID),
	})
	if err != nil {
		s.setRetryable(a, StateFailed, err.Error())
		return nil, fmt.Errorf("create wallet order: %w", err)
	}

	metrics.WalletOrdersCreatedTotal.Inc()

	if err := s.intentRepo.Create(ctx, &model.PaymentIntent{
		ID:          resp.OrderID,
		AttemptID:   a.ID,
		Kind:        model.IntentKindWallet,
		ApprovalURL: resp.ApproveURL,
		Status:      model.IntentStatusCreated,
		AmountCents: quote.Cents(),
		Currency:    quote.Currency,
	}); err != nil {
		s.logger.Error("store wallet intent", zap.String("order_id", resp.OrderID), zap.Error(err))
	}

	watch := signal.NewWatch(resp.OrderID, s.slot, s.pollInterval)
	watch.Start(context.Background())

	a.mu.Lock()
	a.walletOrderID = resp.OrderID
	a.watch = watch
	a.state = StateAwaitingSignal
	a.mu.Unlock()
	s.attempts.indexOrder(resp.OrderID, a)

	go s.awaitApproval(a)

	return &dto.StartWalletResponse{
		AttemptID:   a.ID,
		OrderID:     resp.OrderID,
		ApprovalURL: resp.ApproveURL,
		Quote:       quoteResponse(quote),
	}, nil
}

// awaitApproval blocks on the watch until one of the three signals wins
// or the approval window expires, then captures at most once.
func (s *CheckoutService) awaitApproval(a *Attempt) {
	ctx := context.Background()
	sig := a.watch.Wait(ctx, s.approvalTimeout)

	if sig.Cancelled {
		// Clean cancellation: no capture call, no partial charge.
		metrics.WalletCancelledTotal.WithLabelValues(sig.Source).Inc()
		s.setRetryable(a, StateFailed, "wallet approval cancelled")
		if err := s.intentRepo.MarkStatus(ctx, a.walletOrderID, model.IntentStatusFailed); err != nil {
			s.logger.Warn("mark wallet intent failed", zap.String("order_id", a.walletOrderID), zap.Error(err))
		}
		s.logger.Info("wallet attempt cancelled",
			zap.String("attempt_id", a.ID),
			zap.String("order_id", a.walletOrderID),
			zap.String("source", sig.Source))
		return
	}

	s.captureWallet(ctx, a, sig)
}

func (s *CheckoutService) captureWallet(ctx context.Context, a *Attempt, sig signal.Signal) {
	a.mu.Lock()
	a.state = StateCapturing
	orderID := a.walletOrderID
	a.mu.Unlock()

	metrics.WalletCapturesTotal.Inc()
	start := time.Now()
	_, err := s.walletClient.CaptureOrder(ctx, orderID)
	metrics.CaptureLatency.Observe(time.Since(start).Seconds())

	if errors.Is(err, client.ErrAlreadyCaptured) {
		// The backend treats the order id as an idempotency key. A
		// duplicate from a page reload is a terminal no-op when our own
		// order record exists; anything else is a real failure.
		if order, lookupErr := s.materializer.LookupOrder(ctx, orderID); lookupErr == nil {
			s.markWalletSucceeded(a, orderID, order.OrderID, "")
			return
		}
		err = fmt.Errorf("capture wallet order: %w", err)
	}
	if err != nil {
		// Capture failures are surfaced, never silently retried.
		s.setRetryable(a, StateFailed, err.Error())
		if markErr := s.intentRepo.MarkStatus(ctx, orderID, model.IntentStatusFailed); markErr != nil {
			s.logger.Warn("mark wallet intent failed", zap.String("order_id", orderID), zap.Error(markErr))
		}
		s.logger.Error("wallet capture failed",
			zap.String("attempt_id", a.ID),
			zap.String("order_id", orderID),
			zap.Error(err))
		return
	}

	s.finalizeWallet(ctx, a, orderID, sig.Payload.PayerID)
}

func (s *CheckoutService) finalizeWallet(ctx context.Context, a *Attempt, orderID, payerID string) {
	a.mu.Lock()
	if a.finalized {
		a.mu.Unlock()
		return
	}
	a.finalized = true
	quote := a.quote
	a.mu.Unlock()

	order, token, err := s.materializer.Finalize(ctx, &FinalizeInput{
		PaymentRef:       orderID,
		Mode:             a.Mode,
		SessionAccountID: a.SessionAcctID,
		Email:            a.Email,
		Password:         a.Password,
		FullName:         a.FullName,
		PayerID:          payerID,
		Quote:            quote,
		Cart:             a.Cart,
	})
	if err != nil {
		a.mu.Lock()
		a.finalized = false
		a.state = StateFailed
		a.lastErr = err.Error()
		a.mu.Unlock()
		s.logger.Error("materialize wallet order",
			zap.String("order_id", orderID),
			zap.Error(err))
		return
	}

	if err := s.intentRepo.MarkStatus(ctx, orderID, model.IntentStatusSucceeded); err != nil {
		s.logger.Warn("mark wallet intent succeeded", zap.String("order_id", orderID), zap.Error(err))
	}

	s.markWalletSucceeded(a, orderID, order.OrderID, token)
}

func (s *CheckoutService) markWalletSucceeded(a *Attempt, walletOrderID, orderID, token string) {
	a.mu.Lock()
	a.state = StateSucceeded
	a.resultOrder = orderID
	if token != "" {
		a.sessionToken = token
	}
	a.mu.Unlock()

	s.logger.Info("wallet checkout succeeded",
		zap.String("attempt_id", a.ID),
		zap.String("wallet_order_id", walletOrderID),
		zap.String("order_id", orderID))
}

// WalletSignal relays the popup's success message into the watch. Origin
// validation happens at the HTTP boundary; here only the payload shape
// and order id are checked.
func (s *CheckoutService) WalletSignal(sig *dto.WalletSignal) error {
	if sig.Type != "wallet_success" || sig.OrderID == "" {
		return fmt.Errorf("invalid wallet signal payload")
	}
	a, ok := s.attempts.getByOrderID(sig.OrderID)
	if !ok {
		return ErrAttemptNotFound
	}
	a.watch.Relay(signal.Payload{OrderID: sig.OrderID, PayerID: sig.PayerID})
	return nil
}

// WalletClosed handles the popup-closed report from the opener page.
func (s *CheckoutService) WalletClosed(ctx context.Context, attemptID string) error {
	a, ok := s.attempts.get(attemptID)
	if !ok {
		return ErrAttemptNotFound
	}
	a.mu.Lock()
	watch := a.watch
	a.mu.Unlock()
	if watch == nil {
		return ErrInvalidState
	}
	watch.ReportClosed(ctx)
	return nil
}

// WalletReturn is called by the provider's redirect back into the popup:
// it persists the success payload in the shared-storage slot (so a missed
// message is still recoverable) and relays it directly when the attempt
// is live in this process.
func (s *CheckoutService) WalletReturn(ctx context.Context, orderID, payerID string) error {
	if orderID == "" {
		return fmt.Errorf("missing wallet order token")
	}
	payload := signal.Payload{OrderID: orderID, PayerID: payerID}
	if err := s.slot.Put(ctx, orderID, payload); err != nil {
		return fmt.Errorf("write storage slot: %w", err)
	}
	if a, ok := s.attempts.getByOrderID(orderID); ok {
		a.watch.Relay(payload)
	}
	return nil
}
