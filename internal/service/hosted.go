package service

import (
	"context"
	"errors"
	"fmt"

	"storefront-checkout/internal/client"
	"storefront-checkout/internal/dto"
	"storefront-checkout/internal/metrics"
	"storefront-checkout/internal/model"
	"storefront-checkout/internal/pricing"

	"go.uber.org/zap"
)

// StartHosted opens (or re-quotes) a hosted-field attempt: it computes
// the quote for the card path and requests a provider payment intent for
// exactly that amount. Passing an existing attempt id supersedes the
// prior intent (coupon changed); the latest request wins.
func (s *CheckoutService) StartHosted(ctx context.Context, req *dto.StartCheckoutRequest, sessionAcctID string) (*dto.StartHostedResponse, error) {
	var a *Attempt
	if req.AttemptID != "" {
		existing, ok := s.attempts.get(req.AttemptID)
		if !ok {
			return nil, ErrAttemptNotFound
		}
		if st := existing.State(); st == StateSucceeded || st == StateFailed {
			return nil, ErrInvalidState
		}
		a = existing
	} else {
		a = s.newAttempt(req, pricing.MethodHostedField, sessionAcctID)
	}

	quote, err := s.resolveQuote(a.Cart, a.GeoKey, req.CouponCode, pricing.MethodHostedField)
	if err != nil {
		return nil, err
	}

	intentID, secret, err := s.requestIntent(ctx, a, quote)
	if err != nil {
		return nil, err
	}

	return &dto.StartHostedResponse{
		AttemptID:    a.ID,
		IntentID:     intentID,
		ClientSecret: secret,
		Quote:        quoteResponse(quote),
	}, nil
}

// requestIntent creates a provider intent for the quote. Last-write-wins:
// the result is discarded if a newer request started while this one was
// in flight.
func (s *CheckoutService) requestIntent(ctx context.Context, a *Attempt, quote pricing.Quote) (string, string, error) {
	a.mu.Lock()
	a.quote = quote
	a.state = StateIntentRequested
	a.seq++
	mySeq := a.seq
	prevIntent := a.intentID
	a.mu.Unlock()

	// A superseded intent must never be confirmed with stale pricing.
	if prevIntent != "" {
		if err := s.intentRepo.MarkStatus(ctx, prevIntent, model.IntentStatusFailed); err != nil {
			s.logger.Warn("mark superseded intent failed", zap.String("intent_id", prevIntent), zap.Error(err))
		}
	}

	result, err := s.hostedClient.CreateIntent(ctx, &client.CreateIntentRequest{
		Value:      quote.FinalAmount.StringFixed(2),
		Currency:   quote.Currency,
		Email:      a.Email,
		CouponCode: quote.CouponCode,
	})
	if err != nil {
		return "", "", fmt.Errorf("create hosted intent: %w", err)
	}

	a.mu.Lock()
	if a.seq != mySeq {
		a.mu.Unlock()
		metrics.IntentsSupersededTotal.Inc()
		return "", "", fmt.Errorf("intent request superseded by a newer one")
	}
	a.intentID = result.ID
	a.clientSecret = result.ClientSecret
	a.state = StateFieldsMounted
	a.mu.Unlock()

	metrics.IntentsCreatedTotal.Inc()

	if err := s.intentRepo.Create(ctx, &model.PaymentIntent{
		ID:           result.ID,
		AttemptID:    a.ID,
		Kind:         model.IntentKindHosted,
		ClientSecret: result.ClientSecret,
		Status:       model.IntentStatusCreated,
		AmountCents:  quote.Cents(),
		Currency:     quote.Currency,
	}); err != nil {
		s.logger.Error("store payment intent", zap.String("intent_id", result.ID), zap.Error(err))
	}

	return result.ID, result.ClientSecret, nil
}

// ConfirmHosted submits the captured payment method against the current
// intent. requires_action rounds re-enter through the same endpoint with
// the action result. Exactly one completion runs per attempt: a repeat
// call on a succeeded attempt returns the existing result.
func (s *CheckoutService) ConfirmHosted(ctx context.Context, req *dto.ConfirmHostedRequest) (*dto.ConfirmHostedResponse, error) {
	a, ok := s.attempts.get(req.AttemptID)
	if !ok {
		return nil, ErrAttemptNotFound
	}

	a.mu.Lock()
	switch a.state {
	case StateSucceeded:
		resp := &dto.ConfirmHostedResponse{Status: "succeeded", OrderID: a.resultOrder, Token: a.sessionToken}
		a.mu.Unlock()
		return resp, nil
	case StateFieldsMounted, StateRequiresAction:
		// fall through
	default:
		a.mu.Unlock()
		return nil, ErrInvalidState
	}
	intentID := a.intentID
	a.state = StateConfirming
	a.mu.Unlock()

	// Returning customers authenticate before money moves, so a bad
	// password can never strand a successful charge.
	if a.Mode == ModeReturning && a.SessionAcctID == "" {
		if err := s.materializer.Authenticate(ctx, a.Email, req.Password); err != nil {
			s.setRetryable(a, StateFieldsMounted, err.Error())
			return &dto.ConfirmHostedResponse{Status: "failed", Error: err.Error()}, nil
		}
	}

	metrics.ConfirmAttemptsTotal.Inc()

	var result *model.HostedConfirmResult
	var err error
	if req.ActionResult != "" {
		result, err = s.hostedClient.ResolveAction(ctx, intentID, req.ActionResult)
	} else {
		result, err = s.hostedClient.ConfirmIntent(ctx, intentID, req.MethodToken)
	}
	if err != nil {
		return s.handleConfirmError(ctx, a, err)
	}

	switch result.Status {
	case client.HostedStatusRequiresAction:
		a.mu.Lock()
		a.state = StateRequiresAction
		a.actionToken = result.ActionToken
		a.mu.Unlock()
		return &dto.ConfirmHostedResponse{Status: "requires_action", ActionToken: result.ActionToken}, nil

	case client.HostedStatusSucceeded:
		return s.finalizeHosted(ctx, a, intentID, req.Password)

	default:
		msg := result.Message
		if msg == "" {
			msg = "payment confirmation failed"
		}
		metrics.ConfirmDeclinedTotal.Inc()
		s.setRetryable(a, StateFieldsMounted, msg)
		return &dto.ConfirmHostedResponse{Status: "failed", Error: msg}, nil
	}
}

func (s *CheckoutService) handleConfirmError(ctx context.Context, a *Attempt, err error) (*dto.ConfirmHostedResponse, error) {
	var decline *client.DeclineError
	switch {
	case errors.As(err, &decline):
		// Inline retry against the same intent.
		metrics.ConfirmDeclinedTotal.Inc()
		s.setRetryable(a, StateFieldsMounted, decline.Message)
		return &dto.ConfirmHostedResponse{Status: "failed", Error: decline.Message}, nil

	case errors.Is(err, client.ErrIntentStale):
		// The intent itself is unusable: re-enter intent_requested with
		// the current quote and hand back the fresh secret.
		intentID, secret, reqErr := s.requestIntent(ctx, a, a.Quote())
		if reqErr != nil {
			s.setRetryable(a, StateFailed, reqErr.Error())
			return nil, reqErr
		}
		return &dto.ConfirmHostedResponse{
			Status:       "intent_stale",
			Error:        "payment session expired, please retry",
			IntentID:     intentID,
			ClientSecret: secret,
		}, nil

	default:
		s.setRetryable(a, StateFieldsMounted, err.Error())
		return nil, fmt.Errorf("confirm hosted payment: %w", err)
	}
}

func (s *CheckoutService) setRetryable(a *Attempt, state AttemptState, msg string) {
	a.mu.Lock()
	a.state = state
	a.lastErr = msg
	a.mu.Unlock()
}

// ConfirmExpress is the device-wallet one-click sub-path: the nonce is
// charged directly for the same quote, skipping hosted-field validation.
func (s *CheckoutService) ConfirmExpress(ctx context.Context, req *dto.ExpressRequest) (*dto.ConfirmHostedResponse, error) {
	a, ok := s.attempts.get(req.AttemptID)
	if !ok {
		return nil, ErrAttemptNotFound
	}

	a.mu.Lock()
	switch a.state {
	case StateSucceeded:
		resp := &dto.ConfirmHostedResponse{Status: "succeeded", OrderID: a.resultOrder, Token: a.sessionToken}
		a.mu.Unlock()
		return resp, nil
	case StateFieldsMounted:
	default:
		a.mu.Unlock()
		return nil, ErrInvalidState
	}
	intentID := a.intentID
	quote := a.quote
	a.state = StateConfirming
	a.mu.Unlock()

	if a.Mode == ModeReturning && a.SessionAcctID == "" {
		if err := s.materializer.Authenticate(ctx, a.Email, req.Password); err != nil {
			s.setRetryable(a, StateFieldsMounted, err.Error())
			return &dto.ConfirmHostedResponse{Status: "failed", Error: err.Error()}, nil
		}
	}

	metrics.ConfirmAttemptsTotal.Inc()

	if _, err := s.expressClient.ChargeNonce(ctx, req.Nonce, quote.FinalAmount); err != nil {
		var decline *client.DeclineError
		if errors.As(err, &decline) {
			metrics.ConfirmDeclinedTotal.Inc()
			s.setRetryable(a, StateFieldsMounted, decline.Message)
			return &dto.ConfirmHostedResponse{Status: "failed", Error: decline.Message}, nil
		}
		s.setRetryable(a, StateFieldsMounted, err.Error())
		return nil, fmt.Errorf("express charge: %w", err)
	}

	return s.finalizeHosted(ctx, a, intentID, req.Password)
}

// finalizeHosted runs the materializer exactly once per attempt.
func (s *CheckoutService) finalizeHosted(ctx context.Context, a *Attempt, intentID, password string) (*dto.ConfirmHostedResponse, error) {
	a.mu.Lock()
	if a.finalized {
		resp := &dto.ConfirmHostedResponse{Status: "succeeded", OrderID: a.resultOrder, Token: a.sessionToken}
		a.mu.Unlock()
		return resp, nil
	}
	a.finalized = true
	quote := a.quote
	a.mu.Unlock()

	if password == "" {
		password = a.Password
	}

	order, token, err := s.materializer.Finalize(ctx, &FinalizeInput{
		PaymentRef:       intentID,
		Mode:             a.Mode,
		SessionAccountID: a.SessionAcctID,
		Email:            a.Email,
		Password:         password,
		FullName:         a.FullName,
		Quote:            quote,
		Cart:             a.Cart,
	})
	if err != nil {
		// The charge went through; the failure is local to account
		// materialization and must stay visible.
		a.mu.Lock()
		a.finalized = false
		a.state = StateFailed
		a.lastErr = err.Error()
		a.mu.Unlock()
		return nil, fmt.Errorf("materialize order: %w", err)
	}

	if err := s.intentRepo.MarkStatus(ctx, intentID, model.IntentStatusSucceeded); err != nil {
		s.logger.Warn("mark intent succeeded", zap.String("intent_id", intentID), zap.Error(err))
	}

	a.mu.Lock()
	a.state = StateSucceeded
	a.resultOrder = order.OrderID
	a.sessionToken = token
	a.mu.Unlock()

	s.logger.Info("hosted checkout succeeded",
		zap.String("attempt_id", a.ID),
		zap.String("intent_id", intentID),
		zap.String("order_id", order.OrderID))

	return &dto.ConfirmHostedResponse{Status: "succeeded", OrderID: order.OrderID, Token: token}, nil
}
