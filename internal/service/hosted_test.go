package service

import (
	"context"
	"testing"
	"time"

	"storefront-checkout/internal/client"
	"storefront-checkout/internal/dto"
	"storefront-checkout/internal/model"
	"storefront-checkout/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostedQuoteCarriesCardDiscount(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	resp, err := env.svc.StartHosted(ctx, startReq(ModeNewAccount), "")
	require.NoError(t, err)

	// 100.00 * 0.90 (coupon) * 0.99 (card) = 89.10
	assert.Equal(t, "89.10", resp.Quote.FinalAmount)
	require.Len(t, env.hosted.createdAmounts, 1)
	assert.Equal(t, "89.10", env.hosted.createdAmounts[0])
}

func TestHostedConfirmSucceedsAndFinalizesOnce(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	start, err := env.svc.StartHosted(ctx, startReq(ModeNewAccount), "")
	require.NoError(t, err)

	resp, err := env.svc.ConfirmHosted(ctx, &dto.ConfirmHostedRequest{
		AttemptID:   start.AttemptID,
		MethodToken: "tok_visa",
	})
	require.NoError(t, err)
	assert.Equal(t, "succeeded", resp.Status)
	assert.NotEmpty(t, resp.OrderID)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, 1, env.orders.count())
	assert.Equal(t, model.IntentStatusSucceeded, env.intents.statusOf(start.IntentID))

	// A repeat confirm returns the existing result without a second
	// provider call or a second order.
	confirmsBefore := env.hosted.confirmCalls
	again, err := env.svc.ConfirmHosted(ctx, &dto.ConfirmHostedRequest{
		AttemptID:   start.AttemptID,
		MethodToken: "tok_visa",
	})
	require.NoError(t, err)
	assert.Equal(t, resp.OrderID, again.OrderID)
	assert.Equal(t, confirmsBefore, env.hosted.confirmCalls)
	assert.Equal(t, 1, env.orders.count())
}

func TestHostedDeclineKeepsIntentForRetry(t *testing.T) {
	env := newTestEnv()
	env.hosted.confirmErrs = []error{
		&client.DeclineError{Code: "card_declined", Message: "insufficient funds"},
	}
	ctx := context.Background()

	start, err := env.svc.StartHosted(ctx, startReq(ModeNewAccount), "")
	require.NoError(t, err)

	resp, err := env.svc.ConfirmHosted(ctx, &dto.ConfirmHostedRequest{
		AttemptID:   start.AttemptID,
		MethodToken: "tok_visa",
	})
	require.NoError(t, err)
	assert.Equal(t, "failed", resp.Status)
	assert.Contains(t, resp.Error, "insufficient funds")

	a, _ := env.svc.attempts.get(start.AttemptID)
	assert.Equal(t, StateFieldsMounted, a.State())
	// No new intent was requested for the retry.
	assert.Equal(t, 1, env.hosted.createCalls)

	retry, err := env.svc.ConfirmHosted(ctx, &dto.ConfirmHostedRequest{
		AttemptID:   start.AttemptID,
		MethodToken: "tok_visa",
	})
	require.NoError(t, err)
	assert.Equal(t, "succeeded", retry.Status)
	assert.Equal(t, 1, env.hosted.createCalls)
}

func TestHostedStaleIntentIsRecreated(t *testing.T) {
	env := newTestEnv()
	env.hosted.confirmErrs = []error{client.ErrIntentStale}
	ctx := context.Background()

	start, err := env.svc.StartHosted(ctx, startReq(ModeNewAccount), "")
	require.NoError(t, err)

	resp, err := env.svc.ConfirmHosted(ctx, &dto.ConfirmHostedRequest{
		AttemptID:   start.AttemptID,
		MethodToken: "tok_visa",
	})
	require.NoError(t, err)
	assert.Equal(t, "intent_stale", resp.Status)
	assert.NotEqual(t, start.IntentID, resp.IntentID)
	assert.Equal(t, 2, env.hosted.createCalls)

	a, _ := env.svc.attempts.get(start.AttemptID)
	assert.Equal(t, StateFieldsMounted, a.State())
}

func TestHostedRequiresActionRoundTrip(t *testing.T) {
	env := newTestEnv()
	env.hosted.confirmResults = []*model.HostedConfirmResult{
		{Status: client.HostedStatusRequiresAction, ActionToken: "act_1"},
		{Status: client.HostedStatusSucceeded},
	}
	ctx := context.Background()

	start, err := env.svc.StartHosted(ctx, startReq(ModeNewAccount), "")
	require.NoError(t, err)

	first, err := env.svc.ConfirmHosted(ctx, &dto.ConfirmHostedRequest{
		AttemptID:   start.AttemptID,
		MethodToken: "tok_visa",
	})
	require.NoError(t, err)
	assert.Equal(t, "requires_action", first.Status)
	assert.Equal(t, "act_1", first.ActionToken)

	second, err := env.svc.ConfirmHosted(ctx, &dto.ConfirmHostedRequest{
		AttemptID:    start.AttemptID,
		ActionResult: "act_1_ok",
	})
	require.NoError(t, err)
	assert.Equal(t, "succeeded", second.Status)
	assert.Equal(t, 1, env.orders.count())
}

func TestHostedCouponChangeSupersedesIntent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	start, err := env.svc.StartHosted(ctx, &dto.StartCheckoutRequest{
		Items:        cartOf("100.00"),
		GeoKey:       "US",
		Email:        "buyer@example.com",
		CustomerMode: ModeNewAccount,
	}, "")
	require.NoError(t, err)
	require.Len(t, env.hosted.createdAmounts, 1)
	assert.Equal(t, "99.00", env.hosted.createdAmounts[0])

	requote, err := env.svc.StartHosted(ctx, &dto.StartCheckoutRequest{
		AttemptID:  start.AttemptID,
		CouponCode: "SAVE10",
	}, "")
	require.NoError(t, err)

	assert.Equal(t, start.AttemptID, requote.AttemptID)
	assert.Equal(t, "89.10", requote.Quote.FinalAmount)
	require.Len(t, env.hosted.createdAmounts, 2)
	assert.Equal(t, "89.10", env.hosted.createdAmounts[1])

	// The superseded intent can never be confirmed with stale pricing.
	assert.Equal(t, model.IntentStatusFailed, env.intents.statusOf(start.IntentID))
	assert.NotEqual(t, start.IntentID, requote.IntentID)
}

func TestHostedInFlightIntentDiscardedByNewerRequest(t *testing.T) {
	env := newTestEnv()
	gate := make(chan struct{})
	env.hosted.gate = gate
	env.hosted.gateCall = 1
	ctx := context.Background()

	// First request blocks inside the provider call.
	errs := make(chan error, 1)
	req := &dto.StartCheckoutRequest{
		Items:        cartOf("100.00"),
		GeoKey:       "US",
		Email:        "buyer@example.com",
		CustomerMode: ModeNewAccount,
	}
	a := env.svc.newAttempt(req, pricing.MethodHostedField, "")
	attemptID := a.ID
	go func() {
		quote, qerr := env.svc.resolveQuote(a.Cart, a.GeoKey, "", pricing.MethodHostedField)
		if qerr != nil {
			errs <- qerr
			return
		}
		_, _, ierr := env.svc.requestIntent(ctx, a, quote)
		errs <- ierr
	}()

	// Wait until the first create call is in flight, then supersede it.
	require.Eventually(t, func() bool {
		env.hosted.mu.Lock()
		defer env.hosted.mu.Unlock()
		return env.hosted.createCalls == 1
	}, time.Second, time.Millisecond)

	requote, err := env.svc.StartHosted(ctx, &dto.StartCheckoutRequest{
		AttemptID:  attemptID,
		CouponCode: "SAVE10",
	}, "")
	require.NoError(t, err)

	close(gate)
	require.Error(t, <-errs) // stale response is discarded

	a.mu.Lock()
	assert.Equal(t, requote.IntentID, a.intentID)
	assert.Equal(t, requote.ClientSecret, a.clientSecret)
	a.mu.Unlock()
}

func TestExpressChargesQuoteAmount(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	start, err := env.svc.StartHosted(ctx, startReq(ModeNewAccount), "")
	require.NoError(t, err)

	resp, err := env.svc.ConfirmExpress(ctx, &dto.ExpressRequest{
		AttemptID: start.AttemptID,
		Nonce:     "device-wallet-nonce",
	})
	require.NoError(t, err)
	assert.Equal(t, "succeeded", resp.Status)
	assert.Equal(t, 1, env.express.charges)
	assert.Equal(t, "89.1", env.express.chargedAmount.String())
	// Hosted-field validation was skipped entirely.
	assert.Equal(t, 0, env.hosted.confirmCalls)
	assert.Equal(t, 1, env.orders.count())
}

func TestHostedReturningCustomerBadPassword(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	start, err := env.svc.StartHosted(ctx, startReq(ModeReturning), "")
	require.NoError(t, err)

	resp, err := env.svc.ConfirmHosted(ctx, &dto.ConfirmHostedRequest{
		AttemptID:   start.AttemptID,
		MethodToken: "tok_visa",
		Password:    "wrong",
	})
	require.NoError(t, err)
	assert.Equal(t, "failed", resp.Status)
	// Credentials fail before any provider confirmation happens.
	assert.Equal(t, 0, env.hosted.confirmCalls)
	assert.Equal(t, 0, env.orders.count())
}
