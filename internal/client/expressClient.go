package client

import (
	"context"
	"fmt"
	"storefront-checkout/internal/config"

	"github.com/braintree-go/braintree-go"
	"github.com/shopspring/decimal"
)

// ExpressClient charges a device-wallet (Apple/Google-Pay-equivalent)
// payment nonce in a single step, bypassing hosted-field validation.
type ExpressClient interface {
	ChargeNonce(ctx context.Context, nonce string, amount decimal.Decimal) (string, error)
}

type expressClientImpl struct {
	gateway *braintree.Braintree
}

func NewExpressClient(cfg *config.Express) ExpressClient {
	env := braintree.Sandbox
	if cfg.Environment == "production" {
		env = braintree.Production
	}

	gateway := braintree.New(
		env,
		cfg.MerchantID,
		cfg.PublicKey,
		cfg.PrivateKey,
	)

	return &expressClientImpl{
		gateway: gateway,
	}
}

func (c *expressClientImpl) ChargeNonce(ctx context.Context, nonce string, amount decimal.Decimal) (string, error) {
	// Braintree expects NewDecimal(unscaled, scale). For 2 decimal places:
	// 89.10 -> 8910 -> braintree.NewDecimal(8910, 2)
	cents := amount.Mul(decimal.NewFromInt(100)).IntPart()
	btAmount := braintree.NewDecimal(cents, 2)

	req := &braintree.TransactionRequest{
		Type:               "sale",
		Amount:             btAmount,
		PaymentMethodNonce: nonce,
		Options: &braintree.TransactionOptions{
			SubmitForSettlement: true, // capture immediately
		},
	}

	tx, err := c.gateway.Transaction().Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("express transaction failed: %w", err)
	}

	if tx.Status == braintree.TransactionStatusProcessorDeclined {
		return "", &DeclineError{Code: "processor_declined", Message: tx.ProcessorResponseText}
	}

	return tx.Id, nil
}
