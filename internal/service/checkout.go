package service

import (
	"fmt"
	"time"

	"storefront-checkout/internal/client"
	"storefront-checkout/internal/dto"
	"storefront-checkout/internal/logging"
	"storefront-checkout/internal/metrics"
	"storefront-checkout/internal/pricing"
	"storefront-checkout/internal/repository"
	"storefront-checkout/internal/signal"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CouponLookup resolves a format-valid coupon code to its discount. The
// client-side quote is advisory; eligibility is revalidated at capture
// time by the provider backend.
type CouponLookup func(code string) (*pricing.Coupon, bool)

// CheckoutService is the top-level checkout controller: it computes
// quotes, delegates to the hosted or wallet coordinator, and owns the
// attempt registry.
type CheckoutService struct {
	baseURL         string
	approvalTimeout time.Duration
	pollInterval    time.Duration

	geoTable pricing.Table
	coupons  CouponLookup

	walletClient  client.WalletClient
	hostedClient  client.HostedClient
	expressClient client.ExpressClient

	intentRepo   repository.IntentRepository
	materializer *Materializer
	slot         signal.Slot

	attempts *attemptRegistry
	logger   *zap.Logger
}

func NewCheckoutService(
	baseURL string,
	approvalTimeout time.Duration,
	pollInterval time.Duration,
	geoTable pricing.Table,
	coupons CouponLookup,
	walletClient client.WalletClient,
	hostedClient client.HostedClient,
	expressClient client.ExpressClient,
	intentRepo repository.IntentRepository,
	materializer *Materializer,
	slot signal.Slot,
) *CheckoutService {
	return &CheckoutService{
		baseURL:         baseURL,
		approvalTimeout: approvalTimeout,
		pollInterval:    pollInterval,
		geoTable:        geoTable,
		coupons:         coupons,
		walletClient:    walletClient,
		hostedClient:    hostedClient,
		expressClient:   expressClient,
		intentRepo:      intentRepo,
		materializer:    materializer,
		slot:            slot,
		attempts:        newAttemptRegistry(),
		logger:          logging.GetLogger(),
	}
}

// cartBaseAmount sums the cart in USD. The snapshot is read once here and
// never re-read during the attempt.
func cartBaseAmount(items []*dto.CartItem) (decimal.Decimal, error) {
	if len(items) == 0 {
		return decimal.Zero, fmt.Errorf("cart is empty")
	}
	total := decimal.Zero
	for _, item := range items {
		if item.Quantity <= 0 {
			return decimal.Zero, fmt.Errorf("item quantity must be positive")
		}
		unit, err := decimal.NewFromString(item.UnitPrice)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid unit price %q: %w", item.UnitPrice, err)
		}
		total = total.Add(unit.Mul(decimal.NewFromInt32(item.Quantity)))
	}
	return total, nil
}

func (s *CheckoutService) resolveQuote(items []*dto.CartItem, geoKey, couponCode string, method pricing.Method) (pricing.Quote, error) {
	base, err := cartBaseAmount(items)
	if err != nil {
		return pricing.Quote{}, err
	}

	var coupon *pricing.Coupon
	if code, ok := pricing.NormalizeCouponCode(couponCode); ok {
		if c, found := s.coupons(code); found {
			coupon = c
		}
	}

	metrics.QuotesComputedTotal.Inc()
	return pricing.Resolve(base, s.geoTable, geoKey, coupon, method), nil
}

// Quote computes a fresh quote for the selected payment method without
// touching any attempt state.
func (s *CheckoutService) Quote(req *dto.QuoteRequest) (*dto.QuoteResponse, error) {
	q, err := s.resolveQuote(req.Items, req.GeoKey, req.CouponCode, pricing.Method(req.Method))
	if err != nil {
		return nil, err
	}
	return quoteResponse(q), nil
}

func quoteResponse(q pricing.Quote) *dto.QuoteResponse {
	return &dto.QuoteResponse{
		BaseAmount:      q.BaseAmount.StringFixed(2),
		Currency:        q.Currency,
		DiscountPercent: q.DiscountPercent.String(),
		CouponCode:      q.CouponCode,
		FinalAmount:     q.FinalAmount.StringFixed(2),
	}
}

func (s *CheckoutService) newAttempt(req *dto.StartCheckoutRequest, method pricing.Method, sessionAcctID string) *Attempt {
	a := &Attempt{
		ID:            uuid.New().String(),
		Mode:          req.CustomerMode,
		Method:        method,
		Email:         req.Email,
		FullName:      req.FullName,
		Password:      req.Password,
		GeoKey:        req.GeoKey,
		Cart:          req.Items,
		SessionAcctID: sessionAcctID,
		state:         StateIdle,
	}
	s.attempts.add(a)
	return a
}

// Status reports the attempt's current state for front-end polling.
func (s *CheckoutService) Status(attemptID string) (*dto.AttemptStatusResponse, error) {
	a, ok := s.attempts.get(attemptID)
	if !ok {
		return nil, ErrAttemptNotFound
	}
	return a.status(), nil
}
