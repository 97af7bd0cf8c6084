package service

import (
	"context"
	"errors"
	"fmt"

	"storefront-checkout/internal/dto"
	"storefront-checkout/internal/logging"
	"storefront-checkout/internal/metrics"
	"storefront-checkout/internal/model"
	"storefront-checkout/internal/pricing"
	"storefront-checkout/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrBadCredentials = errors.New("invalid email or password")
	ErrAccountExists  = errors.New("an account with this email already exists")
)

// Materializer turns a successful provider confirmation into a persisted
// account and order. Account creation is deferred to this point so an
// abandoned checkout never leaves a dangling account. Orders are
// idempotent by payment ref: calling Finalize twice with the same ref
// yields the same order.
type Materializer struct {
	accounts repository.AccountRepository
	orders   repository.OrderRepository
	tokens   *TokenIssuer
	logger   *zap.Logger
}

func NewMaterializer(
	accounts repository.AccountRepository,
	orders repository.OrderRepository,
	tokens *TokenIssuer,
) *Materializer {
	return &Materializer{
		accounts: accounts,
		orders:   orders,
		tokens:   tokens,
		logger:   logging.GetLogger(),
	}
}

type FinalizeInput struct {
	PaymentRef       string
	Mode             string
	SessionAccountID string
	Email            string
	Password         string
	FullName         string
	PayerID          string
	Quote            pricing.Quote
	Cart             []*dto.CartItem
}

// Authenticate verifies a returning customer's credentials without any
// side effects. Coordinators call it before money moves.
func (m *Materializer) Authenticate(ctx context.Context, email, password string) error {
	account, err := m.accounts.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return ErrBadCredentials
	}
	if err != nil {
		return fmt.Errorf("find account: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return ErrBadCredentials
	}
	return nil
}

// Finalize resolves exactly one of the three account paths (session,
// returning sign-in, new account) and records the order at most once.
// Returns the order and a session token for the resolved account.
func (m *Materializer) Finalize(ctx context.Context, in *FinalizeInput) (*model.Order, string, error) {
	account, err := m.resolveAccount(ctx, in)
	if err != nil {
		return nil, "", err
	}

	items := make([]*model.OrderItem, len(in.Cart))
	for i, item := range in.Cart {
		unit, perr := decimal.NewFromString(item.UnitPrice)
		if perr != nil {
			return nil, "", fmt.Errorf("invalid unit price %q: %w", item.UnitPrice, perr)
		}
		items[i] = &model.OrderItem{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: unit.Mul(decimal.NewFromInt(100)).IntPart(),
			Currency:       item.Currency,
		}
	}

	order := &model.Order{
		OrderID:     uuid.New().String(),
		AccountID:   account.ID,
		PaymentRef:  in.PaymentRef,
		Status:      model.OrderStatusPaid,
		AmountCents: in.Quote.Cents(),
		Currency:    in.Quote.Currency,
	}

	stored, created, err := m.orders.CreateIfAbsent(ctx, order, items)
	if err != nil {
		return nil, "", fmt.Errorf("store order: %w", err)
	}
	if created {
		metrics.OrdersFinalizedTotal.Inc()
	} else {
		m.logger.Info("order already materialized for payment ref",
			zap.String("payment_ref", in.PaymentRef),
			zap.String("order_id", stored.OrderID))
	}

	token, err := m.tokens.Issue(account.ID, account.Email)
	if err != nil {
		return nil, "", fmt.Errorf("issue session token: %w", err)
	}

	return stored, token, nil
}

// LookupOrder fetches the order materialized for a payment ref, if any.
func (m *Materializer) LookupOrder(ctx context.Context, paymentRef string) (*model.Order, error) {
	return m.orders.FindByPaymentRef(ctx, paymentRef)
}

func (m *Materializer) resolveAccount(ctx context.Context, in *FinalizeInput) (*model.Account, error) {
	if in.SessionAccountID != "" {
		account, err := m.accounts.FindByID(ctx, in.SessionAccountID)
		if err != nil {
			return nil, fmt.Errorf("resolve session account: %w", err)
		}
		return account, nil
	}

	if in.Mode == ModeReturning {
		account, err := m.accounts.FindByEmail(ctx, in.Email)
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrBadCredentials
		}
		if err != nil {
			return nil, fmt.Errorf("find account: %w", err)
		}
		if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(in.Password)) != nil {
			return nil, ErrBadCredentials
		}
		return account, nil
	}

	// New-account and guest paths. An existing account with matching
	// credentials is reused instead of failing the paid checkout.
	existing, err := m.accounts.FindByEmail(ctx, in.Email)
	if err == nil {
		if in.Password != "" &&
			bcrypt.CompareHashAndPassword([]byte(existing.PasswordHash), []byte(in.Password)) == nil {
			return existing, nil
		}
		return nil, ErrAccountExists
	}
	if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, fmt.Errorf("find account: %w", err)
	}

	password := in.Password
	if password == "" {
		// Guest checkout: an unguessable placeholder until the user sets
		// a password through account recovery.
		password = uuid.New().String()
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &model.Account{
		ID:           uuid.New().String(),
		Email:        in.Email,
		PasswordHash: string(hash),
		FullName:     in.FullName,
	}
	if err := m.accounts.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	m.logger.Info("account materialized at checkout",
		zap.String("account_id", account.ID))
	return account, nil
}
