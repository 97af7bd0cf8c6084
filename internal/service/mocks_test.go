package service

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"storefront-checkout/internal/client"
	"storefront-checkout/internal/model"
	"storefront-checkout/internal/pricing"
	"storefront-checkout/internal/repository"
	"storefront-checkout/internal/signal"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ---- clients ----

type fakeHostedClient struct {
	mu             sync.Mutex
	createCalls    int
	createdAmounts []string
	confirmCalls   int
	confirmResults []*model.HostedConfirmResult
	confirmErrs    []error
	// When set, the n-th create call blocks until the gate is closed.
	gateCall int
	gate     chan struct{}

	key string
}

func (f *fakeHostedClient) CreateIntent(_ context.Context, req *client.CreateIntentRequest) (*model.HostedIntentResult, error) {
	f.mu.Lock()
	f.createCalls++
	call := f.createCalls
	f.createdAmounts = append(f.createdAmounts, req.Value)
	gate := f.gate
	gateCall := f.gateCall
	f.mu.Unlock()

	if gate != nil && call == gateCall {
		<-gate
	}

	return &model.HostedIntentResult{
		ID:           "pi_" + req.Value + "_" + itoa(call),
		ClientSecret: "secret_" + itoa(call),
		Status:       "created",
	}, nil
}

func (f *fakeHostedClient) nextConfirm() (*model.HostedConfirmResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmCalls++
	if len(f.confirmErrs) > 0 {
		err := f.confirmErrs[0]
		f.confirmErrs = f.confirmErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(f.confirmResults) == 0 {
		return &model.HostedConfirmResult{Status: client.HostedStatusSucceeded}, nil
	}
	res := f.confirmResults[0]
	f.confirmResults = f.confirmResults[1:]
	return res, nil
}

func (f *fakeHostedClient) ConfirmIntent(_ context.Context, _, _ string) (*model.HostedConfirmResult, error) {
	return f.nextConfirm()
}

func (f *fakeHostedClient) ResolveAction(_ context.Context, _, _ string) (*model.HostedConfirmResult, error) {
	return f.nextConfirm()
}

func (f *fakeHostedClient) PublishableKey(_ context.Context) (string, error) {
	if f.key == "" {
		return "", errors.New("no key configured")
	}
	return f.key, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

type fakeWalletClient struct {
	captureCalls int64
	captureErr   error
	verifyErr    error
	orderSeq     int64
}

func (f *fakeWalletClient) CreateOrder(_ context.Context, _ *client.CreateWalletOrderRequest) (*client.CreateWalletOrderResponse, error) {
	n := atomic.AddInt64(&f.orderSeq, 1)
	id := "W" + itoa(int(n))
	return &client.CreateWalletOrderResponse{
		OrderID:    id,
		ApproveURL: "https://wallet.example/approve/" + id,
	}, nil
}

func (f *fakeWalletClient) CaptureOrder(_ context.Context, orderID string) (*client.CaptureWalletOrderResponse, error) {
	atomic.AddInt64(&f.captureCalls, 1)
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	return &client.CaptureWalletOrderResponse{OrderID: orderID, PayerID: "PAYER1", Status: "COMPLETED"}, nil
}

func (f *fakeWalletClient) VerifyWebhookSignature(_ context.Context, _ http.Header, _ []byte) error {
	return f.verifyErr
}

func (f *fakeWalletClient) captures() int64 {
	return atomic.LoadInt64(&f.captureCalls)
}

type fakeExpressClient struct {
	chargeErr     error
	chargedAmount decimal.Decimal
	charges       int
}

func (f *fakeExpressClient) ChargeNonce(_ context.Context, _ string, amount decimal.Decimal) (string, error) {
	f.charges++
	f.chargedAmount = amount
	if f.chargeErr != nil {
		return "", f.chargeErr
	}
	return "tx_1", nil
}

// ---- repositories ----

type fakeAccountRepo struct {
	mu      sync.Mutex
	byID    map[string]*model.Account
	byEmail map[string]*model.Account
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{
		byID:    make(map[string]*model.Account),
		byEmail: make(map[string]*model.Account),
	}
}

func (f *fakeAccountRepo) Create(_ context.Context, account *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byEmail[account.Email]; ok {
		return errors.New("UNIQUE constraint failed: accounts.email")
	}
	f.byID[account.ID] = account
	f.byEmail[account.Email] = account
	return nil
}

func (f *fakeAccountRepo) FindByID(_ context.Context, id string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return a, nil
}

func (f *fakeAccountRepo) FindByEmail(_ context.Context, email string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byEmail[email]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return a, nil
}

type fakeOrderRepo struct {
	mu    sync.Mutex
	byRef map[string]*model.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{byRef: make(map[string]*model.Order)}
}

func (f *fakeOrderRepo) CreateIfAbsent(_ context.Context, order *model.Order, _ []*model.OrderItem) (*model.Order, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.byRef[order.PaymentRef]; ok {
		return existing, false, nil
	}
	f.byRef[order.PaymentRef] = order
	return order, true, nil
}

func (f *fakeOrderRepo) FindByPaymentRef(_ context.Context, ref string) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byRef[ref]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return o, nil
}

func (f *fakeOrderRepo) MarkPaid(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byRef[ref]
	if !ok {
		return errors.New("order not found: " + ref)
	}
	o.Status = model.OrderStatusPaid
	return nil
}

func (f *fakeOrderRepo) MarkFailed(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byRef[ref]
	if !ok {
		return errors.New("order not found: " + ref)
	}
	o.Status = model.OrderStatusFailed
	return nil
}

func (f *fakeOrderRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byRef)
}

type fakeIntentRepo struct {
	mu       sync.Mutex
	statuses map[string]string
}

func newFakeIntentRepo() *fakeIntentRepo {
	return &fakeIntentRepo{statuses: make(map[string]string)}
}

func (f *fakeIntentRepo) Create(_ context.Context, intent *model.PaymentIntent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[intent.ID] = intent.Status
	return nil
}

func (f *fakeIntentRepo) FindByID(_ context.Context, id string) (*model.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.statuses[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &model.PaymentIntent{ID: id, Status: status}, nil
}

func (f *fakeIntentRepo) MarkStatus(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.statuses[id]
	if !ok {
		return nil
	}
	if current == model.IntentStatusSucceeded || current == model.IntentStatusFailed {
		return nil
	}
	f.statuses[id] = status
	return nil
}

func (f *fakeIntentRepo) statusOf(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[id]
}

// ---- storage slot ----

type memSlot struct {
	mu    sync.Mutex
	slots map[string]signal.Payload
}

func newMemSlot() *memSlot {
	return &memSlot{slots: make(map[string]signal.Payload)}
}

func (m *memSlot) Put(_ context.Context, orderID string, p signal.Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[orderID] = p
	return nil
}

func (m *memSlot) Get(_ context.Context, orderID string) (signal.Payload, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.slots[orderID]
	return p, ok, nil
}

func (m *memSlot) Clear(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, orderID)
	return nil
}

func payloadFor(orderID string) signal.Payload {
	return signal.Payload{OrderID: orderID, PayerID: "PAYER1"}
}

// ---- harness ----

type testEnv struct {
	svc      *CheckoutService
	hosted   *fakeHostedClient
	wallet   *fakeWalletClient
	express  *fakeExpressClient
	accounts *fakeAccountRepo
	orders   *fakeOrderRepo
	intents  *fakeIntentRepo
	slot     *memSlot
}

func testCoupons(code string) (*pricing.Coupon, bool) {
	if code == "SAVE10" {
		return &pricing.Coupon{Code: "SAVE10", DiscountPercent: decimal.NewFromInt(10)}, true
	}
	return nil, false
}

func newTestEnv() *testEnv {
	env := &testEnv{
		hosted:   &fakeHostedClient{},
		wallet:   &fakeWalletClient{},
		express:  &fakeExpressClient{},
		accounts: newFakeAccountRepo(),
		orders:   newFakeOrderRepo(),
		intents:  newFakeIntentRepo(),
		slot:     newMemSlot(),
	}
	tokens := NewTokenIssuer("test-secret", time.Hour)
	materializer := NewMaterializer(env.accounts, env.orders, tokens)

	env.svc = NewCheckoutService(
		"http://localhost:8080",
		2*time.Second,
		5*time.Millisecond,
		pricing.Table{},
		testCoupons,
		env.wallet,
		env.hosted,
		env.express,
		env.intents,
		materializer,
		env.slot,
	)
	return env
}
