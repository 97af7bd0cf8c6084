package service

import (
	"errors"
	"sync"

	"storefront-checkout/internal/dto"
	"storefront-checkout/internal/pricing"
	"storefront-checkout/internal/signal"
)

type AttemptState string

const (
	StateIdle            AttemptState = "idle"
	StateIntentRequested AttemptState = "intent_requested"
	StateFieldsMounted   AttemptState = "fields_mounted"
	StateConfirming      AttemptState = "confirming"
	StateRequiresAction  AttemptState = "requires_action"
	StateOrderRequested  AttemptState = "order_requested"
	StateAwaitingSignal  AttemptState = "awaiting_signal"
	StateCapturing       AttemptState = "capturing"
	StateSucceeded       AttemptState = "succeeded"
	StateFailed          AttemptState = "failed"
)

const (
	ModeGuest      = "guest"
	ModeNewAccount = "new_account"
	ModeReturning  = "returning"
)

var (
	ErrAttemptNotFound = errors.New("checkout attempt not found")
	ErrInvalidState    = errors.New("operation not valid in current attempt state")
)

// Attempt is one checkout attempt: the cart is read once at the start and
// never mutated afterwards. All state transitions go through the attempt
// mutex; terminal states are never left.
type Attempt struct {
	ID            string
	Mode          string
	Method        pricing.Method
	Email         string
	FullName      string
	Password      string
	GeoKey        string
	Cart          []*dto.CartItem
	SessionAcctID string

	mu    sync.Mutex
	state AttemptState
	quote pricing.Quote

	// Hosted path. seq implements last-write-wins on intent requests:
	// a response is applied only if no newer request started meanwhile.
	seq          int64
	intentID     string
	clientSecret string
	actionToken  string

	// Wallet path.
	walletOrderID string
	watch         *signal.Watch

	finalized    bool
	resultOrder  string
	sessionToken string
	lastErr      string
}

func (a *Attempt) State() AttemptState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Attempt) Quote() pricing.Quote {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.quote
}

func (a *Attempt) status() *dto.AttemptStatusResponse {
	a.mu.Lock()
	defer a.mu.Unlock()
	return &dto.AttemptStatusResponse{
		AttemptID: a.ID,
		State:     string(a.state),
		OrderID:   a.resultOrder,
		Token:     a.sessionToken,
		Error:     a.lastErr,
	}
}

// attemptRegistry holds live attempts, addressable by attempt id and,
// for the wallet path, by provider order id (signals arrive keyed on it).
type attemptRegistry struct {
	mu        sync.RWMutex
	byID      map[string]*Attempt
	byOrderID map[string]*Attempt
}

func newAttemptRegistry() *attemptRegistry {
	return &attemptRegistry{
		byID:      make(map[string]*Attempt),
		byOrderID: make(map[string]*Attempt),
	}
}

func (r *attemptRegistry) add(a *Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[a.ID] = a
}

func (r *attemptRegistry) indexOrder(orderID string, a *Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byOrderID[orderID] = a
}

func (r *attemptRegistry) get(id string) (*Attempt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	return a, ok
}

func (r *attemptRegistry) getByOrderID(orderID string) (*Attempt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byOrderID[orderID]
	return a, ok
}
