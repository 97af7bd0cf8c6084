package model

import "time"

// Payment intent / wallet order lifecycle. A terminal record is never
// mutated; a retry after failure creates a new record.
const (
	IntentStatusCreated        = "CREATED"
	IntentStatusRequiresAction = "REQUIRES_ACTION"
	IntentStatusSucceeded      = "SUCCEEDED"
	IntentStatusFailed         = "FAILED"
)

const (
	OrderStatusPending = "PENDING"
	OrderStatusPaid    = "PAID"
	OrderStatusFailed  = "FAILED"
)

const (
	IntentKindHosted = "HOSTED"
	IntentKindWallet = "WALLET"
)

type Account struct {
	ID           string `gorm:"primaryKey;size:64;not null"`
	Email        string `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:128"`
	FullName     string `gorm:"size:255"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Order struct {
	OrderID   string `gorm:"primaryKey;size:64;not null"`
	AccountID string `gorm:"size:64;index;not null"`
	// Provider payment-intent id (hosted path) or order id (wallet path).
	// Unique: the idempotency key for materialization.
	PaymentRef  string `gorm:"size:64;uniqueIndex;not null"`
	Status      string `gorm:"size:32;index;not null"` // PENDING, PAID, FAILED
	AmountCents int64  `gorm:"not null"`
	Currency    string `gorm:"size:8;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type OrderItem struct {
	ID uint `gorm:"primaryKey"`
	// FK → order.order_id
	OrderID        string `gorm:"size:64;index;not null"`
	ProductID      string `gorm:"size:64;index;not null"`
	Name           string `gorm:"size:255"`
	Quantity       int32  `gorm:"not null"`
	UnitPriceCents int64  `gorm:"not null"`
	Currency       string `gorm:"size:8;not null"`

	CreatedAt time.Time
}

type PaymentIntent struct {
	// Provider-assigned intent or order id.
	ID        string `gorm:"primaryKey;size:64;not null"`
	AttemptID string `gorm:"size:64;index;not null"`
	Kind      string `gorm:"size:16;not null"` // HOSTED, WALLET
	// Hosted confirmation secret or wallet approval URL, whichever applies.
	ClientSecret string `gorm:"size:255"`
	ApprovalURL  string `gorm:"size:512"`
	Status       string `gorm:"size:32;index;not null"`
	AmountCents  int64  `gorm:"not null"`
	Currency     string `gorm:"size:8;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;uniqueIndex;not null"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}
