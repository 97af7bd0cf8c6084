package dto

type CartItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"` // decimal string, USD
	Currency  string `json:"currency"`
	Quantity  int32  `json:"quantity"`
}

type QuoteRequest struct {
	Items      []*CartItem `json:"items"`
	GeoKey     string      `json:"geo_key"`
	CouponCode string      `json:"coupon_code,omitempty"`
	Method     string      `json:"method"` // hosted_field, wallet_popup
}

type QuoteResponse struct {
	BaseAmount      string `json:"base_amount"`
	Currency        string `json:"currency"`
	DiscountPercent string `json:"discount_percent"`
	CouponCode      string `json:"coupon_code,omitempty"`
	FinalAmount     string `json:"final_amount"`
}

type StartCheckoutRequest struct {
	Items      []*CartItem `json:"items"`
	GeoKey     string      `json:"geo_key"`
	CouponCode string      `json:"coupon_code,omitempty"`
	Email      string      `json:"email"`
	FullName   string      `json:"full_name,omitempty"`
	// Used at materialization only; an abandoned checkout never creates
	// an account.
	Password string `json:"password,omitempty"`
	// guest, new_account or returning
	CustomerMode string `json:"customer_mode"`
	// Re-quotes an existing attempt (coupon change) instead of starting
	// a new one.
	AttemptID string `json:"attempt_id,omitempty"`
}

type StartHostedResponse struct {
	AttemptID    string         `json:"attempt_id"`
	IntentID     string         `json:"intent_id"`
	ClientSecret string         `json:"client_secret"`
	Quote        *QuoteResponse `json:"quote"`
}

type ConfirmHostedRequest struct {
	AttemptID   string `json:"attempt_id"`
	MethodToken string `json:"method_token"` // hosted-field nonce
	// Result token of a completed interactive-authentication round.
	ActionResult string `json:"action_result,omitempty"`
	Password     string `json:"password,omitempty"`
}

type ConfirmHostedResponse struct {
	Status      string `json:"status"`
	ActionToken string `json:"action_token,omitempty"`
	OrderID     string `json:"order_id,omitempty"`
	Token       string `json:"session_token,omitempty"`
	Error       string `json:"error,omitempty"`
	// Set on intent_stale: the fresh intent the front-end must remount
	// its hosted fields against.
	IntentID     string `json:"intent_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

type ExpressRequest struct {
	AttemptID string `json:"attempt_id"`
	Nonce     string `json:"nonce"` // device-wallet payment nonce
	Password  string `json:"password,omitempty"`
}

type StartWalletResponse struct {
	AttemptID   string         `json:"attempt_id"`
	OrderID     string         `json:"order_id"`
	ApprovalURL string         `json:"approval_url"`
	Quote       *QuoteResponse `json:"quote"`
}

// WalletSignal mirrors the cross-window success message posted by the
// approval popup: {type: "wallet_success", orderId, payerId?}.
type WalletSignal struct {
	Type    string `json:"type"`
	OrderID string `json:"orderId"`
	PayerID string `json:"payerId,omitempty"`
}

type WalletClosedRequest struct {
	AttemptID string `json:"attempt_id"`
}

type AttemptStatusResponse struct {
	AttemptID string `json:"attempt_id"`
	State     string `json:"state"`
	OrderID   string `json:"order_id,omitempty"`
	Token     string `json:"session_token,omitempty"`
	Error     string `json:"error,omitempty"`
}

type ClientKeyResponse struct {
	PublishableKey string `json:"publishable_key"`
}
