package model

// Wire types for the wallet provider's REST API and webhooks.

type Payer struct {
	PayerID string `json:"payer_id"`
	Email   string `json:"email_address"`
}

type WalletLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type WalletOrderResult struct {
	ID     string       `json:"id"`
	Links  []WalletLink `json:"links"`
	Status string       `json:"status"`
	Payer  Payer        `json:"payer"`
}

type RelatedIDs struct {
	OrderID string `json:"order_id"`
}

type SupplementaryData struct {
	RelatedIDs RelatedIDs `json:"related_ids"`
}

type WalletResource struct {
	ID                string            `json:"id"`
	Status            string            `json:"status"`
	Payer             Payer             `json:"payer"`
	SupplementaryData SupplementaryData `json:"supplementary_data"`
}

type WalletWebhookEvent struct {
	ID         string         `json:"id"`
	EventType  string         `json:"event_type"`
	CreateTime string         `json:"create_time"`
	Resource   WalletResource `json:"resource"`
}

// Wire types for the hosted-intent provider.

type HostedIntentResult struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

type HostedConfirmResult struct {
	ID          string `json:"id"`
	Status      string `json:"status"` // succeeded, requires_action, failed
	ActionToken string `json:"action_token,omitempty"`
	DeclineCode string `json:"decline_code,omitempty"`
	Message     string `json:"message,omitempty"`
}
