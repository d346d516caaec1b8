// Package domain holds the payment provider's wire shapes and results.
package domain

import "encoding/json"

// SourcePayPal is the payment source name recorded on orders.
const SourcePayPal = "paypal"

const (
	IntentCapture     = "CAPTURE"
	StatusCompleted   = "COMPLETED"
	CategoryPhysical  = "PHYSICAL_GOODS"
	UserActionPayNow  = "PAY_NOW"
	NoShipping        = "NO_SHIPPING"
	ProvidedAddress   = "SET_PROVIDED_ADDRESS"
	ImmediatePayment  = "IMMEDIATE_PAYMENT_REQUIRED"
	LandingPageLogin  = "LOGIN"
	DefaultLocale     = "en-US"
	DefaultBrandName  = "My Online Store"
	DefaultCurrency   = "USD"
	ModeSandbox       = "sandbox"
	LinkRelApprove    = "approve"
	LinkRelPayerAct   = "payer-action"
	LinkRelSelf       = "self"
	LinkRelCapture    = "capture"
	GrantTypeClientID = "client_credentials"
)

type Money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type Item struct {
	Name        string `json:"name"`
	Quantity    string `json:"quantity"`
	UnitAmount  Money  `json:"unit_amount"`
	Description string `json:"description,omitempty"`
	SKU         string `json:"sku,omitempty"`
	Category    string `json:"category"`
}

type AmountBreakdown struct {
	ItemTotal Money `json:"item_total"`
}

type Amount struct {
	CurrencyCode string          `json:"currency_code"`
	Value        string          `json:"value"`
	Breakdown    AmountBreakdown `json:"breakdown"`
}

type PurchaseUnit struct {
	ReferenceID string `json:"reference_id"`
	Amount      Amount `json:"amount"`
	Items       []Item `json:"items"`
}

type ApplicationContext struct {
	BrandName          string `json:"brand_name"`
	UserAction         string `json:"user_action"`
	ReturnURL          string `json:"return_url"`
	CancelURL          string `json:"cancel_url"`
	ShippingPreference string `json:"shipping_preference"`
}

type CreateOrderRequest struct {
	Intent             string             `json:"intent"`
	PurchaseUnits      []PurchaseUnit     `json:"purchase_units"`
	ApplicationContext ApplicationContext `json:"application_context"`
}

type PayerName struct {
	GivenName string `json:"given_name"`
	Surname   string `json:"surname"`
}

type ExperienceContext struct {
	PaymentMethodPreference string `json:"payment_method_preference"`
	BrandName               string `json:"brand_name"`
	Locale                  string `json:"locale"`
	LandingPage             string `json:"landing_page"`
	ShippingPreference      string `json:"shipping_preference"`
	UserAction              string `json:"user_action"`
	ReturnURL               string `json:"return_url,omitempty"`
	CancelURL               string `json:"cancel_url,omitempty"`
}

type PayPalSource struct {
	Name              PayerName         `json:"name"`
	EmailAddress      string            `json:"email_address"`
	ExperienceContext ExperienceContext `json:"experience_context"`
}

type PaymentSource struct {
	PayPal *PayPalSource `json:"paypal,omitempty"`
}

type ConfirmPaymentSourceRequest struct {
	PaymentSource PaymentSource `json:"payment_source"`
}

// AccessToken is a short-lived provider credential. It is used for one
// operation and never cached.
type AccessToken struct {
	Value     string
	TokenType string
	ExpiresIn int64
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

type RemoteOrder struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []Link `json:"links"`
	// ApproveURL is where the payer approves the payment.
	ApproveURL string `json:"-"`
}

type ConfirmationResult struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Links      []Link `json:"links"`
	ApproveURL string `json:"-"`
}

// RemoteOrderDetail keeps the provider's document verbatim for passthrough.
type RemoteOrderDetail struct {
	ID     string
	Status string
	Raw    json.RawMessage
}

func (d RemoteOrderDetail) MarshalJSON() ([]byte, error) {
	if len(d.Raw) == 0 {
		return []byte("null"), nil
	}
	return d.Raw, nil
}

type CaptureResult struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	PayerID string `json:"payer_id,omitempty"`
}

func (c CaptureResult) Completed() bool {
	return c.Status == StatusCompleted
}
