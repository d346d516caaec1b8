package domain

const (
	EventRemoteOrderCreated = "RemoteOrderCreated"
	EventCheckoutStarted    = "CheckoutStarted"
	EventCheckoutIncomplete = "CheckoutIncomplete"
	EventOrderCaptured      = "OrderCaptured"
)

// RemoteOrderCreated is committed with the order's remote reference.
type RemoteOrderCreated struct {
	OrderID       string `json:"order_id"`
	RefOrderID    string `json:"ref_order_id"`
	PaymentSource string `json:"payment_source"`
}

type CheckoutStarted struct {
	OrderID     string `json:"order_id"`
	UserID      string `json:"user_id"`
	RefOrderID  string `json:"ref_order_id"`
	TotalPrice  string `json:"total_price"`
	CheckoutURL string `json:"checkout_url"`
}

// CheckoutIncomplete records a checkout that failed after the order was
// persisted. Nothing is rolled back; Decremented lists the products whose
// stock was already taken.
type CheckoutIncomplete struct {
	OrderID     string   `json:"order_id"`
	RefOrderID  string   `json:"ref_order_id,omitempty"`
	Step        string   `json:"step"`
	Reason      string   `json:"reason"`
	Decremented []string `json:"decremented,omitempty"`
}

type OrderCaptured struct {
	OrderID      string      `json:"order_id"`
	RefOrderID   string      `json:"ref_order_id"`
	RemoteStatus string      `json:"remote_status"`
	Status       OrderStatus `json:"status"`
	PayerID      string      `json:"payer_id"`
}
