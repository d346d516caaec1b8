package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	account "github.com/dmehra2102/checkout-service/internal/account/domain"
	inventory "github.com/dmehra2102/checkout-service/internal/inventory/domain"
	"github.com/dmehra2102/checkout-service/pkg/refs"
)

const KindOrder refs.Kind = "orders"

// RefOrderField is the document field holding the provider's order id.
const RefOrderField = "ref_order_id"

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPaid      OrderStatus = "paid"
	StatusShipped   OrderStatus = "shipped"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

var statusRank = map[OrderStatus]int{
	StatusPending:   0,
	StatusPaid:      1,
	StatusShipped:   2,
	StatusDelivered: 3,
}

func (s OrderStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok || s == StatusCancelled
}

func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition allows forward movement along
// pending → paid → shipped → delivered, and cancellation from any
// non-terminal status.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	if s.Terminal() || !to.Valid() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return statusRank[to] > statusRank[s]
}

var (
	ErrRemoteAlreadyAssigned = errors.New("order already references a different remote order")
	ErrEmptyOrder            = errors.New("order has no items")
	ErrTotalMismatch         = errors.New("total price does not equal the sum of subtotals")
)

type OrderItem struct {
	Product  refs.Link[inventory.Product] `json:"product"`
	Quantity int64                        `json:"quantity" validate:"gt=0"`
	Subtotal decimal.Decimal              `json:"subtotal"`
}

// UnitPrice is the price per unit frozen at order time.
func (i OrderItem) UnitPrice() decimal.Decimal {
	if i.Quantity == 0 {
		return decimal.Zero
	}
	return i.Subtotal.Div(decimal.NewFromInt(i.Quantity))
}

type Order struct {
	ID               string                     `json:"id"`
	User             refs.Link[account.Profile] `json:"user"`
	Items            []OrderItem                `json:"items" validate:"dive"`
	TotalPrice       decimal.Decimal            `json:"total_price"`
	Status           OrderStatus                `json:"status"`
	RefOrderID       string                     `json:"ref_order_id,omitempty"`
	RefPaymentSource string                     `json:"ref_payment_source,omitempty"`
	CheckoutURL      string                     `json:"checkout_url,omitempty"`
	PayerID          string                     `json:"payer_id,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
	UpdatedAt        time.Time                  `json:"updated_at"`
}

// NewOrder prices each line from the product's current price and sets the
// order total to the sum of the subtotals.
func NewOrder(user string, lines []Line) Order {
	items := make([]OrderItem, 0, len(lines))
	total := decimal.Zero
	for _, l := range lines {
		p := l.Product
		subtotal := p.Price.Mul(decimal.NewFromInt(l.Quantity))
		total = total.Add(subtotal)
		items = append(items, OrderItem{
			Product:  refs.Of(p.ID, &p),
			Quantity: l.Quantity,
			Subtotal: subtotal,
		})
	}
	return Order{
		User:       refs.To[account.Profile](user),
		Items:      items,
		TotalPrice: total,
		Status:     StatusPending,
	}
}

// Line is a priced request line: the product as read at order time and the
// requested quantity.
type Line struct {
	Product  inventory.Product
	Quantity int64
}

func (o Order) Validate() error {
	if len(o.Items) == 0 {
		return ErrEmptyOrder
	}
	if !o.Status.Valid() {
		return errors.New("unknown status " + string(o.Status))
	}
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Subtotal)
	}
	if !sum.Equal(o.TotalPrice) {
		return ErrTotalMismatch
	}
	return nil
}

// AssignRemote records the provider order once. Reassigning the same
// reference is a no-op; a different one is rejected.
func (o *Order) AssignRemote(ref, source string) error {
	if o.RefOrderID != "" && o.RefOrderID != ref {
		return ErrRemoteAlreadyAssigned
	}
	o.RefOrderID = ref
	o.RefPaymentSource = source
	return nil
}

// StatusAfterCapture is the status an order takes after a capture attempt
// that the provider reported as completed or not.
func (o Order) StatusAfterCapture(completed bool) OrderStatus {
	if completed && o.Status.CanTransition(StatusPaid) {
		return StatusPaid
	}
	return o.Status
}

type OrderPatch struct {
	Status           *OrderStatus `json:"status,omitempty"`
	RefOrderID       *string      `json:"ref_order_id,omitempty"`
	RefPaymentSource *string      `json:"ref_payment_source,omitempty"`
	CheckoutURL      *string      `json:"checkout_url,omitempty"`
	PayerID          *string      `json:"payer_id,omitempty"`
}

func (p OrderPatch) Validate() error {
	if p.Status != nil && !p.Status.Valid() {
		return errors.New("unknown status " + string(*p.Status))
	}
	return nil
}
