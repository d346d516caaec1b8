package application

import (
	"context"

	account "github.com/dmehra2102/checkout-service/internal/account/domain"
	inventory "github.com/dmehra2102/checkout-service/internal/inventory/domain"
	"github.com/dmehra2102/checkout-service/internal/order/domain"
	payment "github.com/dmehra2102/checkout-service/internal/payment/domain"
	"github.com/dmehra2102/checkout-service/pkg/outbox"
)

type OrderRepository interface {
	Create(ctx context.Context, o domain.Order) (domain.Order, error)
	Get(ctx context.Context, id string) (domain.Order, error)
	FindOne(ctx context.Context, field, value string) (domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
	Update(ctx context.Context, id string, patch domain.OrderPatch) (domain.Order, error)
	Apply(ctx context.Context, id string, patch domain.OrderPatch) error
	Delete(ctx context.Context, id string) (bool, error)
}

type UserRepository interface {
	Get(ctx context.Context, id string) (account.User, error)
}

type Inventory interface {
	Product(ctx context.Context, id string) (inventory.Product, error)
	Decrement(ctx context.Context, id string, quantity int64) error
}

// PaymentGateway is one payment provider. Implementations hold no token
// state; every call carries the token it must use.
type PaymentGateway interface {
	Name() string
	Authenticate(ctx context.Context) (payment.AccessToken, error)
	CreateRemoteOrder(ctx context.Context, payload payment.CreateOrderRequest, token payment.AccessToken) (payment.RemoteOrder, error)
	ConfirmPaymentSource(ctx context.Context, remoteOrderID string, payload payment.ConfirmPaymentSourceRequest, token payment.AccessToken) (payment.ConfirmationResult, error)
	GetRemoteOrderDetail(ctx context.Context, remoteOrderID string, token payment.AccessToken) (payment.RemoteOrderDetail, error)
	CaptureOrder(ctx context.Context, remoteOrderID string, token payment.AccessToken) (payment.CaptureResult, error)
}

type PaymentMapper interface {
	ToRemoteOrderRequest(o domain.Order) (payment.CreateOrderRequest, error)
	ToConfirmPaymentSourceRequest(o domain.Order, user account.Profile) payment.ConfirmPaymentSourceRequest
}

// EventPublisher appends to the outbox. Inside a Transactor call it must
// join the transaction carried by ctx.
type EventPublisher interface {
	Append(ctx context.Context, event outbox.Event) error
}

// Transactor commits an order write and the event describing it together.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
