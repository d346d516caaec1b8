package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	account "github.com/dmehra2102/checkout-service/internal/account/domain"
	inventoryapp "github.com/dmehra2102/checkout-service/internal/inventory/application"
	"github.com/dmehra2102/checkout-service/internal/order/domain"
	payment "github.com/dmehra2102/checkout-service/internal/payment/domain"
	"github.com/dmehra2102/checkout-service/pkg/outbox"
	"github.com/dmehra2102/checkout-service/pkg/store"
	"github.com/dmehra2102/checkout-service/pkg/tracing"
)

const aggregateType = "order"

// Steps named in CheckoutIncomplete events.
const (
	StepMapPayload     = "map_payload"
	StepCreateRemote   = "create_remote_order"
	StepRecordRemote   = "record_remote_order"
	StepConfirmSource  = "confirm_payment_source"
	StepDecrementStock = "decrement_stock"
	StepRecordCheckout = "record_checkout_url"
)

type LineRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"gt=0"`
}

type CreateRequest struct {
	UserID string        `json:"user_id" validate:"required"`
	Items  []LineRequest `json:"items" validate:"required,min=1,dive"`
}

type Option func(*Checkout)

// WithGatewayRetries retries authentication and order-detail reads up to n
// extra times on retryable provider errors, waiting attempt×backoff.
func WithGatewayRetries(n int, backoff time.Duration) Option {
	return func(c *Checkout) {
		c.retries = n
		c.backoff = backoff
	}
}

// WithGateway registers an additional provider for capture and detail
// lookups of orders it created.
func WithGateway(g PaymentGateway) Option {
	return func(c *Checkout) { c.gateways[g.Name()] = g }
}

// Checkout runs the checkout saga: local order first, then the provider,
// then stock. There is no distributed transaction. A failure after the
// order is stored leaves it pending and emits CheckoutIncomplete.
type Checkout struct {
	log       *slog.Logger
	orders    OrderRepository
	users     UserRepository
	inventory Inventory
	mapper    PaymentMapper
	events    EventPublisher
	tx        Transactor
	gateway   PaymentGateway
	gateways  map[string]PaymentGateway
	retries   int
	backoff   time.Duration
	tracer    trace.Tracer
}

func NewCheckout(log *slog.Logger, orders OrderRepository, users UserRepository, inv Inventory, mapper PaymentMapper, events EventPublisher, tx Transactor, gateway PaymentGateway, opts ...Option) *Checkout {
	c := &Checkout{
		log:       log,
		orders:    orders,
		users:     users,
		inventory: inv,
		mapper:    mapper,
		events:    events,
		tx:        tx,
		gateway:   gateway,
		gateways:  map[string]PaymentGateway{gateway.Name(): gateway},
		retries:   2,
		backoff:   200 * time.Millisecond,
		tracer:    otel.Tracer("checkout-saga"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type checkoutInput struct {
	user  account.User
	lines []domain.Line
}

// Create validates the request, stores a pending order, registers it with
// the provider, takes stock and records the checkout URL, in that order.
func (c *Checkout) Create(ctx context.Context, req CreateRequest) (domain.Order, error) {
	ctx, span := c.tracer.Start(ctx, "checkout.create", trace.WithAttributes(attribute.String("user_id", req.UserID)))
	defer span.End()

	in, err := c.validate(ctx, req)
	if err != nil {
		return domain.Order{}, record(span, err)
	}

	o, err := c.orders.Create(ctx, domain.NewOrder(in.user.ID, in.lines))
	if err != nil {
		return domain.Order{}, record(span, fmt.Errorf("persist order: %w", err))
	}
	span.SetAttributes(attribute.String("order_id", o.ID))
	c.log.Info("order persisted", "order_id", o.ID, "total", o.TotalPrice.StringFixed(2), "lines", len(o.Items))

	if err := c.complete(ctx, o, in.user.Profile); err != nil {
		return domain.Order{}, record(span, err)
	}
	c.log.Info("checkout started", "order_id", o.ID)

	out, err := c.orders.Get(ctx, o.ID)
	if err != nil {
		return domain.Order{}, record(span, fmt.Errorf("reload order: %w", err))
	}
	return out, nil
}

// validate rejects the request before anything is written. Stock is checked
// against the summed quantity of every line naming the same product.
func (c *Checkout) validate(ctx context.Context, req CreateRequest) (checkoutInput, error) {
	if req.UserID == "" || len(req.Items) == 0 {
		return checkoutInput{}, fail(ErrInvalidRequest, nil, "An order needs a user and at least one item")
	}
	wanted := map[string]int64{}
	for _, it := range req.Items {
		if it.ProductID == "" || it.Quantity <= 0 {
			return checkoutInput{}, fail(ErrInvalidRequest, nil, "Item quantities must be positive")
		}
		wanted[it.ProductID] += it.Quantity
	}

	user, err := c.users.Get(ctx, req.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return checkoutInput{}, fail(ErrUserNotFound, err, "User %s not found", req.UserID)
	}
	if err != nil {
		return checkoutInput{}, fmt.Errorf("load user: %w", err)
	}

	lines := make([]domain.Line, 0, len(req.Items))
	for _, it := range req.Items {
		p, err := c.inventory.Product(ctx, it.ProductID)
		if errors.Is(err, inventoryapp.ErrProductNotFound) {
			return checkoutInput{}, fail(ErrProductNotFound, err, "Product with id %s is not found", it.ProductID)
		}
		if err != nil {
			return checkoutInput{}, fmt.Errorf("load product: %w", err)
		}
		if !p.InStock(wanted[it.ProductID]) {
			return checkoutInput{}, fail(ErrInsufficientStock, nil, "The quantity of item %s is out of stock", it.ProductID)
		}
		lines = append(lines, domain.Line{Product: p, Quantity: it.Quantity})
	}
	return checkoutInput{user: user, lines: lines}, nil
}

// complete runs every step after persistence. The remote reference is saved
// as soon as it exists so a later failure leaves an order that can be found
// by it. Each order write commits together with its event.
func (c *Checkout) complete(ctx context.Context, o domain.Order, user account.Profile) error {
	var decremented []string
	incomplete := func(step string, err error) error {
		return c.incomplete(ctx, o, step, decremented, err)
	}
	gw := c.gateway

	payload, err := c.mapper.ToRemoteOrderRequest(o)
	if err != nil {
		return incomplete(StepMapPayload, err)
	}
	confirm := c.mapper.ToConfirmPaymentSourceRequest(o, user)

	token, err := c.authenticate(ctx, gw)
	if err != nil {
		return incomplete(StepCreateRemote, err)
	}
	remote, err := gw.CreateRemoteOrder(ctx, payload, token)
	if err == nil && remote.ID == "" {
		err = &payment.GatewayError{Op: "create_order", StatusCode: 200, Body: "response carries no order id"}
	}
	if err != nil {
		return incomplete(StepCreateRemote, err)
	}

	if err := o.AssignRemote(remote.ID, gw.Name()); err != nil {
		return incomplete(StepRecordRemote, err)
	}
	ref, source := o.RefOrderID, o.RefPaymentSource
	err = c.commit(ctx, o.ID, domain.OrderPatch{RefOrderID: &ref, RefPaymentSource: &source},
		domain.EventRemoteOrderCreated, domain.RemoteOrderCreated{OrderID: o.ID, RefOrderID: ref, PaymentSource: source})
	if err != nil {
		return incomplete(StepRecordRemote, err)
	}
	c.log.Info("remote order created", "order_id", o.ID, "ref_order_id", ref)

	token, err = c.authenticate(ctx, gw)
	if err != nil {
		return incomplete(StepConfirmSource, err)
	}
	conf, err := gw.ConfirmPaymentSource(ctx, ref, confirm, token)
	if err != nil {
		return incomplete(StepConfirmSource, err)
	}

	for _, it := range o.Items {
		if err := c.inventory.Decrement(ctx, it.Product.ID, it.Quantity); err != nil {
			return incomplete(StepDecrementStock, err)
		}
		decremented = append(decremented, it.Product.ID)
	}

	checkoutURL := remote.ApproveURL
	if checkoutURL == "" {
		checkoutURL = conf.ApproveURL
	}
	err = c.commit(ctx, o.ID, domain.OrderPatch{CheckoutURL: &checkoutURL}, domain.EventCheckoutStarted, domain.CheckoutStarted{
		OrderID:     o.ID,
		UserID:      user.ID,
		RefOrderID:  ref,
		TotalPrice:  o.TotalPrice.StringFixed(2),
		CheckoutURL: checkoutURL,
	})
	if err != nil {
		return incomplete(StepRecordCheckout, err)
	}
	return nil
}

// incomplete records a CheckoutIncomplete event. There is no order write to
// attach it to, so when the append fails its error is returned with the
// cause and the whole event is logged.
func (c *Checkout) incomplete(ctx context.Context, o domain.Order, step string, decremented []string, cause error) error {
	c.log.Error("checkout incomplete", "order_id", o.ID, "ref_order_id", o.RefOrderID,
		"step", step, "decremented", decremented, "err", cause)
	failure := fail(ErrCheckoutIncomplete, cause, "Checkout of order %s could not be completed", o.ID)

	ev, err := c.event(ctx, o.ID, domain.EventCheckoutIncomplete, domain.CheckoutIncomplete{
		OrderID:     o.ID,
		RefOrderID:  o.RefOrderID,
		Step:        step,
		Reason:      cause.Error(),
		Decremented: decremented,
	})
	if err == nil {
		err = c.events.Append(ctx, ev)
	}
	if err != nil {
		c.log.Error("checkout incomplete event lost", "order_id", o.ID, "event", string(ev.Payload), "err", err)
		return errors.Join(failure, fmt.Errorf("record %s: %w", domain.EventCheckoutIncomplete, err))
	}
	return failure
}

// authenticate fetches a fresh provider token. Tokens are never reused
// across operations.
func (c *Checkout) authenticate(ctx context.Context, gw PaymentGateway) (payment.AccessToken, error) {
	return retry(ctx, c, "authenticate", func(ctx context.Context) (payment.AccessToken, error) {
		return gw.Authenticate(ctx)
	})
}

// retry repeats fn while it fails with a retryable provider error. Only
// calls without side effects at the provider go through here.
func retry[T any](ctx context.Context, c *Checkout, op string, fn func(context.Context) (T, error)) (T, error) {
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil || attempt > c.retries || !payment.IsRetryable(err) {
			return v, err
		}
		c.log.Warn("provider call failed, retrying", "op", op, "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			return v, err
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}
}

// commit applies patch to the order and appends the event in one
// transaction: either both are stored or neither is.
func (c *Checkout) commit(ctx context.Context, orderID string, patch domain.OrderPatch, eventType string, payload any) error {
	ev, err := c.event(ctx, orderID, eventType, payload)
	if err != nil {
		return err
	}
	return c.tx.InTx(ctx, func(ctx context.Context) error {
		if err := c.orders.Apply(ctx, orderID, patch); err != nil {
			return err
		}
		if err := c.events.Append(ctx, ev); err != nil {
			return fmt.Errorf("append %s: %w", eventType, err)
		}
		return nil
	})
}

func (c *Checkout) event(ctx context.Context, orderID, eventType string, payload any) (outbox.Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return outbox.Event{}, fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return outbox.Event{
		AggregateType: aggregateType,
		AggregateID:   orderID,
		Type:          eventType,
		Payload:       raw,
		Headers:       map[string]string{"source": "order-service"},
		Traceparent:   tracing.Traceparent(ctx),
	}, nil
}

func record(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
