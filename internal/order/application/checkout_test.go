package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	account "github.com/dmehra2102/checkout-service/internal/account/domain"
	inventoryapp "github.com/dmehra2102/checkout-service/internal/inventory/application"
	inventory "github.com/dmehra2102/checkout-service/internal/inventory/domain"
	"github.com/dmehra2102/checkout-service/internal/order/domain"
	paymentapp "github.com/dmehra2102/checkout-service/internal/payment/application"
	payment "github.com/dmehra2102/checkout-service/internal/payment/domain"
	"github.com/dmehra2102/checkout-service/internal/schema"
	"github.com/dmehra2102/checkout-service/pkg/outbox"
	"github.com/dmehra2102/checkout-service/pkg/refs"
	"github.com/dmehra2102/checkout-service/pkg/store"
	"github.com/dmehra2102/checkout-service/pkg/store/memory"
)

type fakeGateway struct {
	mu            sync.Mutex
	name          string
	seq           int
	authErrs      []error
	createErr     error
	confirmErr    error
	captureErr    error
	captureStatus string
	detailErrs    []error

	authCalls    int
	createCalls  int
	captureCalls int
	detailCalls  int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{name: payment.SourcePayPal, captureStatus: payment.StatusCompleted}
}

func (g *fakeGateway) Name() string { return g.name }

func (g *fakeGateway) Authenticate(context.Context) (payment.AccessToken, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.authCalls++
	if len(g.authErrs) > 0 {
		err := g.authErrs[0]
		g.authErrs = g.authErrs[1:]
		return payment.AccessToken{}, err
	}
	return payment.AccessToken{Value: fmt.Sprintf("tok-%d", g.authCalls), TokenType: "Bearer", ExpiresIn: 300}, nil
}

func (g *fakeGateway) CreateRemoteOrder(_ context.Context, payload payment.CreateOrderRequest, _ payment.AccessToken) (payment.RemoteOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	if g.createErr != nil {
		return payment.RemoteOrder{}, g.createErr
	}
	g.seq++
	id := fmt.Sprintf("REF-%d", g.seq)
	return payment.RemoteOrder{
		ID:         id,
		Status:     "CREATED",
		ApproveURL: "https://www.sandbox.paypal.com/checkoutnow?token=" + id,
	}, nil
}

func (g *fakeGateway) ConfirmPaymentSource(_ context.Context, id string, _ payment.ConfirmPaymentSourceRequest, _ payment.AccessToken) (payment.ConfirmationResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.confirmErr != nil {
		return payment.ConfirmationResult{}, g.confirmErr
	}
	return payment.ConfirmationResult{ID: id, Status: "PAYER_ACTION_REQUIRED"}, nil
}

func (g *fakeGateway) GetRemoteOrderDetail(_ context.Context, id string, _ payment.AccessToken) (payment.RemoteOrderDetail, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.detailCalls++
	if len(g.detailErrs) > 0 {
		err := g.detailErrs[0]
		g.detailErrs = g.detailErrs[1:]
		return payment.RemoteOrderDetail{}, err
	}
	raw := json.RawMessage(fmt.Sprintf(`{"id":%q,"status":"APPROVED"}`, id))
	return payment.RemoteOrderDetail{ID: id, Status: "APPROVED", Raw: raw}, nil
}

func (g *fakeGateway) CaptureOrder(_ context.Context, id string, _ payment.AccessToken) (payment.CaptureResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.captureCalls++
	if g.captureErr != nil {
		return payment.CaptureResult{}, g.captureErr
	}
	return payment.CaptureResult{ID: id, Status: g.captureStatus, PayerID: "PAYER1"}, nil
}

// failingEvents rejects appends of the event types in fail.
type failingEvents struct {
	*outbox.MemoryStore
	fail map[string]error
}

func (e *failingEvents) Append(ctx context.Context, ev outbox.Event) error {
	if err := e.fail[ev.Type]; err != nil {
		return err
	}
	return e.MemoryStore.Append(ctx, ev)
}

type fixture struct {
	checkout *Checkout
	gateway  *fakeGateway
	events   *outbox.MemoryStore
	appends  *failingEvents
	users    *store.RecordStore[account.User, account.UserPatch]
	products *store.RecordStore[inventory.Product, inventory.ProductPatch]
	orders   *store.RecordStore[domain.Order, domain.OrderPatch]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := memory.NewBackend()
	resolver := refs.NewResolver(log, schema.New(), store.Source{Backend: backend})

	f := &fixture{
		gateway:  newFakeGateway(),
		events:   outbox.NewMemoryStore(),
		users:    store.New[account.User, account.UserPatch](log, backend, resolver, account.KindUser),
		products: store.New[inventory.Product, inventory.ProductPatch](log, backend, resolver, inventory.KindProduct),
		orders:   store.New[domain.Order, domain.OrderPatch](log, backend, resolver, domain.KindOrder),
	}
	f.appends = &failingEvents{MemoryStore: f.events, fail: map[string]error{}}
	mapper := paymentapp.NewMapper(paymentapp.MapperConfig{BaseURI: "http://localhost:8080"})
	f.checkout = NewCheckout(log, f.orders, f.users, inventoryapp.NewService(log, f.products), mapper, f.appends, backend, f.gateway,
		WithGatewayRetries(2, time.Millisecond))
	return f
}

func (f *fixture) user(t *testing.T) account.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), account.User{
		Profile:  account.Profile{Email: "jane@example.com", FullName: "Jane Doe", Role: account.RoleCustomer, IsActive: true},
		Password: "$2a$10$hash",
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) product(t *testing.T, name, price string, stock int64) inventory.Product {
	t.Helper()
	p, err := f.products.Create(context.Background(), inventory.Product{
		Name: name, Price: decimal.RequireFromString(price), Stock: stock, IsActive: true,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) stock(t *testing.T, id string) int64 {
	t.Helper()
	p, err := f.products.Get(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) eventTypes() []string {
	var out []string
	for _, e := range f.events.Events() {
		out = append(out, e.Type)
	}
	return out
}

func TestCheckout_Create(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t)
	p1 := f.product(t, "Mug", "9.99", 5)

	o, err := f.checkout.Create(ctx, CreateRequest{UserID: u.ID, Items: []LineRequest{{ProductID: p1.ID, Quantity: 2}}})
	require.NoError(t, err)

	assert.Equal(t, "19.98", o.TotalPrice.StringFixed(2))
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Equal(t, "REF-1", o.RefOrderID)
	assert.Equal(t, payment.SourcePayPal, o.RefPaymentSource)
	assert.Equal(t, "https://www.sandbox.paypal.com/checkoutnow?token=REF-1", o.CheckoutURL)
	assert.EqualValues(t, 3, f.stock(t, p1.ID))

	require.True(t, o.User.Resolved())
	assert.Equal(t, "jane@example.com", o.User.Value.Email)
	require.Len(t, o.Items, 1)
	require.True(t, o.Items[0].Product.Resolved())
	assert.Equal(t, "Mug", o.Items[0].Product.Value.Name)

	raw, err := json.Marshal(o)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "password")

	assert.Equal(t, []string{domain.EventRemoteOrderCreated, domain.EventCheckoutStarted}, f.eventTypes())
	ev := f.events.Events()[1]
	assert.Equal(t, o.ID, ev.AggregateID)
	assert.JSONEq(t, fmt.Sprintf(`{"order_id":%q,"user_id":%q,"ref_order_id":"REF-1","total_price":"19.98","checkout_url":%q}`,
		o.ID, u.ID, o.CheckoutURL), string(ev.Payload))
}

func TestCheckout_CreateRejectsBeforeWriting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t)
	p := f.product(t, "Mug", "9.99", 3)

	tests := []struct {
		name   string
		req    CreateRequest
		kind   error
		detail string
	}{
		{
			name: "no items",
			req:  CreateRequest{UserID: u.ID},
			kind: ErrInvalidRequest,
		},
		{
			name: "zero quantity",
			req:  CreateRequest{UserID: u.ID, Items: []LineRequest{{ProductID: p.ID, Quantity: 0}}},
			kind: ErrInvalidRequest,
		},
		{
			name:   "unknown user",
			req:    CreateRequest{UserID: "ghost", Items: []LineRequest{{ProductID: p.ID, Quantity: 1}}},
			kind:   ErrUserNotFound,
			detail: "User ghost not found",
		},
		{
			name:   "unknown product",
			req:    CreateRequest{UserID: u.ID, Items: []LineRequest{{ProductID: "nope", Quantity: 1}}},
			kind:   ErrProductNotFound,
			detail: "Product with id nope is not found",
		},
		{
			name:   "over stock",
			req:    CreateRequest{UserID: u.ID, Items: []LineRequest{{ProductID: p.ID, Quantity: 4}}},
			kind:   ErrInsufficientStock,
			detail: fmt.Sprintf("The quantity of item %s is out of stock", p.ID),
		},
		{
			name: "duplicate lines over stock together",
			req: CreateRequest{UserID: u.ID, Items: []LineRequest{
				{ProductID: p.ID, Quantity: 2},
				{ProductID: p.ID, Quantity: 2},
			}},
			kind: ErrInsufficientStock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.checkout.Create(ctx, tt.req)
			require.ErrorIs(t, err, tt.kind)
			if tt.detail != "" {
				d, ok := Detail(err)
				require.True(t, ok)
				assert.Equal(t, tt.detail, d)
			}
		})
	}

	orders, err := f.checkout.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.EqualValues(t, 3, f.stock(t, p.ID))
	assert.Zero(t, f.gateway.authCalls)
	assert.Empty(t, f.events.Events())
}

func TestCheckout_CreateDuplicateLinesWithinStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t)
	p := f.product(t, "Mug", "9.99", 4)

	o, err := f.checkout.Create(ctx, CreateRequest{UserID: u.ID, Items: []LineRequest{
		{ProductID: p.ID, Quantity: 1},
		{ProductID: p.ID, Quantity: 3},
	}})
	require.NoError(t, err)
	assert.Len(t, o.Items, 2)
	assert.Equal(t, "39.96", o.TotalPrice.StringFixed(2))
	assert.EqualValues(t, 0, f.stock(t, p.ID))
}

func TestCheckout_CreateMultipleProducts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t)
	a := f.product(t, "Mug", "9.99", 5)
	b := f.product(t, "Spoon", "0.10", 10)

	o, err := f.checkout.Create(ctx, CreateRequest{UserID: u.ID, Items: []LineRequest{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: b.ID, Quantity: 3},
	}})
	require.NoError(t, err)
	assert.Equal(t, "20.28", o.TotalPrice.StringFixed(2))
	assert.EqualValues(t, 3, f.stock(t, a.ID))
	assert.EqualValues(t, 7, f.stock(t, b.ID))
}

func TestCheckout_CreateRemoteFailureLeavesPendingOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t)
	p := f.product(t, "Mug", "9.99", 5)
	f.gateway.createErr = &payment.GatewayError{Op: "create_order", StatusCode: 503, Body: "unavailable"}

	_, err := f.checkout.Create(ctx, CreateRequest{UserID: u.ID, Items: []LineRequest{{ProductID: p.ID, Quantity: 2}}})
	require.ErrorIs(t, err, ErrCheckoutIncomplete)
	var gwErr *payment.GatewayError
	assert.ErrorAs(t, err, &gwErr)
	assert.Equal(t, 1, f.gateway.createCalls, "order creation is never retried")

	orders, err := f.checkout.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.StatusPending, orders[0].Status)
	assert.Empty(t, orders[0].RefOrderID)
	assert.EqualValues(t, 5, f.stock(t, p.ID))

	require.Equal(t, []string{domain.EventCheckoutIncomplete}, f.eventTypes())
	var payload domain.CheckoutIncomplete
	require.NoError(t, json.Unmarshal(f.events.Events()[0].Payload, &payload))
	assert.Equal(t, StepCreateRemote, payload.Step)
	assert.Equal(t, orders[0].ID, payload.OrderID)
}

func TestCheckout_CreateConfirmFailureKeepsRemoteReference(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t)
	p := f.product(t, "Mug", "9.99", 5)
	f.gateway.confirmErr = errors.New("connection reset")

	_, err := f.checkout.Create(ctx, CreateRequest{UserID: u.ID, Items: []LineRequest{{ProductID: p.ID, Quantity: 2}}})
	require.ErrorIs(t, err, ErrCheckoutIncomplete)

	o, err := f.orders.FindOne(ctx, domain.RefOrderField, "REF-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Empty(t, o.CheckoutURL)
	assert.EqualValues(t, 5, f.stock(t, p.ID))

	require.Equal(t, []string{domain.EventRemoteOrderCreated, domain.EventCheckoutIncomplete}, f.eventTypes())
	var payload domain.CheckoutIncomplete
	require.NoError(t, json.Unmarshal(f.events.Events()[1].Payload, &payload))
	assert.Equal(t, StepConfirmSource, payload.Step)
	assert.Equal(t, "REF-1", payload.RefOrderID)
}

func TestCheckout_RemoteReferenceCommitsWithItsEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t)
	p := f.product(t, "Mug", "9.99", 5)
	f.appends.fail[domain.EventRemoteOrderCreated] = errors.New("outbox unavailable")

	_, err := f.checkout.Create(ctx, CreateRequest{UserID: u.ID, Items: []LineRequest{{ProductID: p.ID, Quantity: 2}}})
	require.ErrorIs(t, err, ErrCheckoutIncomplete)

	orders, err := f.checkout.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Empty(t, orders[0].RefOrderID, "reference rolled back with its event")
	assert.Empty(t, orders[0].RefPaymentSource)
	assert.EqualValues(t, 5, f.stock(t, p.ID))

	require.Equal(t, []string{domain.EventCheckoutIncomplete}, f.eventTypes())
	var payload domain.CheckoutIncomplete
	require.NoError(t, json.Unmarshal(f.events.Events()[0].Payload, &payload))
	assert.Equal(t, StepRecordRemote, payload.Step)
	assert.Equal(t, "REF-1", payload.RefOrderID, "the provider order is still named")
}

func TestCheckout_CheckoutURLCommitsWithCheckoutStarted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t)
	p := f.product(t, "Mug", "9.99", 5)
	f.appends.fail[domain.EventCheckoutStarted] = errors.New("outbox unavailable")

	_, err := f.checkout.Create(ctx, CreateRequest{UserID: u.ID, Items: []LineRequest{{ProductID: p.ID, Quantity: 2}}})
	require.ErrorIs(t, err, ErrCheckoutIncomplete)

	o, err := f.orders.FindOne(ctx, domain.RefOrderField, "REF-1")
	require.NoError(t, err)
	assert.Empty(t, o.CheckoutURL)
	assert.EqualValues(t, 3, f.stock(t, p.ID))

	require.Equal(t, []string{domain.EventRemoteOrderCreated, domain.EventCheckoutIncomplete}, f.eventTypes())
	var payload domain.CheckoutIncomplete
	require.NoError(t, json.Unmarshal(f.events.Events()[1].Payload, &payload))
	assert.Equal(t, StepRecordCheckout, payload.Step)
	assert.Equal(t, []string{p.ID}, payload.Decremented)
}

func TestCheckout_LostIncompleteEventIsReturned(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t)
	p := f.product(t, "Mug", "9.99", 5)
	lost := errors.New("outbox unavailable")
	f.appends.fail[domain.EventCheckoutIncomplete] = lost
	f.gateway.confirmErr = errors.New("connection reset")

	_, err := f.checkout.Create(ctx, CreateRequest{UserID: u.ID, Items: []LineRequest{{ProductID: p.ID, Quantity: 2}}})
	require.ErrorIs(t, err, ErrCheckoutIncomplete)
	assert.ErrorIs(t, err, lost)
	d, ok := Detail(err)
	require.True(t, ok)
	assert.Contains(t, d, "could not be completed")

	_, err = f.orders.FindOne(ctx, domain.RefOrderField, "REF-1")
	require.NoError(t, err)
	assert.Equal(t, []string{domain.EventRemoteOrderCreated}, f.eventTypes(), "the linked reference has its own event")
}

func TestCheckout_AuthenticateRetriesOnlyRetryableErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("retryable", func(t *testing.T) {
		f := newFixture(t)
		u := f.user(t)
		p := f.product(t, "Mug", "9.99", 5)
		f.gateway.authErrs = []error{
			&payment.GatewayError{Op: "authenticate", StatusCode: 503},
			&payment.GatewayError{Op: "authenticate", StatusCode: 429},
		}

		_, err := f.checkout.Create(ctx, CreateRequest{UserID: u.ID, Items: []LineRequest{{ProductID: p.ID, Quantity: 1}}})
		require.NoError(t, err)
		assert.Equal(t, 4, f.gateway.authCalls)
	})

	t.Run("rejected credentials", func(t *testing.T) {
		f := newFixture(t)
		u := f.user(t)
		p := f.product(t, "Mug", "9.99", 5)
		f.gateway.authErrs = []error{&payment.GatewayError{Op: "authenticate", StatusCode: 401}}

		_, err := f.checkout.Create(ctx, CreateRequest{UserID: u.ID, Items: []LineRequest{{ProductID: p.ID, Quantity: 1}}})
		require.ErrorIs(t, err, ErrCheckoutIncomplete)
		assert.Equal(t, 1, f.gateway.authCalls)
		assert.Zero(t, f.gateway.createCalls)
	})
}

func TestCheckout_Capture(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		status string
		want   domain.OrderStatus
	}{
		{name: "completed", status: payment.StatusCompleted, want: domain.StatusPaid},
		{name: "not completed", status: "PENDING", want: domain.StatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			u := f.user(t)
			p := f.product(t, "Mug", "9.99", 5)
			created, err := f.checkout.Create(ctx, CreateRequest{UserID: u.ID, Items: []LineRequest{{ProductID: p.ID, Quantity: 1}}})
			require.NoError(t, err)
			f.gateway.captureStatus = tt.status

			o, err := f.checkout.Capture(ctx, created.RefOrderID, "PAYER1")
			require.NoError(t, err)
			assert.Equal(t, created.ID, o.ID)
			assert.Equal(t, tt.want, o.Status)
			assert.Equal(t, "PAYER1", o.PayerID)
			assert.Equal(t, []string{domain.EventRemoteOrderCreated, domain.EventCheckoutStarted, domain.EventOrderCaptured}, f.eventTypes())
		})
	}
}

func TestCheckout_CaptureNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	shipped := domain.StatusShipped
	o := seedOrder(t, f, "REF-9", payment.SourcePayPal)
	_, err := f.orders.Update(ctx, o.ID, domain.OrderPatch{Status: &shipped})
	require.NoError(t, err)

	got, err := f.checkout.Capture(ctx, "REF-9", "PAYER1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipped, got.Status)
}

func TestCheckout_CaptureCommitsWithOrderCaptured(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedOrder(t, f, "REF-C", payment.SourcePayPal)
	f.appends.fail[domain.EventOrderCaptured] = errors.New("outbox unavailable")

	_, err := f.checkout.Capture(ctx, "REF-C", "PAYER1")
	require.Error(t, err)

	o, err := f.orders.FindOne(ctx, domain.RefOrderField, "REF-C")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Empty(t, o.PayerID)
	assert.Empty(t, f.events.Events())
}

func TestCheckout_CaptureErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedOrder(t, f, "REF-S", "stripe")
	seedOrder(t, f, "REF-P", payment.SourcePayPal)

	_, err := f.checkout.Capture(ctx, "", "PAYER1")
	assert.ErrorIs(t, err, ErrRemoteReferenceMissing)

	_, err = f.checkout.Capture(ctx, "REF-UNKNOWN", "PAYER1")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	d, _ := Detail(err)
	assert.Equal(t, "Order not found", d)

	_, err = f.checkout.Capture(ctx, "REF-S", "PAYER1")
	assert.ErrorIs(t, err, ErrUnsupportedPaymentSource)
	d, _ = Detail(err)
	assert.Equal(t, "Payment source stripe is not supported", d)
	assert.Zero(t, f.gateway.captureCalls)

	f.gateway.captureErr = &payment.GatewayError{Op: "capture", StatusCode: 422, Body: "ORDER_NOT_APPROVED"}
	_, err = f.checkout.Capture(ctx, "REF-P", "PAYER1")
	assert.ErrorIs(t, err, ErrGateway)
	assert.Equal(t, 1, f.gateway.captureCalls, "capture is never retried")

	o, err := f.orders.FindOne(ctx, domain.RefOrderField, "REF-P")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Empty(t, o.PayerID)
	assert.Empty(t, f.events.Events())
}

func TestCheckout_ProviderDetail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := seedOrder(t, f, "REF-D", payment.SourcePayPal)
	f.gateway.detailErrs = []error{&payment.GatewayError{Op: "order_detail", StatusCode: 502}}

	view, err := f.checkout.ProviderDetail(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.gateway.detailCalls)
	assert.Equal(t, "REF-D", view.RefOrder.ID)
	assert.Equal(t, o.ID, view.Order.ID)

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"ref_order":{"id":"REF-D","status":"APPROVED"}`)

	bare, err := f.orders.Create(ctx, domain.NewOrder(o.User.ID, []domain.Line{{Product: *o.Items[0].Product.Value, Quantity: 1}}))
	require.NoError(t, err)
	_, err = f.checkout.ProviderDetail(ctx, bare.ID)
	assert.ErrorIs(t, err, ErrRemoteReferenceMissing)

	_, err = f.checkout.ProviderDetail(ctx, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCheckout_GetListDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := seedOrder(t, f, "REF-A", payment.SourcePayPal)
	seedOrder(t, f, "REF-B", payment.SourcePayPal)

	got, err := f.checkout.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "REF-A", got.RefOrderID)

	all, err := f.checkout.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, f.checkout.Delete(ctx, a.ID))
	_, err = f.checkout.Get(ctx, a.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.ErrorIs(t, f.checkout.Delete(ctx, a.ID), ErrOrderNotFound)
}

// seedOrder stores an order that already has a provider reference.
func seedOrder(t *testing.T, f *fixture, ref, source string) domain.Order {
	t.Helper()
	u := f.user(t)
	p := f.product(t, "Mug", "9.99", 5)
	o := domain.NewOrder(u.ID, []domain.Line{{Product: p, Quantity: 1}})
	require.NoError(t, o.AssignRemote(ref, source))
	created, err := f.orders.Create(context.Background(), o)
	require.NoError(t, err)
	return created
}
