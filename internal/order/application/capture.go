package application

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/checkout-service/internal/order/domain"
	payment "github.com/dmehra2102/checkout-service/internal/payment/domain"
	"github.com/dmehra2102/checkout-service/pkg/store"
)

// Capture settles the order the provider knows as refOrderID. A COMPLETED
// capture moves a pending order to paid; any other outcome keeps its
// status. The payer id is stored either way.
func (c *Checkout) Capture(ctx context.Context, refOrderID, payerID string) (domain.Order, error) {
	ctx, span := c.tracer.Start(ctx, "checkout.capture", trace.WithAttributes(attribute.String("ref_order_id", refOrderID)))
	defer span.End()

	if refOrderID == "" {
		return domain.Order{}, record(span, fail(ErrRemoteReferenceMissing, nil, "Reference order is not found"))
	}
	o, err := c.orders.FindOne(ctx, domain.RefOrderField, refOrderID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Order{}, record(span, fail(ErrOrderNotFound, err, "Order not found"))
	}
	if err != nil {
		return domain.Order{}, record(span, fmt.Errorf("find order: %w", err))
	}

	gw, err := c.gatewayFor(o)
	if err != nil {
		return domain.Order{}, record(span, err)
	}

	token, err := c.authenticate(ctx, gw)
	if err != nil {
		return domain.Order{}, record(span, fail(ErrGateway, err, "Payment provider is unavailable"))
	}
	res, err := gw.CaptureOrder(ctx, o.RefOrderID, token)
	if err != nil {
		return domain.Order{}, record(span, fail(ErrGateway, err, "Payment capture failed"))
	}

	status := o.StatusAfterCapture(res.Completed())
	if res.Completed() != (status == domain.StatusPaid) {
		c.log.Warn("capture result does not change status", "order_id", o.ID,
			"status", o.Status, "remote_status", res.Status)
	}
	err = c.commit(ctx, o.ID, domain.OrderPatch{Status: &status, PayerID: &payerID}, domain.EventOrderCaptured, domain.OrderCaptured{
		OrderID:      o.ID,
		RefOrderID:   o.RefOrderID,
		RemoteStatus: res.Status,
		Status:       status,
		PayerID:      payerID,
	})
	if err != nil {
		return domain.Order{}, record(span, fmt.Errorf("record capture: %w", err))
	}
	updated, err := c.orders.Get(ctx, o.ID)
	if err != nil {
		return domain.Order{}, record(span, fmt.Errorf("reload order: %w", err))
	}
	c.log.Info("order captured", "order_id", updated.ID, "remote_status", res.Status, "status", updated.Status)
	return updated, nil
}

// ProviderView is an order next to the provider's own record of it.
type ProviderView struct {
	RefOrder payment.RemoteOrderDetail `json:"ref_order"`
	Order    domain.Order              `json:"order"`
}

func (c *Checkout) ProviderDetail(ctx context.Context, orderID string) (ProviderView, error) {
	ctx, span := c.tracer.Start(ctx, "checkout.provider_detail", trace.WithAttributes(attribute.String("order_id", orderID)))
	defer span.End()

	o, err := c.Get(ctx, orderID)
	if err != nil {
		return ProviderView{}, record(span, err)
	}
	gw, err := c.gatewayFor(o)
	if err != nil {
		return ProviderView{}, record(span, err)
	}

	detail, err := retry(ctx, c, "order_detail", func(ctx context.Context) (payment.RemoteOrderDetail, error) {
		token, err := gw.Authenticate(ctx)
		if err != nil {
			return payment.RemoteOrderDetail{}, err
		}
		return gw.GetRemoteOrderDetail(ctx, o.RefOrderID, token)
	})
	if err != nil {
		return ProviderView{}, record(span, fail(ErrGateway, err, "Payment provider lookup failed"))
	}
	return ProviderView{RefOrder: detail, Order: o}, nil
}

func (c *Checkout) gatewayFor(o domain.Order) (PaymentGateway, error) {
	if o.RefOrderID == "" {
		return nil, fail(ErrRemoteReferenceMissing, nil, "Reference order is not found")
	}
	gw, ok := c.gateways[o.RefPaymentSource]
	if !ok {
		return nil, fail(ErrUnsupportedPaymentSource, nil, "Payment source %s is not supported", o.RefPaymentSource)
	}
	return gw, nil
}
