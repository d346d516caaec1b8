// Package application reports checkouts that stopped half way. It reads the
// provider's view of each incomplete checkout and logs it next to the local
// order; it never changes either side.
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	orderapp "github.com/dmehra2102/checkout-service/internal/order/application"
	order "github.com/dmehra2102/checkout-service/internal/order/domain"
	payment "github.com/dmehra2102/checkout-service/internal/payment/domain"
)

type OrderDetails interface {
	ProviderDetail(ctx context.Context, orderID string) (orderapp.ProviderView, error)
}

// Report is the outcome of looking at one incomplete checkout.
type Report struct {
	OrderID      string
	RefOrderID   string
	Step         string
	LocalStatus  order.OrderStatus
	RemoteStatus string
	Decremented  []string
	// NeedsAttention is set when the provider went further than the local
	// order, for example an approved or completed payment on a pending order.
	NeedsAttention bool
}

type Service struct {
	log    *slog.Logger
	orders OrderDetails
}

func NewService(log *slog.Logger, orders OrderDetails) *Service {
	return &Service{log: log, orders: orders}
}

// Handle routes one outbox event. Events other than CheckoutIncomplete are
// acknowledged without work.
func (s *Service) Handle(ctx context.Context, eventType string, payload []byte) error {
	switch eventType {
	case order.EventCheckoutIncomplete:
		var ev order.CheckoutIncomplete
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		_, err := s.Reconcile(ctx, ev)
		return err
	case order.EventRemoteOrderCreated, order.EventCheckoutStarted, order.EventOrderCaptured:
		s.log.Debug("event acknowledged", "type", eventType)
		return nil
	default:
		s.log.Warn("unknown event type", "type", eventType)
		return nil
	}
}

func (s *Service) Reconcile(ctx context.Context, ev order.CheckoutIncomplete) (Report, error) {
	r := Report{OrderID: ev.OrderID, RefOrderID: ev.RefOrderID, Step: ev.Step, Decremented: ev.Decremented}
	if ev.RefOrderID == "" {
		s.log.Info("incomplete checkout has no remote order", "order_id", ev.OrderID, "step", ev.Step, "reason", ev.Reason)
		return r, nil
	}

	view, err := s.orders.ProviderDetail(ctx, ev.OrderID)
	if errors.Is(err, orderapp.ErrOrderNotFound) {
		s.log.Warn("incomplete checkout order is gone", "order_id", ev.OrderID, "ref_order_id", ev.RefOrderID)
		return r, nil
	}
	if errors.Is(err, orderapp.ErrRemoteReferenceMissing) {
		// The provider created the order but the local link never committed.
		r.NeedsAttention = true
		s.log.Warn("remote order is not linked to its order", "order_id", ev.OrderID, "ref_order_id", ev.RefOrderID, "step", ev.Step)
		return r, nil
	}
	if err != nil {
		return r, fmt.Errorf("provider detail for order %s: %w", ev.OrderID, err)
	}

	r.LocalStatus = view.Order.Status
	r.RemoteStatus = view.RefOrder.Status
	r.NeedsAttention = r.LocalStatus == order.StatusPending &&
		(r.RemoteStatus == "APPROVED" || r.RemoteStatus == payment.StatusCompleted)

	log := s.log.Info
	if r.NeedsAttention || len(r.Decremented) > 0 {
		log = s.log.Warn
	}
	log("incomplete checkout reconciled",
		"order_id", r.OrderID,
		"ref_order_id", r.RefOrderID,
		"step", r.Step,
		"local_status", r.LocalStatus,
		"remote_status", r.RemoteStatus,
		"decremented", r.Decremented,
		"needs_attention", r.NeedsAttention,
	)
	return r, nil
}
