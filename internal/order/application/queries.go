package application

import (
	"context"
	"errors"

	"github.com/dmehra2102/checkout-service/internal/order/domain"
	"github.com/dmehra2102/checkout-service/pkg/store"
)

func (c *Checkout) Get(ctx context.Context, id string) (domain.Order, error) {
	o, err := c.orders.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Order{}, fail(ErrOrderNotFound, err, "Order not found")
	}
	return o, err
}

func (c *Checkout) List(ctx context.Context) ([]domain.Order, error) {
	return c.orders.List(ctx)
}

// Delete removes the order record only. Stock and provider state are left
// as they are.
func (c *Checkout) Delete(ctx context.Context, id string) error {
	ok, err := c.orders.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fail(ErrOrderNotFound, nil, "Order not found")
	}
	c.log.Info("order deleted", "order_id", id)
	return nil
}
