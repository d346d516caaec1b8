package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmehra2102/checkout-service/internal/inventory/domain"
	"github.com/dmehra2102/checkout-service/pkg/store"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Service struct {
	log      *slog.Logger
	products ProductStore
}

func NewService(log *slog.Logger, products ProductStore) *Service {
	return &Service{log: log, products: products}
}

func (s *Service) Product(ctx context.Context, id string) (domain.Product, error) {
	p, err := s.products.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return p, err
}

// Decrement takes quantity units of stock atomically. It fails without side
// effects when stock would go negative.
func (s *Service) Decrement(ctx context.Context, id string, quantity int64) error {
	err := s.products.IncrementField(ctx, id, domain.StockField, -quantity)
	switch {
	case errors.Is(err, store.ErrUnderflow):
		return fmt.Errorf("%w: %s", ErrInsufficientStock, id)
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrProductNotFound, id)
	case err != nil:
		return err
	}
	s.log.Info("stock decremented", "product_id", id, "quantity", quantity)
	return nil
}
