package application

import (
	"context"

	"github.com/dmehra2102/checkout-service/internal/inventory/domain"
)

// ProductStore is the subset of the product RecordStore the stock service
// needs.
type ProductStore interface {
	Get(ctx context.Context, id string) (domain.Product, error)
	IncrementField(ctx context.Context, id, field string, delta int64) error
}
