package application

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/checkout-service/internal/inventory/domain"
	"github.com/dmehra2102/checkout-service/internal/schema"
	"github.com/dmehra2102/checkout-service/pkg/refs"
	"github.com/dmehra2102/checkout-service/pkg/store"
	"github.com/dmehra2102/checkout-service/pkg/store/memory"
)

func newService(t *testing.T) (*Service, *store.RecordStore[domain.Product, domain.ProductPatch]) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := memory.NewBackend()
	resolver := refs.NewResolver(log, schema.New(), store.Source{Backend: backend})
	products := store.New[domain.Product, domain.ProductPatch](log, backend, resolver, domain.KindProduct)
	return NewService(log, products), products
}

func TestService_Product(t *testing.T) {
	ctx := context.Background()
	svc, products := newService(t)

	p, err := products.Create(ctx, domain.Product{Name: "Mug", Price: decimal.RequireFromString("9.99"), Stock: 5})
	require.NoError(t, err)

	got, err := svc.Product(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mug", got.Name)
	assert.True(t, got.InStock(5))
	assert.False(t, got.InStock(6))
	assert.False(t, got.InStock(0))

	_, err = svc.Product(ctx, "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestService_Decrement(t *testing.T) {
	ctx := context.Background()
	svc, products := newService(t)

	p, err := products.Create(ctx, domain.Product{Name: "Mug", Price: decimal.RequireFromString("9.99"), Stock: 5})
	require.NoError(t, err)

	require.NoError(t, svc.Decrement(ctx, p.ID, 2))
	assert.ErrorIs(t, svc.Decrement(ctx, p.ID, 4), ErrInsufficientStock)
	assert.ErrorIs(t, svc.Decrement(ctx, "missing", 1), ErrProductNotFound)

	got, err := svc.Product(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, got.Stock)
}

func TestProduct_NegativePriceRejected(t *testing.T) {
	_, products := newService(t)
	_, err := products.Create(context.Background(), domain.Product{Name: "Free money", Price: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestProduct_SubCentPriceRejected(t *testing.T) {
	ctx := context.Background()
	_, products := newService(t)

	_, err := products.Create(ctx, domain.Product{Name: "Gum", Price: decimal.RequireFromString("0.335"), Stock: 3})
	assert.ErrorIs(t, err, store.ErrValidation)

	p, err := products.Create(ctx, domain.Product{Name: "Gum", Price: decimal.RequireFromString("0.34"), Stock: 3})
	require.NoError(t, err)
	sub := decimal.RequireFromString("0.335")
	_, err = products.Update(ctx, p.ID, domain.ProductPatch{Price: &sub})
	assert.ErrorIs(t, err, store.ErrValidation)

	got, err := products.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("0.34")))
}
