package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/checkout-service/pkg/refs"
)

const (
	KindProduct  refs.Kind = "products"
	KindCategory refs.Kind = "categories"
)

// StockField is the document field decremented by checkouts.
const StockField = "stock"

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name" validate:"required"`
	Slug        string    `json:"slug" validate:"required"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CategoryPatch struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Slug        *string `json:"slug,omitempty" validate:"omitempty,min=1"`
	Description *string `json:"description,omitempty"`
}

type Product struct {
	ID          string              `json:"id"`
	Name        string              `json:"name" validate:"required"`
	Description string              `json:"description,omitempty"`
	Price       decimal.Decimal     `json:"price"`
	Stock       int64               `json:"stock" validate:"gte=0"`
	Category    refs.Link[Category] `json:"category"`
	IsActive    bool                `json:"is_active"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

var (
	ErrNegativePrice = errors.New("price must not be negative")
	ErrPriceScale    = errors.New("price must have at most two decimal places")
)

func (p Product) Validate() error {
	return validatePrice(p.Price)
}

// validatePrice requires whole cents, the unit the payment provider totals in.
func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrNegativePrice
	}
	if !price.Equal(price.Round(2)) {
		return ErrPriceScale
	}
	return nil
}

// InStock reports whether quantity units can be taken from current stock.
func (p Product) InStock(quantity int64) bool {
	return quantity > 0 && p.Stock >= quantity
}

type ProductPatch struct {
	Name        *string          `json:"name,omitempty" validate:"omitempty,min=1"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Stock       *int64           `json:"stock,omitempty" validate:"omitempty,gte=0"`
	Category    *string          `json:"category,omitempty"`
	IsActive    *bool            `json:"is_active,omitempty"`
}

func (p ProductPatch) Validate() error {
	if p.Price == nil {
		return nil
	}
	return validatePrice(*p.Price)
}
