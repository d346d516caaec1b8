package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestProduct_ValidatePrice(t *testing.T) {
	tests := []struct {
		price string
		want  error
	}{
		{"9.99", nil},
		{"10", nil},
		{"0.1", nil},
		{"0.100", nil},
		{"0", nil},
		{"0.335", ErrPriceScale},
		{"1.001", ErrPriceScale},
		{"-1", ErrNegativePrice},
	}
	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			price := decimal.RequireFromString(tt.price)
			assert.ErrorIs(t, Product{Price: price}.Validate(), tt.want)
			assert.ErrorIs(t, ProductPatch{Price: &price}.Validate(), tt.want)
		})
	}
	assert.NoError(t, ProductPatch{}.Validate())
}
