package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"

	account "github.com/dmehra2102/checkout-service/internal/account/domain"
	inventory "github.com/dmehra2102/checkout-service/internal/inventory/domain"
	order "github.com/dmehra2102/checkout-service/internal/order/domain"
	"github.com/dmehra2102/checkout-service/pkg/refs"
)

func TestSchema_TargetsAreKnownKinds(t *testing.T) {
	s := New()
	known := map[refs.Kind]bool{}
	for _, tbl := range Tables() {
		known[tbl.Kind] = true
	}

	var walk func(fields []refs.Field)
	walk = func(fields []refs.Field) {
		for _, f := range fields {
			switch f.Mode {
			case refs.One, refs.Many:
				assert.True(t, known[f.Target], "field %s targets unknown kind %s", f.Name, f.Target)
			default:
				walk(f.Fields)
			}
		}
	}
	for kind, fields := range s {
		assert.True(t, known[kind], "schema kind %s has no table", kind)
		walk(fields)
	}
}

func TestSchema_Leaves(t *testing.T) {
	s := New()
	assert.Empty(t, s.Fields(account.KindUser))
	assert.Empty(t, s.Fields(inventory.KindCategory))
	assert.Len(t, s.Fields(order.KindOrder), 2)
}
