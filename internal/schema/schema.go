// Package schema declares which document fields reference other entities.
package schema

import (
	account "github.com/dmehra2102/checkout-service/internal/account/domain"
	inventory "github.com/dmehra2102/checkout-service/internal/inventory/domain"
	order "github.com/dmehra2102/checkout-service/internal/order/domain"
	"github.com/dmehra2102/checkout-service/pkg/refs"
	"github.com/dmehra2102/checkout-service/pkg/store/postgres"
)

func New() refs.Schema {
	return refs.Schema{
		order.KindOrder: {
			refs.Ref("user", account.KindUser),
			refs.NestedList("items",
				refs.Ref("product", inventory.KindProduct),
			),
		},
		inventory.KindProduct: {
			refs.Ref("category", inventory.KindCategory),
		},
	}
}

// Tables lists the Postgres collections and their indexed fields.
func Tables() []postgres.Table {
	return []postgres.Table{
		{Kind: account.KindUser, Unique: []string{"email"}},
		{Kind: inventory.KindCategory, Unique: []string{"slug"}},
		{Kind: inventory.KindProduct},
		{Kind: order.KindOrder, Index: []string{order.RefOrderField}},
	}
}
