package application

import (
	"context"

	"github.com/dmehra2102/checkout-service/internal/account/domain"
)

type UserStore interface {
	Create(ctx context.Context, u domain.User) (domain.User, error)
	Get(ctx context.Context, id string) (domain.User, error)
	FindOne(ctx context.Context, field, value string) (domain.User, error)
	Update(ctx context.Context, id string, patch domain.UserPatch) (domain.User, error)
}
