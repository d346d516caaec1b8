package domain

import (
	"time"

	"github.com/dmehra2102/checkout-service/pkg/refs"
)

const KindUser refs.Kind = "users"

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Profile is the client-visible part of a user. Orders reference users
// through it so materialized orders never carry the password hash.
type Profile struct {
	ID            string    `json:"id"`
	Email         string    `json:"email" validate:"required,email"`
	FullName      string    `json:"full_name" validate:"required"`
	Role          string    `json:"role" validate:"required,oneof=customer admin"`
	IsActive      bool      `json:"is_active"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type User struct {
	Profile
	Password string `json:"password" validate:"required"`
}

type UserPatch struct {
	FullName      *string `json:"full_name,omitempty" validate:"omitempty,min=1"`
	Password      *string `json:"password,omitempty" validate:"omitempty,min=1"`
	IsActive      *bool   `json:"is_active,omitempty"`
	EmailVerified *bool   `json:"email_verified,omitempty"`
}
