package store

import (
	"context"
	"errors"

	"github.com/dmehra2102/checkout-service/pkg/refs"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrValidation = errors.New("invalid record")
	// ErrUnderflow is returned when a decrement would take a counter below zero.
	ErrUnderflow = errors.New("counter would drop below zero")
)

// Collection is one document collection of a backend. Implementations must
// make Patch and Increment atomic per document.
type Collection interface {
	Insert(ctx context.Context, doc refs.Document) error
	Find(ctx context.Context, id string) (refs.Document, error)
	FindAll(ctx context.Context) ([]refs.Document, error)
	FindOne(ctx context.Context, field string, value string) (refs.Document, error)
	Patch(ctx context.Context, id string, fields refs.Document) error
	Delete(ctx context.Context, id string) (bool, error)
	Increment(ctx context.Context, id, field string, delta int64) error
}

type Backend interface {
	Collection(kind refs.Kind) Collection
}

// Transactor runs fn so that the writes made with the context fn receives
// commit together or not at all. A nested call joins the outer transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Source exposes a Backend to the reference resolver.
type Source struct {
	Backend Backend
}

func (s Source) Lookup(ctx context.Context, kind refs.Kind, id string) (refs.Document, error) {
	doc, err := s.Backend.Collection(kind).Find(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, refs.ErrMissing
	}
	return doc, err
}
