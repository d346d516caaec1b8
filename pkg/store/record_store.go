// Package store persists entities as documents and reads them back fully
// materialized.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dmehra2102/checkout-service/pkg/refs"
)

var fieldName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Validator is implemented by entities and patches with rules that struct
// tags cannot express.
type Validator interface {
	Validate() error
}

type options struct {
	now   func() time.Time
	newID func() string
}

type Option func(*options)

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

// RecordStore is the CRUD surface for one entity kind. T is the entity, P its
// partial-update type: a struct of pointer fields tagged omitempty, so that
// only supplied fields reach storage.
type RecordStore[T any, P any] struct {
	log      *slog.Logger
	kind     refs.Kind
	coll     Collection
	resolver *refs.Resolver
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
}

func New[T any, P any](log *slog.Logger, backend Backend, resolver *refs.Resolver, kind refs.Kind, opts ...Option) *RecordStore[T, P] {
	o := options{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}
	return &RecordStore[T, P]{
		log:      log.With("kind", string(kind)),
		kind:     kind,
		coll:     backend.Collection(kind),
		resolver: resolver,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      o.now,
		newID:    o.newID,
	}
}

func (s *RecordStore[T, P]) Kind() refs.Kind {
	return s.kind
}

func (s *RecordStore[T, P]) Create(ctx context.Context, input T) (T, error) {
	var zero T
	if err := s.check(input); err != nil {
		return zero, err
	}
	doc, err := refs.ToDocument(input)
	if err != nil || doc == nil {
		return zero, fmt.Errorf("%w: %s is not a document", ErrValidation, s.kind)
	}
	s.resolver.Schema().Dehydrate(s.kind, doc)

	id, _ := doc["id"].(string)
	if id == "" {
		id = s.newID()
		doc["id"] = id
	}
	now := s.timestamp()
	doc["created_at"] = now
	doc["updated_at"] = now

	if err := s.coll.Insert(ctx, doc); err != nil {
		return zero, fmt.Errorf("create %s: %w", s.kind, err)
	}
	s.log.Debug("record created", "id", id)
	return s.Get(ctx, id)
}

func (s *RecordStore[T, P]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	doc, err := s.coll.Find(ctx, id)
	if err != nil {
		return zero, fmt.Errorf("get %s %s: %w", s.kind, id, err)
	}
	return s.materialize(ctx, doc)
}

// FindOne returns the first record whose top-level field equals value.
func (s *RecordStore[T, P]) FindOne(ctx context.Context, field, value string) (T, error) {
	var zero T
	if !fieldName.MatchString(field) {
		return zero, fmt.Errorf("%w: field %q", ErrValidation, field)
	}
	doc, err := s.coll.FindOne(ctx, field, value)
	if err != nil {
		return zero, fmt.Errorf("find %s by %s: %w", s.kind, field, err)
	}
	return s.materialize(ctx, doc)
}

func (s *RecordStore[T, P]) List(ctx context.Context) ([]T, error) {
	docs, err := s.coll.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.kind, err)
	}
	if err := s.resolver.MaterializeAll(ctx, s.kind, docs); err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := refs.FromDocument(doc, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", s.kind, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Update merges the supplied fields of patch into the record. The merge is a
// single write; on failure nothing changes.
func (s *RecordStore[T, P]) Update(ctx context.Context, id string, patch P) (T, error) {
	var zero T
	if err := s.Apply(ctx, id, patch); err != nil {
		return zero, err
	}
	return s.Get(ctx, id)
}

// Apply is Update without reading the record back. It issues one write, so
// it can run inside a transaction of the backend.
func (s *RecordStore[T, P]) Apply(ctx context.Context, id string, patch P) error {
	if err := s.check(patch); err != nil {
		return err
	}
	doc, err := refs.ToDocument(patch)
	if err != nil || doc == nil {
		return fmt.Errorf("%w: %s patch is not a document", ErrValidation, s.kind)
	}
	s.resolver.Schema().Dehydrate(s.kind, doc)
	delete(doc, "id")
	delete(doc, "created_at")
	if len(doc) == 0 {
		_, err := s.coll.Find(ctx, id)
		if err != nil {
			return fmt.Errorf("update %s %s: %w", s.kind, id, err)
		}
		return nil
	}
	doc["updated_at"] = s.timestamp()

	if err := s.coll.Patch(ctx, id, doc); err != nil {
		return fmt.Errorf("update %s %s: %w", s.kind, id, err)
	}
	return nil
}

func (s *RecordStore[T, P]) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := s.coll.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete %s %s: %w", s.kind, id, err)
	}
	return ok, nil
}

// IncrementField adds delta to a numeric top-level field in one atomic
// storage operation. Counters never drop below zero.
func (s *RecordStore[T, P]) IncrementField(ctx context.Context, id, field string, delta int64) error {
	if !fieldName.MatchString(field) {
		return fmt.Errorf("%w: field %q", ErrValidation, field)
	}
	if err := s.coll.Increment(ctx, id, field, delta); err != nil {
		return fmt.Errorf("increment %s %s.%s: %w", s.kind, id, field, err)
	}
	return nil
}

func (s *RecordStore[T, P]) materialize(ctx context.Context, doc refs.Document) (T, error) {
	var out T
	if err := s.resolver.Materialize(ctx, s.kind, doc); err != nil {
		return out, err
	}
	if err := refs.FromDocument(doc, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", s.kind, err)
	}
	return out, nil
}

func (s *RecordStore[T, P]) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return fmt.Errorf("%w: %s input is not a struct", ErrValidation, s.kind)
		}
		return fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	if val, ok := v.(Validator); ok {
		if err := val.Validate(); err != nil {
			return fmt.Errorf("%w: %s", ErrValidation, err.Error())
		}
	}
	return nil
}

func (s *RecordStore[T, P]) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}
