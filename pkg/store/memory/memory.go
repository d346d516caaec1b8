// Package memory is an in-process store backend. Documents are deep-copied on
// the way in and out so callers never share state with the backend.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dmehra2102/checkout-service/pkg/refs"
	"github.com/dmehra2102/checkout-service/pkg/store"
)

type Backend struct {
	mu          sync.Mutex
	collections map[refs.Kind]*Collection
}

func NewBackend() *Backend {
	return &Backend{collections: map[refs.Kind]*Collection{}}
}

func (b *Backend) Collection(kind refs.Kind) store.Collection {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.collections[kind]
	if !ok {
		c = &Collection{docs: map[string]refs.Document{}}
		b.collections[kind] = c
	}
	return c
}

type Collection struct {
	mu    sync.Mutex
	docs  map[string]refs.Document
	order []string
}

func (c *Collection) Insert(ctx context.Context, doc refs.Document) error {
	id, _ := doc["id"].(string)
	if id == "" {
		return fmt.Errorf("%w: missing id", store.ErrValidation)
	}
	cp, err := refs.Clone(doc)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.docs[id]; exists {
		return fmt.Errorf("duplicate id %s", id)
	}
	c.docs[id] = cp
	c.order = append(c.order, id)
	OnRollback(ctx, func() { c.remove(id) })
	return nil
}

func (c *Collection) Find(_ context.Context, id string) (refs.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return refs.Clone(doc)
}

func (c *Collection) FindAll(_ context.Context) ([]refs.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]refs.Document, 0, len(c.order))
	for _, id := range c.order {
		cp, err := refs.Clone(c.docs[id])
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

func (c *Collection) FindOne(_ context.Context, field, value string) (refs.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range c.order {
		doc := c.docs[id]
		if v, ok := doc[field]; ok && v != nil && fmt.Sprint(v) == value {
			return refs.Clone(doc)
		}
	}
	return nil, store.ErrNotFound
}

func (c *Collection) Patch(ctx context.Context, id string, fields refs.Document) error {
	cp, err := refs.Clone(fields)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	prev := make(refs.Document, len(cp))
	for k, v := range cp {
		if old, had := doc[k]; had {
			prev[k] = old
		}
		doc[k] = v
	}
	OnRollback(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for k := range cp {
			if old, had := prev[k]; had {
				doc[k] = old
			} else {
				delete(doc, k)
			}
		}
	})
	return nil
}

func (c *Collection) Delete(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	doc, ok := c.docs[id]
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	c.remove(id)
	OnRollback(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.docs[id] = doc
		c.order = append(c.order, id)
	})
	return true, nil
}

func (c *Collection) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.docs, id)
	for i, o := range c.order {
		if o == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Collection) Increment(ctx context.Context, id, field string, delta int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	current, err := asInt(doc[field])
	if err != nil {
		return fmt.Errorf("%w: %s is not an integer", store.ErrValidation, field)
	}
	next := current + delta
	if delta < 0 && next < 0 {
		return store.ErrUnderflow
	}
	doc[field] = json.Number(fmt.Sprint(next))
	OnRollback(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if n, err := asInt(doc[field]); err == nil {
			doc[field] = json.Number(fmt.Sprint(n - delta))
		}
	})
	return nil
}

func asInt(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		return n.Int64()
	case float64:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}
