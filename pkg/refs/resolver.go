package refs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// MaxDepth bounds how deep Materialize descends. The reference graph is
// acyclic by construction; the bound only guards against bad data.
const MaxDepth = 8

// ErrMissing is returned by a Source when the referenced entity does not exist.
var ErrMissing = errors.New("refs: referenced entity missing")

// Source fetches the stored document of one entity.
type Source interface {
	Lookup(ctx context.Context, kind Kind, id string) (Document, error)
}

type Resolver struct {
	log      *slog.Logger
	schema   Schema
	source   Source
	maxDepth int
}

func NewResolver(log *slog.Logger, schema Schema, source Source) *Resolver {
	return &Resolver{log: log, schema: schema, source: source, maxDepth: MaxDepth}
}

func (r *Resolver) Schema() Schema {
	return r.schema
}

// Materialize replaces, in place, every reference reachable from doc with the
// referenced document. Sibling references are fetched concurrently; a
// reference is fetched before resolution descends into it. Dangling
// references become null and do not affect their siblings. Errors from the
// Source abort the whole materialization.
func (r *Resolver) Materialize(ctx context.Context, kind Kind, doc Document) error {
	return r.resolve(ctx, r.schema.Fields(kind), doc, 0)
}

// MaterializeAll materializes a batch of documents of the same kind
// concurrently.
func (r *Resolver) MaterializeAll(ctx context.Context, kind Kind, docs []Document) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, doc := range docs {
		g.Go(func() error {
			return r.Materialize(gctx, kind, doc)
		})
	}
	return g.Wait()
}

func (r *Resolver) resolve(ctx context.Context, fields []Field, obj Document, depth int) error {
	if len(fields) == 0 || obj == nil {
		return nil
	}
	if depth >= r.maxDepth {
		r.log.Warn("reference depth limit reached", "depth", depth)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	// obj is only written by this goroutine, after every fetch has joined.
	var assign []func()

	for _, f := range fields {
		raw, ok := obj[f.Name]
		if !ok || raw == nil {
			continue
		}
		switch f.Mode {
		case One:
			id, ok := raw.(string)
			if !ok {
				continue
			}
			var slot any
			g.Go(func() error {
				v, err := r.fetch(gctx, f.Target, id, depth)
				slot = v
				return err
			})
			assign = append(assign, func() { obj[f.Name] = slot })

		case Many:
			list, ok := raw.([]any)
			if !ok {
				continue
			}
			out := make([]any, len(list))
			copy(out, list)
			for i, el := range list {
				id, ok := el.(string)
				if !ok {
					continue
				}
				g.Go(func() error {
					v, err := r.fetch(gctx, f.Target, id, depth)
					out[i] = v
					return err
				})
			}
			assign = append(assign, func() { obj[f.Name] = out })

		case Embedded:
			nested, ok := asDocument(raw)
			if !ok {
				continue
			}
			g.Go(func() error {
				return r.resolve(gctx, f.Fields, nested, depth+1)
			})

		case EmbeddedList:
			list, ok := raw.([]any)
			if !ok {
				continue
			}
			for _, el := range list {
				nested, ok := asDocument(el)
				if !ok {
					continue
				}
				g.Go(func() error {
					return r.resolve(gctx, f.Fields, nested, depth+1)
				})
			}
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	for _, set := range assign {
		set()
	}
	return nil
}

func (r *Resolver) fetch(ctx context.Context, kind Kind, id string, depth int) (any, error) {
	doc, err := r.source.Lookup(ctx, kind, id)
	if errors.Is(err, ErrMissing) {
		r.log.Debug("dangling reference", "kind", kind, "id", id)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("refs: lookup %s/%s: %w", kind, id, err)
	}
	if err := r.resolve(ctx, r.schema.Fields(kind), doc, depth+1); err != nil {
		return nil, err
	}
	return doc, nil
}

// Dehydrate collapses materialized entities at reference positions back to
// their ids, so that only references are ever written to storage.
func (s Schema) Dehydrate(kind Kind, doc Document) {
	dehydrate(s.Fields(kind), doc)
}

func dehydrate(fields []Field, obj Document) {
	for _, f := range fields {
		raw, ok := obj[f.Name]
		if !ok || raw == nil {
			continue
		}
		switch f.Mode {
		case One:
			if m, ok := asDocument(raw); ok {
				obj[f.Name] = idOf(m)
			}
		case Many:
			list, ok := raw.([]any)
			if !ok {
				continue
			}
			for i, el := range list {
				if m, ok := asDocument(el); ok {
					list[i] = idOf(m)
				}
			}
		case Embedded:
			if nested, ok := asDocument(raw); ok {
				dehydrate(f.Fields, nested)
			}
		case EmbeddedList:
			list, ok := raw.([]any)
			if !ok {
				continue
			}
			for _, el := range list {
				if nested, ok := asDocument(el); ok {
					dehydrate(f.Fields, nested)
				}
			}
		}
	}
}

func idOf(m Document) any {
	if id, ok := m["id"].(string); ok && id != "" {
		return id
	}
	return nil
}

func asDocument(v any) (Document, bool) {
	switch m := v.(type) {
	case Document:
		return m, true
	case map[string]any:
		return Document(m), true
	default:
		return nil, false
	}
}
