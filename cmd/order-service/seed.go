package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	inventory "github.com/dmehra2102/checkout-service/internal/inventory/domain"
	"github.com/dmehra2102/checkout-service/pkg/store"
)

// catalog is the seed file layout. Products name their category by id.
type catalog struct {
	Categories []inventory.Category `json:"categories"`
	Products   []inventory.Product  `json:"products"`
}

// seed creates every category and product of the file whose id is not
// stored yet, so it is safe to run on every start.
func seed(ctx context.Context, log *slog.Logger, path string,
	categories *store.RecordStore[inventory.Category, inventory.CategoryPatch],
	products *store.RecordStore[inventory.Product, inventory.ProductPatch],
) error {
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}
	var c catalog
	if err := json.Unmarshal(raw, &c); err != nil {
		return fmt.Errorf("decode catalog: %w", err)
	}

	created := 0
	for _, cat := range c.Categories {
		ok, err := createMissing(ctx, categories, cat.ID, cat)
		if err != nil {
			return fmt.Errorf("category %s: %w", cat.ID, err)
		}
		if ok {
			created++
		}
	}
	for _, p := range c.Products {
		ok, err := createMissing(ctx, products, p.ID, p)
		if err != nil {
			return fmt.Errorf("product %s: %w", p.ID, err)
		}
		if ok {
			created++
		}
	}
	log.Info("catalog seeded", "file", path, "created", created,
		"categories", len(c.Categories), "products", len(c.Products))
	return nil
}

func createMissing[T, P any](ctx context.Context, s *store.RecordStore[T, P], id string, v T) (bool, error) {
	if id != "" {
		_, err := s.Get(ctx, id)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return false, err
		}
	}
	if _, err := s.Create(ctx, v); err != nil {
		return false, err
	}
	return true, nil
}
