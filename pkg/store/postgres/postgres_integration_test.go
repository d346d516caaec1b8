//go:build integration

package postgres_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/checkout-service/internal/testenv"
	"github.com/dmehra2102/checkout-service/pkg/refs"
	"github.com/dmehra2102/checkout-service/pkg/store"
	"github.com/dmehra2102/checkout-service/pkg/store/postgres"
)

func TestCollection_Postgres(t *testing.T) {
	ctx := context.Background()
	pool := testenv.Postgres(t)
	backend := postgres.NewBackend(slog.New(slog.NewTextHandler(io.Discard, nil)), pool)
	require.NoError(t, backend.Migrate(ctx, postgres.Table{Kind: "widgets", Index: []string{"name"}}))

	c := backend.Collection("widgets")
	require.NoError(t, c.Insert(ctx, refs.Document{"id": "w1", "name": "gear", "stock": 10}))

	got, err := c.FindOne(ctx, "name", "gear")
	require.NoError(t, err)
	assert.Equal(t, "w1", got["id"])

	require.NoError(t, c.Patch(ctx, "w1", refs.Document{"name": "cog"}))
	got, err = c.Find(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "cog", got["name"])
	assert.Equal(t, json.Number("10"), got["stock"])

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Increment(ctx, "w1", "stock", -1))
		}()
	}
	wg.Wait()

	assert.ErrorIs(t, c.Increment(ctx, "w1", "stock", -1), store.ErrUnderflow)
	assert.ErrorIs(t, c.Increment(ctx, "nope", "stock", -1), store.ErrNotFound)
	assert.ErrorIs(t, c.Patch(ctx, "nope", refs.Document{"name": "x"}), store.ErrNotFound)

	ok, err := c.Delete(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = c.Find(ctx, "w1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
