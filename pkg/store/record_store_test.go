package store_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/checkout-service/pkg/refs"
	"github.com/dmehra2102/checkout-service/pkg/store"
	"github.com/dmehra2102/checkout-service/pkg/store/memory"
)

const (
	kindShelf refs.Kind = "shelves"
	kindBook  refs.Kind = "books"
)

type book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title" validate:"required"`
	Copies    int64     `json:"copies" validate:"gte=0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type bookPatch struct {
	Title  *string `json:"title,omitempty" validate:"omitempty,min=1"`
	Copies *int64  `json:"copies,omitempty"`
}

type shelf struct {
	ID    string            `json:"id"`
	Label string            `json:"label"`
	Books []refs.Link[book] `json:"books"`
	Top   refs.Link[book]   `json:"top"`
}

func (s shelf) Validate() error {
	if s.Label == "" {
		return errors.New("label is required")
	}
	return nil
}

type shelfPatch struct {
	Label *string `json:"label,omitempty"`
}

func newStores(t *testing.T) (*store.RecordStore[book, bookPatch], *store.RecordStore[shelf, shelfPatch]) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := memory.NewBackend()
	schema := refs.Schema{
		kindShelf: {refs.RefList("books", kindBook), refs.Ref("top", kindBook)},
	}
	resolver := refs.NewResolver(log, schema, store.Source{Backend: backend})
	clock := func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	books := store.New[book, bookPatch](log, backend, resolver, kindBook, store.WithClock(clock))
	shelves := store.New[shelf, shelfPatch](log, backend, resolver, kindShelf, store.WithClock(clock))
	return books, shelves
}

func TestRecordStore_CreateAndGetMaterialized(t *testing.T) {
	ctx := context.Background()
	books, shelves := newStores(t)

	b1, err := books.Create(ctx, book{Title: "The Go Programming Language", Copies: 3})
	require.NoError(t, err)
	require.NotEmpty(t, b1.ID)
	assert.Equal(t, 2026, b1.CreatedAt.Year())

	b2, err := books.Create(ctx, book{Title: "Concurrency in Go", Copies: 1})
	require.NoError(t, err)

	// Resolved links are written back as ids.
	s, err := shelves.Create(ctx, shelf{
		Label: "golang",
		Books: []refs.Link[book]{refs.Of(b1.ID, &b1), refs.To[book](b2.ID)},
		Top:   refs.To[book](b1.ID),
	})
	require.NoError(t, err)

	got, err := shelves.Get(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, got.Books, 2)
	for _, l := range got.Books {
		assert.True(t, l.Resolved())
	}
	assert.Equal(t, "Concurrency in Go", got.Books[1].Value.Title)
	assert.Equal(t, b1.ID, got.Top.Value.ID)
}

func TestRecordStore_DanglingReference(t *testing.T) {
	ctx := context.Background()
	books, shelves := newStores(t)

	b, err := books.Create(ctx, book{Title: "Gone soon"})
	require.NoError(t, err)
	s, err := shelves.Create(ctx, shelf{Label: "x", Top: refs.To[book](b.ID)})
	require.NoError(t, err)

	ok, err := books.Delete(ctx, b.ID)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := shelves.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.Top.IsZero())
}

func TestRecordStore_ValidationRejectsBeforeStorage(t *testing.T) {
	ctx := context.Background()
	books, shelves := newStores(t)

	_, err := books.Create(ctx, book{Copies: 1})
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = shelves.Create(ctx, shelf{})
	assert.ErrorIs(t, err, store.ErrValidation)

	all, err := books.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRecordStore_UpdateIsPartial(t *testing.T) {
	ctx := context.Background()
	books, _ := newStores(t)

	b, err := books.Create(ctx, book{Title: "Draft", Copies: 7})
	require.NoError(t, err)

	title := "Final"
	got, err := books.Update(ctx, b.ID, bookPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Final", got.Title)
	assert.EqualValues(t, 7, got.Copies)

	empty := ""
	_, err = books.Update(ctx, b.ID, bookPatch{Title: &empty})
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = books.Update(ctx, "missing", bookPatch{Title: &title})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecordStore_IncrementFieldSerializes(t *testing.T) {
	ctx := context.Background()
	books, _ := newStores(t)

	b, err := books.Create(ctx, book{Title: "Popular", Copies: 100})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, books.IncrementField(ctx, b.ID, "copies", -2))
		}()
	}
	wg.Wait()

	got, err := books.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, got.Copies)

	err = books.IncrementField(ctx, b.ID, "copies", -1)
	assert.ErrorIs(t, err, store.ErrUnderflow)

	err = books.IncrementField(ctx, b.ID, "copies; drop", 1)
	assert.ErrorIs(t, err, store.ErrValidation)

	err = books.IncrementField(ctx, "missing", "copies", 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecordStore_FindOneAndList(t *testing.T) {
	ctx := context.Background()
	books, _ := newStores(t)

	for _, title := range []string{"a", "b", "c"} {
		_, err := books.Create(ctx, book{Title: title})
		require.NoError(t, err)
	}

	got, err := books.FindOne(ctx, "title", "b")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Title)

	_, err = books.FindOne(ctx, "title", "z")
	assert.ErrorIs(t, err, store.ErrNotFound)

	all, err := books.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].Title)
}
