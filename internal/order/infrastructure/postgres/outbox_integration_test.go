//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/checkout-service/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/checkout-service/internal/testenv"
	"github.com/dmehra2102/checkout-service/pkg/outbox"
	"github.com/dmehra2102/checkout-service/pkg/refs"
	storepg "github.com/dmehra2102/checkout-service/pkg/store/postgres"
)

func TestOutboxStore_LeaseLifecycle(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := postgres.NewOutboxStore(log, testenv.Postgres(t))
	require.NoError(t, s.Migrate(ctx))

	require.NoError(t, s.Append(ctx, outbox.Event{AggregateType: "order", AggregateID: "o1", Type: "CheckoutStarted",
		Payload: []byte(`{"order_id":"o1"}`), Headers: map[string]string{"source": "test"}}))
	require.NoError(t, s.Append(ctx, outbox.Event{AggregateType: "order", AggregateID: "o2", Type: "OrderCaptured",
		Payload: []byte(`{}`)}))

	got, err := s.LockBatch(ctx, "relay-a", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "test", got[0].Headers["source"])

	again, err := s.LockBatch(ctx, "relay-b", 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again, "leased rows are not handed out twice")

	require.NoError(t, s.MarkSent(ctx, []int64{got[0].ID}))
	require.NoError(t, s.MarkFailed(ctx, got[1].ID, "broker down", true))

	retry, err := s.LockBatch(ctx, "relay-b", 10, time.Millisecond)
	require.NoError(t, err)
	require.Len(t, retry, 1)
	assert.Equal(t, "o2", retry[0].AggregateID)
	assert.Equal(t, 1, retry[0].RetryCount)

	time.Sleep(20 * time.Millisecond)
	reclaimed, err := s.LockBatch(ctx, "relay-c", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1, "expired lease is reclaimed")

	require.NoError(t, s.MarkFailed(ctx, reclaimed[0].ID, "bad payload", false))
	none, err := s.LockBatch(ctx, "relay-c", 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOutboxStore_AppendJoinsBackendTransaction(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := testenv.Postgres(t)

	backend := storepg.NewBackend(log, pool)
	require.NoError(t, backend.Migrate(ctx, storepg.Table{Kind: "orders"}))
	s := postgres.NewOutboxStore(log, pool)
	require.NoError(t, s.Migrate(ctx))

	orders := backend.Collection("orders")
	require.NoError(t, orders.Insert(ctx, refs.Document{"id": "o1", "status": "pending"}))

	boom := errors.New("later step failed")
	err := backend.InTx(ctx, func(ctx context.Context) error {
		require.NoError(t, orders.Patch(ctx, "o1", refs.Document{"ref_order_id": "REF-1"}))
		require.NoError(t, s.Append(ctx, outbox.Event{AggregateType: "order", AggregateID: "o1", Type: "RemoteOrderCreated", Payload: []byte(`{}`)}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	doc, err := orders.Find(ctx, "o1")
	require.NoError(t, err)
	assert.NotContains(t, doc, "ref_order_id")
	none, err := s.LockBatch(ctx, "relay", 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, backend.InTx(ctx, func(ctx context.Context) error {
		if err := orders.Patch(ctx, "o1", refs.Document{"ref_order_id": "REF-1"}); err != nil {
			return err
		}
		return s.Append(ctx, outbox.Event{AggregateType: "order", AggregateID: "o1", Type: "RemoteOrderCreated", Payload: []byte(`{}`)})
	}))

	doc, err = orders.Find(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "REF-1", doc["ref_order_id"])
	got, err := s.LockBatch(ctx, "relay", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "RemoteOrderCreated", got[0].Type)
}
