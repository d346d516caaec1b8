package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/dmehra2102/checkout-service/pkg/store/memory"
)

// MemoryStore is an in-process outbox for runs without Postgres. Sent events
// are dropped; only pending, in-flight and failed ones are kept.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	sent   int64
	events []*memoryEvent
	now    func() time.Time
}

type memoryEvent struct {
	Event
	relayID    string
	leaseUntil time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Append takes part in a memory backend transaction carried by ctx: the
// event is withdrawn when that transaction rolls back.
func (s *MemoryStore) Append(ctx context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.ID = s.nextID
	e.Status = StatusPending
	e.CreatedAt = s.now()
	s.events = append(s.events, &memoryEvent{Event: e})

	id := e.ID
	memory.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.drop(map[int64]bool{id: true})
	})
	return nil
}

// Sent is the number of events delivered so far.
func (s *MemoryStore) Sent() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// Events returns a snapshot of the retained events in append order.
func (s *MemoryStore) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Event)
	}
	return out
}

func (s *MemoryStore) LockBatch(_ context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var out []Event
	for _, e := range s.events {
		if len(out) == batchSize {
			break
		}
		expired := e.Status == StatusInProgress && now.After(e.leaseUntil)
		if e.Status != StatusPending && !expired {
			continue
		}
		e.Status = StatusInProgress
		e.relayID = relayID
		e.leaseUntil = now.Add(lease)
		out = append(out, e.Event)
	}
	return out, nil
}

func (s *MemoryStore) MarkSent(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	s.sent += int64(s.drop(want))
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id int64, errMsg string, retry bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.find([]int64{id}) {
		e.RetryCount++
		e.LastError = &errMsg
		e.Status = StatusFailed
		if retry {
			e.Status = StatusPending
		}
	}
	return nil
}

func (s *MemoryStore) ExtendLease(_ context.Context, relayID string, ids []int64, lease time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.find(ids) {
		if e.relayID == relayID {
			e.leaseUntil = s.now().Add(lease)
		}
	}
	return nil
}

// drop removes the events in ids and reports how many it removed.
func (s *MemoryStore) drop(ids map[int64]bool) int {
	kept := s.events[:0]
	for _, e := range s.events {
		if !ids[e.ID] {
			kept = append(kept, e)
		}
	}
	n := len(s.events) - len(kept)
	for i := len(kept); i < len(s.events); i++ {
		s.events[i] = nil
	}
	s.events = kept
	return n
}

func (s *MemoryStore) find(ids []int64) []*memoryEvent {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*memoryEvent
	for _, e := range s.events {
		if want[e.ID] {
			out = append(out, e)
		}
	}
	return out
}
