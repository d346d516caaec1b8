package memory

import (
	"context"
	"sync"
)

type undoKey struct{}

type undoLog struct {
	mu    sync.Mutex
	steps []func()
}

func (l *undoLog) add(undo func()) {
	l.mu.Lock()
	l.steps = append(l.steps, undo)
	l.mu.Unlock()
}

func (l *undoLog) rollback() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.steps) - 1; i >= 0; i-- {
		l.steps[i]()
	}
	l.steps = nil
}

// InTx gives fn all-or-nothing writes: when fn fails, every write it made
// through this backend is undone in reverse order. There is no isolation;
// other callers see the writes before fn returns.
func (b *Backend) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(undoKey{}).(*undoLog); ok {
		return fn(ctx)
	}
	log := &undoLog{}
	if err := fn(context.WithValue(ctx, undoKey{}, log)); err != nil {
		log.rollback()
		return err
	}
	return nil
}

// OnRollback registers undo with the transaction carried by ctx. Outside a
// transaction it does nothing. Other in-process stores use it to take part
// in a backend transaction.
func OnRollback(ctx context.Context, undo func()) {
	if l, ok := ctx.Value(undoKey{}).(*undoLog); ok {
		l.add(undo)
	}
}
