package txn

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WriteFunc performs one exclusive transaction's worth of work.
type WriteFunc func(t *Transaction) TransactionChanges

// AsyncWriter serializes a stream of property writes onto a store's
// exclusive lock without making the caller block on each one individually:
// Submit returns immediately, and the write runs on a goroutine of its own
// as soon as the store's exclusive lock is free.
type AsyncWriter struct {
	store *Store
	group *errgroup.Group
	ctx   context.Context

	onApplied func(TransactionChanges)
}

// NewAsyncWriter builds a writer bound to store. onApplied, if non-nil, is
// called after every write completes, from that write's goroutine.
// ctx governs every transaction the writer opens; cancelling it unblocks
// any write currently waiting for the exclusive lock.
func NewAsyncWriter(ctx context.Context, store *Store, onApplied func(TransactionChanges)) *AsyncWriter {
	group, groupCtx := errgroup.WithContext(ctx)
	return &AsyncWriter{store: store, group: group, ctx: groupCtx, onApplied: onApplied}
}

// Submit queues one write. Writes submitted to the same AsyncWriter run one
// at a time, because each waits for the store's exclusive lock which only
// one writer can hold; the order in which they acquire it is not defined.
func (w *AsyncWriter) Submit(write WriteFunc) {
	w.group.Go(func() error {
		t, err := w.store.BeginExclusive(w.ctx)
		if err != nil {
			return err
		}
		defer t.Close()

		changes := write(t)
		if w.onApplied != nil {
			w.onApplied(changes)
		}
		return nil
	})
}

// Wait blocks until every submitted write has completed, returning the
// first error encountered (typically context cancellation), if any.
func (w *AsyncWriter) Wait() error {
	return w.group.Wait()
}
