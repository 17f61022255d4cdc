// Package txn is the transactional property store: every property read or
// write goes through a Transaction acquired from a Store, which arbitrates
// concurrent access with a weighted semaphore (many concurrent shared
// holders, which may read and write, or one exclusive holder locking out
// every shared and exclusive access for the duration of a coordinated
// multi-step sequence) and reports which properties a write actually
// touched.
package txn

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"tcsicore/propid"
	"tcsicore/propval"
)

// sharedWeight is the semaphore quota a single shared transaction consumes;
// exclusiveWeight is the full quota an exclusive transaction must drain,
// which is what makes it mutually exclusive with every shared transaction
// and every other exclusive one without a second lock.
const (
	sharedWeight    = 1
	exclusiveWeight = 1 << 20
)

// Store holds the live set of properties a device exposes and arbitrates
// transactional access to them.
type Store struct {
	sem *semaphore.Weighted

	mu                sync.RWMutex
	properties        map[propid.ID]propval.Base
	connectionChanged bool
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		sem:        semaphore.NewWeighted(exclusiveWeight),
		properties: make(map[propid.ID]propval.Base),
	}
}

// AddProperty registers a property. Not safe to call concurrently with an
// open transaction against the same id.
func (s *Store) AddProperty(p propval.Base) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties[p.PropertyID()] = p
}

// RemoveProperty unregisters a property.
func (s *Store) RemoveProperty(id propid.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.properties, id)
}

// PropertyIDs lists every currently registered property.
func (s *Store) PropertyIDs() []propid.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]propid.ID, 0, len(s.properties))
	for id := range s.properties {
		ids = append(ids, id)
	}
	return ids
}

// NotifyConnectionChanged marks the next exclusive transaction's
// TransactionChanges as carrying a connection transition (device attached,
// detached, or replaced). The flag is consumed and cleared by the next
// exclusive transaction opened; shared transactions leave it in place.
func (s *Store) NotifyConnectionChanged() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectionChanged = true
}

func (s *Store) lookup(id propid.ID) (propval.Base, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.properties[id]
	return p, ok
}

// BeginShared opens a shared transaction. Any number of shared transactions
// may be open at once; a shared transaction may write, but its writes
// contend with exclusive holders the same as any other shared access, and
// offer none of the multi-step atomicity an exclusive transaction does.
func (s *Store) BeginShared(ctx context.Context) (*Transaction, error) {
	if err := s.sem.Acquire(ctx, sharedWeight); err != nil {
		return nil, err
	}
	return newTransaction(s, sharedWeight, false), nil
}

// BeginExclusive opens a read-write transaction, blocking until every
// currently open transaction (shared or exclusive) has closed.
func (s *Store) BeginExclusive(ctx context.Context) (*Transaction, error) {
	if err := s.sem.Acquire(ctx, exclusiveWeight); err != nil {
		return nil, err
	}
	return newTransaction(s, exclusiveWeight, true), nil
}

// TryBeginExclusive opens a read-write transaction only if one can be
// acquired immediately, without blocking on other transactions.
func (s *Store) TryBeginExclusive() (*Transaction, bool) {
	if !s.sem.TryAcquire(exclusiveWeight) {
		return nil, false
	}
	return newTransaction(s, exclusiveWeight, true), true
}
