package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// ============================================================================
// RECORD STORE — Canonical record set with snapshot broadcast
// ============================================================================
// The store owns the full record set. Replace installs a new immutable
// snapshot and hands it to every subscriber; published snapshots are never
// mutated, so readers need no locks.
// ============================================================================

// Snapshot is an immutable record set with a monotonically increasing version.
type Snapshot struct {
	version uint64
	records []Observation
}

// Version increments on every Replace. The initial empty snapshot is 0.
func (s Snapshot) Version() uint64 { return s.version }

// Len returns the number of records.
func (s Snapshot) Len() int { return len(s.records) }

// View returns a read-only view over the snapshot.
func (s Snapshot) View() RecordView { return NewSliceView(s.records) }

// Observer receives every snapshot a store publishes.
type Observer func(Snapshot)

// Subscription identifies a registered observer.
type Subscription struct {
	ID uuid.UUID
}

type observerEntry struct {
	id uuid.UUID
	fn Observer
}

// RecordStore holds the current snapshot and its subscribers.
type RecordStore struct {
	mu        sync.Mutex
	current   Snapshot
	observers []observerEntry

	// deliver serialises notifications so observers see snapshots in
	// version order even when Replace is called from several goroutines.
	deliver sync.Mutex
}

// NewRecordStore returns a store holding an empty snapshot.
func NewRecordStore() *RecordStore {
	return &RecordStore{}
}

// Snapshot returns the current snapshot.
func (s *RecordStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Version is the current snapshot's version; 0 before the first Replace.
func (s *RecordStore) Version() uint64 {
	return s.Snapshot().Version()
}

// Replace installs records as the new snapshot and notifies subscribers.
// The slice is copied; callers may reuse it afterwards.
func (s *RecordStore) Replace(records []Observation) Snapshot {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	snap := Snapshot{
		version: s.current.version + 1,
		records: slices.Clone(records),
	}
	s.current = snap
	observers := slices.Clone(s.observers)
	s.mu.Unlock()

	for _, o := range observers {
		o.fn(snap)
	}
	return snap
}

// Subscribe registers fn. It is called immediately with the current
// snapshot and then with every replacement, synchronously, in
// registration order. fn must not call Replace.
func (s *RecordStore) Subscribe(fn Observer) Subscription {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	id := uuid.New()
	s.mu.Lock()
	s.observers = append(s.observers, observerEntry{id: id, fn: fn})
	snap := s.current
	s.mu.Unlock()

	fn(snap)
	return Subscription{ID: id}
}

// Unsubscribe removes an observer. Unknown ids are ignored.
func (s *RecordStore) Unsubscribe(sub Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = slices.DeleteFunc(s.observers, func(o observerEntry) bool {
		return o.id == sub.ID
	})
}

// Load fetches the full record set from src and installs it. On error the
// current snapshot is left in place.
func (s *RecordStore) Load(ctx context.Context, src ObservationSource) (Snapshot, error) {
	records, err := src.Observations(ctx)
	if err != nil {
		return s.Snapshot(), fmt.Errorf("load observations: %w", err)
	}
	return s.Replace(records), nil
}
