package engine

import (
	"context"
	"errors"
	"testing"
)

// ============================================================================
// RECORD STORE TESTS
// ============================================================================

func TestSubscribeReceivesCurrentSnapshot(t *testing.T) {
	store := NewRecordStore()
	store.Replace(numbered(4))

	var got []Snapshot
	store.Subscribe(func(s Snapshot) { got = append(got, s) })

	if len(got) != 1 {
		t.Fatalf("subscriber called %d times on subscribe, want 1", len(got))
	}
	if got[0].Len() != 4 || got[0].Version() != 1 {
		t.Errorf("snapshot = %d records v%d, want 4 records v1", got[0].Len(), got[0].Version())
	}
}

func TestReplaceNotifiesInOrder(t *testing.T) {
	store := NewRecordStore()
	var versions []uint64
	store.Subscribe(func(s Snapshot) { versions = append(versions, s.Version()) })

	store.Replace(numbered(1))
	store.Replace(numbered(2))

	if store.Version() != 2 {
		t.Errorf("store version = %d, want 2", store.Version())
	}
	want := []uint64{0, 1, 2}
	if len(versions) != len(want) {
		t.Fatalf("versions = %v, want %v", versions, want)
	}
	for i := range want {
		if versions[i] != want[i] {
			t.Errorf("versions[%d] = %d, want %d", i, versions[i], want[i])
		}
	}
}

func TestReplaceCopiesInput(t *testing.T) {
	store := NewRecordStore()
	records := numbered(3)
	snap := store.Replace(records)

	records[0] = obs()
	if v, ok := snap.View().At(0).Number("intensity"); !ok || v != 0 {
		t.Errorf("published snapshot changed after caller reused its slice")
	}
}

func TestUnsubscribe(t *testing.T) {
	store := NewRecordStore()
	calls := 0
	sub := store.Subscribe(func(Snapshot) { calls++ })
	store.Unsubscribe(sub)
	store.Replace(numbered(2))

	if calls != 1 {
		t.Errorf("calls = %d, want only the initial delivery", calls)
	}
}

type failingSource struct{ err error }

func (f failingSource) Observations(context.Context) ([]Observation, error) { return nil, f.err }

func TestLoadFailureKeepsSnapshot(t *testing.T) {
	store := NewRecordStore()
	store.Replace(numbered(5))

	boom := errors.New("connection refused")
	snap, err := store.Load(context.Background(), failingSource{err: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if snap.Len() != 5 || store.Snapshot().Version() != 1 {
		t.Errorf("store changed after failed load: %d records v%d", snap.Len(), store.Snapshot().Version())
	}
}
