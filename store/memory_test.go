package store

import (
	"context"
	"testing"
)

func openMemory(t *testing.T) Store {
	return NewMemoryStore()
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, openMemory)
}

func TestMemoryStoreDuplicates(t *testing.T) {
	runDuplicateTests(t, openMemory)
}

func TestMemoryStoreSeedAndCalls(t *testing.T) {
	s := NewMemoryStore()
	first := s.Seed(*newRecord("frank", "sp1", 1000))
	second := s.Seed(*newRecord("frank", "sp1", 1000))
	if first == second {
		t.Fatalf("Seed should assign distinct ids, got %d twice", first)
	}

	records := s.Records()
	if len(records) != 2 || records[0].ID != first || records[1].ID != second {
		t.Fatalf("Unexpected records %+v", records)
	}

	if s.Calls() != 0 {
		t.Errorf("Seed should not count as a call, got %d", s.Calls())
	}

	// Same timestamp: the higher id wins.
	rec, _ := func() (*SessionRecord, error) {
		var rec *SessionRecord
		err := s.WithTx(context.Background(), func(tx Tx) error {
			rec, _ = tx.FindActive(context.Background(), "frank", "sp1")
			return nil
		})
		return rec, err
	}()
	if rec == nil || rec.ID != second {
		t.Errorf("Expected record %d, got %+v", second, rec)
	}

	if s.Calls() != 2 {
		t.Errorf("Expected 2 calls, got %d", s.Calls())
	}
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.WithTx(ctx, func(tx Tx) error { return nil }); err == nil {
		t.Error("Expected an error for a cancelled context")
	}
}
