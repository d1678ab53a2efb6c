package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

// storeFactory opens an empty store for one test.
type storeFactory func(t *testing.T) Store

func newRecord(user, serviceProvider string, millis int64) *SessionRecord {
	return &SessionRecord{
		User:            user,
		SessionID:       "sid-" + user,
		ServiceProvider: serviceProvider,
		Action:          ActionCreated,
		Timestamp:       time.UnixMilli(millis).UTC(),
	}
}

func insert(t *testing.T, s Store, rec *SessionRecord) int64 {
	t.Helper()
	var id int64
	err := s.WithTx(context.Background(), func(tx Tx) error {
		var err error
		id, err = tx.Insert(context.Background(), rec)
		return err
	})
	if err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}
	return id
}

func find(t *testing.T, s Store, user, serviceProvider string) *SessionRecord {
	t.Helper()
	var rec *SessionRecord
	err := s.WithTx(context.Background(), func(tx Tx) error {
		var err error
		rec, err = tx.FindActive(context.Background(), user, serviceProvider)
		return err
	})
	if err != nil {
		t.Fatalf("Failed to find record: %v", err)
	}
	return rec
}

// runStoreTests exercises the behavior every backend shares.
func runStoreTests(t *testing.T, open storeFactory) {
	t.Run("InsertAndFind", func(t *testing.T) {
		s := open(t)

		if rec := find(t, s, "alice", "sp1"); rec != nil {
			t.Fatalf("Expected no record, got %+v", rec)
		}

		id := insert(t, s, newRecord("alice", "sp1", 1000))
		if id == 0 {
			t.Fatal("Insert should assign an id")
		}

		rec := find(t, s, "alice", "sp1")
		if rec == nil {
			t.Fatal("Expected a record")
		}
		if rec.ID != id || rec.SessionID != "sid-alice" || rec.Action != ActionCreated {
			t.Errorf("Unexpected record %+v", rec)
		}
		if rec.Timestamp.UnixMilli() != 1000 {
			t.Errorf("Expected timestamp 1000ms, got %d", rec.Timestamp.UnixMilli())
		}

		if other := find(t, s, "alice", "sp2"); other != nil {
			t.Errorf("Keys must be independent, got %+v", other)
		}
	})

	t.Run("UpdateAction", func(t *testing.T) {
		s := open(t)
		id := insert(t, s, newRecord("bob", "sp1", 1000))

		err := s.WithTx(context.Background(), func(tx Tx) error {
			return tx.UpdateAction(context.Background(), id, ActionUpdated, time.UnixMilli(2500))
		})
		if err != nil {
			t.Fatalf("Failed to update record: %v", err)
		}

		rec := find(t, s, "bob", "sp1")
		if rec.Action != ActionUpdated {
			t.Errorf("Expected Updated, got %s", rec.Action)
		}
		if rec.Timestamp.UnixMilli() != 2500 {
			t.Errorf("Expected timestamp 2500ms, got %d", rec.Timestamp.UnixMilli())
		}

		err = s.WithTx(context.Background(), func(tx Tx) error {
			return tx.UpdateAction(context.Background(), id+100, ActionUpdated, time.UnixMilli(3000))
		})
		if !errors.Is(err, ErrRecordNotFound) {
			t.Errorf("Expected ErrRecordNotFound, got %v", err)
		}
		var perr *PersistenceError
		if !errors.As(err, &perr) {
			t.Errorf("Expected a PersistenceError, got %T", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		s := open(t)
		id := insert(t, s, newRecord("carol", "sp1", 1000))

		for i := 0; i < 2; i++ {
			err := s.WithTx(context.Background(), func(tx Tx) error {
				return tx.Delete(context.Background(), id)
			})
			if err != nil {
				t.Fatalf("Delete %d failed: %v", i, err)
			}
		}

		if rec := find(t, s, "carol", "sp1"); rec != nil {
			t.Errorf("Expected record to be deleted, got %+v", rec)
		}
	})

	t.Run("RollbackOnError", func(t *testing.T) {
		s := open(t)
		errAbort := errors.New("abort")

		err := s.WithTx(context.Background(), func(tx Tx) error {
			if _, err := tx.Insert(context.Background(), newRecord("dave", "sp1", 1000)); err != nil {
				return err
			}
			return errAbort
		})
		if !errors.Is(err, errAbort) {
			t.Fatalf("Expected the callback error, got %v", err)
		}

		if rec := find(t, s, "dave", "sp1"); rec != nil {
			t.Errorf("Rolled back insert is visible: %+v", rec)
		}
	})

	t.Run("SpecialCharactersInKey", func(t *testing.T) {
		s := open(t)
		insert(t, s, newRecord("a:b/c", "sp 1", 1000))
		insert(t, s, newRecord("a", "b/c:sp 1", 1000))

		if rec := find(t, s, "a:b/c", "sp 1"); rec == nil || rec.User != "a:b/c" {
			t.Errorf("Unexpected record %+v", rec)
		}
		if rec := find(t, s, "a", "b/c:sp 1"); rec == nil || rec.ServiceProvider != "b/c:sp 1" {
			t.Errorf("Unexpected record %+v", rec)
		}
	})
}

// runDuplicateTests checks duplicate detection on backends whose layout can
// hold more than one record per key.
func runDuplicateTests(t *testing.T, open storeFactory) {
	s := open(t)
	older := insert(t, s, newRecord("erin", "sp1", 1000))
	newer := insert(t, s, newRecord("erin", "sp1", 2000))

	err := s.WithTx(context.Background(), func(tx Tx) error {
		rec, err := tx.FindActive(context.Background(), "erin", "sp1")
		if !errors.Is(err, ErrDuplicateRecords) {
			t.Errorf("Expected ErrDuplicateRecords, got %v", err)
		}
		if rec == nil || rec.ID != newer {
			t.Errorf("Expected newest record %d, got %+v", newer, rec)
		}

		records, err := tx.ListByKey(context.Background(), "erin", "sp1")
		if err != nil {
			return err
		}
		if len(records) != 2 || records[0].ID != newer || records[1].ID != older {
			t.Errorf("Expected [%d %d] newest first, got %d records", newer, older, len(records))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}
}
