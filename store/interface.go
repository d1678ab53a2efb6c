package store

import (
	"context"
	"fmt"
	"time"
)

// Action is the last known lifecycle state of a session record.
type Action uint8

const (
	ActionCreated Action = iota + 1
	ActionUpdated
	ActionTerminated
)

// String returns the label persisted in the action column.
func (a Action) String() string {
	switch a {
	case ActionCreated:
		return "Created"
	case ActionUpdated:
		return "Updated"
	case ActionTerminated:
		return "Terminated"
	default:
		return fmt.Sprintf("Action(%d)", uint8(a))
	}
}

// ParseAction converts a persisted action label back into an Action.
func ParseAction(s string) (Action, error) {
	switch s {
	case "Created":
		return ActionCreated, nil
	case "Updated":
		return ActionUpdated, nil
	case "Terminated":
		return ActionTerminated, nil
	}
	return 0, fmt.Errorf("store: unknown action %q", s)
}

// SessionRecord is the persisted "current session" row for a
// (user, service provider) pair.
type SessionRecord struct {
	// ID is assigned by the store on insert. Zero until persisted.
	ID              int64
	User            string
	SessionID       string
	ServiceProvider string
	Action          Action
	Timestamp       time.Time
}

// Store defines the interface for session record backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// WithTx runs fn inside a single transaction. The transaction is
	// committed only if fn returns nil; any error rolls it back and is
	// returned to the caller. A fresh connection is used for every call
	// and released on every exit path.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any resources held by the store.
	Close() error
}

// Tx exposes the record operations available inside a transaction.
// None of these methods commit.
type Tx interface {
	// FindActive returns the newest record for the pair, ordered by
	// timestamp then id, or nil if there is none. If the pair has more
	// than one row the newest one is returned together with an error
	// wrapping ErrDuplicateRecords.
	FindActive(ctx context.Context, user, serviceProvider string) (*SessionRecord, error)

	// ListByKey returns every record for the pair, newest first.
	ListByKey(ctx context.Context, user, serviceProvider string) ([]*SessionRecord, error)

	// Insert creates a new row and sets rec.ID to the assigned id.
	Insert(ctx context.Context, rec *SessionRecord) (int64, error)

	// UpdateAction sets the action and timestamp of the row identified by id.
	// It fails with ErrRecordNotFound if the row does not exist.
	UpdateAction(ctx context.Context, id int64, action Action, ts time.Time) error

	// Delete removes the row identified by id. Deleting a missing row is a no-op.
	Delete(ctx context.Context, id int64) error
}
