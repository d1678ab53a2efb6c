package sessionstate

import (
	"fmt"
	"time"

	"github.com/aadithya-v/sessionstate/store"
)

// EventKind identifies which lifecycle transition an event reports.
type EventKind uint8

const (
	SessionCreated EventKind = iota + 1
	SessionUpdated
	SessionTerminated
)

// String returns the kind's text form.
func (k EventKind) String() string {
	switch k {
	case SessionCreated:
		return "created"
	case SessionUpdated:
		return "updated"
	case SessionTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
}

// Action maps the event kind to the canonical action label persisted in the store.
func (k EventKind) Action() (store.Action, error) {
	switch k {
	case SessionCreated:
		return store.ActionCreated, nil
	case SessionUpdated:
		return store.ActionUpdated, nil
	case SessionTerminated:
		return store.ActionTerminated, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownEvent, k)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k EventKind) MarshalText() ([]byte, error) {
	if _, err := k.Action(); err != nil {
		return nil, err
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EventKind) UnmarshalText(text []byte) error {
	kind, err := ParseEventKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ParseEventKind parses "created", "updated" or "terminated".
func ParseEventKind(s string) (EventKind, error) {
	switch s {
	case "created":
		return SessionCreated, nil
	case "updated":
		return SessionUpdated, nil
	case "terminated":
		return SessionTerminated, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownEvent, s)
}

// SessionData is the session payload delivered by the authentication framework.
// Timestamps are epoch milliseconds.
type SessionData struct {
	User             string `json:"user"`
	SessionID        string `json:"sessionId"`
	ServiceProvider  string `json:"serviceProvider"`
	CreatedTimestamp int64  `json:"createdTimestamp"`
	UpdatedTimestamp int64  `json:"updatedTimestamp"`
}

// CreatedAt returns the creation timestamp as a time.Time in UTC.
func (d *SessionData) CreatedAt() time.Time {
	return time.UnixMilli(d.CreatedTimestamp).UTC()
}

// UpdatedAt returns the update timestamp as a time.Time in UTC.
func (d *SessionData) UpdatedAt() time.Time {
	return time.UnixMilli(d.UpdatedTimestamp).UTC()
}

// LifecycleEvent is a single session lifecycle notification.
// A nil Session makes the event a no-op.
type LifecycleEvent struct {
	Kind    EventKind    `json:"event"`
	Session *SessionData `json:"session,omitempty"`
}

// Outcome reports which mutation, if any, a reconciliation applied.
type Outcome uint8

const (
	OutcomeNoop Outcome = iota
	OutcomeInserted
	OutcomeUpdated
	OutcomeDeleted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoop:
		return "noop"
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	case OutcomeDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}
