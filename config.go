package sessionstate

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/aadithya-v/sessionstate/lock"
	"github.com/aadithya-v/sessionstate/store"
)

// DuplicatePolicy decides what a reconciliation does when the store holds
// more than one record for a key.
type DuplicatePolicy uint8

const (
	// DuplicatesReport rolls back and returns an InconsistentStateError.
	DuplicatesReport DuplicatePolicy = iota

	// DuplicatesRepair deletes every record except the newest and continues.
	DuplicatesRepair

	// DuplicatesIgnore acts on the newest record and leaves the others.
	DuplicatesIgnore
)

func (p DuplicatePolicy) String() string {
	switch p {
	case DuplicatesReport:
		return "report"
	case DuplicatesRepair:
		return "repair"
	case DuplicatesIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("DuplicatePolicy(%d)", uint8(p))
	}
}

// ParseDuplicatePolicy parses "report", "repair" or "ignore".
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch s {
	case "", "report":
		return DuplicatesReport, nil
	case "repair":
		return DuplicatesRepair, nil
	case "ignore":
		return DuplicatesIgnore, nil
	}
	return 0, fmt.Errorf("sessionstate: unknown duplicate policy %q", s)
}

// Config contains configuration options for the Reconciler.
type Config struct {
	// Store is the backend holding session records.
	// Default: SQLite store at DatabasePath.
	Store store.Store

	// DatabasePath is the path for the default SQLite database.
	// Only used if Store is nil.
	// Default: "sessionstate.db".
	DatabasePath string

	// Locker serializes reconciliations of the same (user, service provider)
	// key. Use a lock.Redis when several processes share one store.
	// Default: in-process lock.Local.
	Locker lock.Locker

	// Logger receives one info line per mutation and warnings for repairs.
	// Default: no-op logger.
	Logger *zap.Logger

	// Metrics records reconcile outcomes. Optional.
	Metrics *Metrics

	// DuplicatePolicy handles keys with more than one record.
	// Default: DuplicatesReport.
	DuplicatePolicy DuplicatePolicy
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DatabasePath:    "sessionstate.db",
		DuplicatePolicy: DuplicatesReport,
	}
}

// applyDefaults fills in default values for zero-value fields.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.DatabasePath == "" {
		c.DatabasePath = defaults.DatabasePath
	}
	if c.Locker == nil {
		c.Locker = lock.NewLocal()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}
