package store

import (
	"os"
	"testing"
)

// MySQL tests run only when SESSIONSTATE_MYSQL_DSN points at a scratch database.
func openMySQL(t *testing.T) Store {
	dsn := os.Getenv("SESSIONSTATE_MYSQL_DSN")
	if dsn == "" {
		t.Skip("SESSIONSTATE_MYSQL_DSN not set")
	}

	s, err := NewMySQLFromDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to open MySQL store: %v", err)
	}
	if _, err := s.db.Exec("DELETE FROM session_state"); err != nil {
		t.Fatalf("Failed to clear session_state: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMySQLStore(t *testing.T) {
	runStoreTests(t, openMySQL)
}

func TestMySQLStoreDuplicates(t *testing.T) {
	runDuplicateTests(t, openMySQL)
}
