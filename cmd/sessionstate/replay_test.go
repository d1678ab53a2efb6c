package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aadithya-v/sessionstate/internal/config"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReplayReconcilesEvents(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "sessionstate.yaml", "log_level: error\nstore:\n  driver: sqlite\n  sqlite_path: "+filepath.Join(dir, "state.db")+"\n")
	events := writeFile(t, dir, "events.ndjson", strings.Join([]string{
		`{"event":"created","session":{"user":"alice","sessionId":"s1","serviceProvider":"sp1","createdTimestamp":100,"updatedTimestamp":100}}`,
		`{"event":"updated","session":{"user":"alice","sessionId":"s1","serviceProvider":"sp1","createdTimestamp":100,"updatedTimestamp":200}}`,
		``,
		`{"event":"created","session":{"user":"alice","sessionId":"s1","serviceProvider":"sp1","createdTimestamp":100,"updatedTimestamp":300}}`,
		`{"event":"terminated","session":{"user":"alice","sessionId":"s1","serviceProvider":"sp1","createdTimestamp":100,"updatedTimestamp":400}}`,
		`{"event":"terminated"}`,
	}, "\n"))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"replay", "--config", cfgPath, events})
	require.NoError(t, rootCmd.Execute())

	assert.Equal(t, "inserted=1 updated=1 deleted=1 noop=2 failed=0\n", out.String())
}

func TestReplayRejectsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "sessionstate.yaml", "log_level: error\nstore:\n  driver: memory\n")
	events := writeFile(t, dir, "events.ndjson", `{"event":"expired","session":{}}`)

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"replay", "--config", cfgPath, events})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestNewAppRejectsUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "postgres"

	_, err := newApp(cfg)
	assert.Error(t, err)
}
