package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, fn func()) map[string]interface{} {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	fn()
	if buf.Len() == 0 {
		return nil
	}
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestMailboxFieldRedacted(t *testing.T) {
	SetRedactPII(true)
	entry := capture(t, func() {
		Info("signature written", "mailbox", "pat.jones@acme.com", "status", "ok")
	})
	require.NotNil(t, entry)
	assert.NotContains(t, entry["mailbox"], "pat.jones")
	assert.Contains(t, entry["mailbox"], "@acme.com")
	assert.Equal(t, "ok", entry["status"])
}

func TestEmailInGenericFieldRedacted(t *testing.T) {
	SetRedactPII(true)
	entry := capture(t, func() {
		Warn("write failed", "error", "graph rejected pat.jones@acme.com: 403")
	})
	require.NotNil(t, entry)
	assert.NotContains(t, entry["error"], "pat.jones@acme.com")
}

func TestRedactionDisabled(t *testing.T) {
	SetRedactPII(false)
	defer SetRedactPII(true)
	entry := capture(t, func() {
		Info("signature written", "mailbox", "pat.jones@acme.com")
	})
	require.NotNil(t, entry)
	assert.Equal(t, "pat.jones@acme.com", entry["mailbox"])
}

func TestLevelFiltering(t *testing.T) {
	SetLevel(WARN)
	defer SetLevel(INFO)
	entry := capture(t, func() {
		Info("chatty", "k", "v")
	})
	assert.Nil(t, entry)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("anything else"))
}
