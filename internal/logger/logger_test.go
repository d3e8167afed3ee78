package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestRedactsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, INFO, false)

	l.Info("user signed up",
		"email", "jane.doe@example.com",
		"user_id", 42,
		"session_token", "abcdefghijklmnop",
		"password", "hunter22",
		"error", errors.New("boom"))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "user signed up", entry["message"])
	assert.Equal(t, "j****e@example.com", entry["email"])
	assert.Equal(t, hashUserID(42), entry["user_id"])
	assert.Equal(t, "abcd****", entry["session_token"])
	assert.Equal(t, "[REDACTED]", entry["password"])
	assert.Equal(t, "boom", entry["error"])
}

func TestDevelopmentDebugSkipsRedaction(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, DEBUG, true)

	l.Debug("lookup", "email", "jane.doe@example.com")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "jane.doe@example.com", entry["email"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, WARN, false)

	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Error("kept", "odd")
	entry := decodeLine(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Nil(t, entry["odd"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("WARN"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("nonsense"))
}

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "", redactEmail(""))
	assert.Equal(t, "****", redactEmail("no-at-sign"))
	assert.Equal(t, "****@x.io", redactEmail("ab@x.io"))
}
