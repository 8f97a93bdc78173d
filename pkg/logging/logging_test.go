package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/gitprivacy/git-privacy/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONEntry(t *testing.T) {
	var buf bytes.Buffer
	l := logging.New(logging.LevelInfo, "json")
	l.SetOutput(&buf)

	l.Info("stored record", map[string]any{"commit": "abc123"})

	var entry logging.Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, logging.LevelInfo, entry.Level)
	assert.Equal(t, "stored record", entry.Message)
	assert.Equal(t, "abc123", entry.Fields["commit"])
	assert.NotEmpty(t, entry.Timestamp)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := logging.New(logging.LevelWarn, "json")
	l.SetOutput(&buf)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("visible")

	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "visible")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := logging.New(logging.LevelInfo, "json").WithFields(map[string]any{"repo": "/tmp/r"})
	l.SetOutput(&buf)

	l.Info("redate")

	var entry logging.Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "/tmp/r", entry.Fields["repo"])
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := logging.New(logging.LevelInfo, "text")
	l.SetOutput(&buf)

	l.Info("hello", map[string]any{"n": 3})

	out := buf.String()
	assert.Contains(t, out, "info hello")
	assert.Contains(t, out, "n=3")
}
