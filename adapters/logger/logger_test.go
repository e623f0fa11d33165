package logger_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"campusmart/adapters/logger"
)

func TestNew_JSONLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, cleanup, err := logger.New(logger.Options{Level: "warn", JSON: true, Output: &buf})
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("shown", zap.String("item", "item-1"))
	cleanup()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "item-1", entry["item"])
	assert.Equal(t, "warn", entry["level"])
}

func TestNew_InvalidLevel(t *testing.T) {
	_, _, err := logger.New(logger.Options{Level: "loud"})
	assert.Error(t, err)
}

func TestNew_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campusmart.log")
	var buf bytes.Buffer
	l, cleanup, err := logger.New(logger.Options{Output: &buf, File: path})
	require.NoError(t, err)

	l.Info("published", zap.String("item", "item-1"))
	cleanup()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"published"`)
	assert.Contains(t, buf.String(), "published")
}
