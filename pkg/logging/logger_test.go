package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useTempLogDir points the package at a temp directory and restores the
// previous state afterwards.
func useTempLogDir(t *testing.T) {
	t.Helper()

	origDir, origErr, origOnce := logDir, dirError, dirOnce
	logDir = t.TempDir()
	dirError = nil
	dirOnce = new(sync.Once)

	t.Cleanup(func() {
		logDir, dirError, dirOnce = origDir, origErr, origOnce
	})
}

func TestLoggerWritesTaggedLines(t *testing.T) {
	useTempLogDir(t)

	logger, err := New("retriever")
	require.NoError(t, err)
	defer logger.Close()

	logger.Infof("retrieval %s started", "ab12cd34")
	logger.Errorf("locate failed: %v", "timeout")

	data, err := os.ReadFile(logger.Path())
	require.NoError(t, err)

	content := string(data)
	assert.Contains(t, content, "[retriever] [INFO] retrieval ab12cd34 started")
	assert.Contains(t, content, "[retriever] [ERROR] locate failed: timeout")
}

func TestLoggersShareOneRunFile(t *testing.T) {
	useTempLogDir(t)

	first, err := New("webhook")
	require.NoError(t, err)
	defer first.Close()

	second, err := New("retriever")
	require.NoError(t, err)
	defer second.Close()

	assert.Equal(t, first.Path(), second.Path())
	assert.True(t, strings.Contains(first.Path(), RunID()))
}

func TestCloseIsIdempotent(t *testing.T) {
	useTempLogDir(t)

	logger, err := New("retriever")
	require.NoError(t, err)

	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())
}

func TestFallbackLoggerOnUnwritableDir(t *testing.T) {
	// A regular file in place of the log directory makes OpenFile fail.
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0600))

	origDir, origErr, origOnce := logDir, dirError, dirOnce
	logDir = blocker
	dirError = nil
	dirOnce = new(sync.Once)
	t.Cleanup(func() {
		logDir, dirError, dirOnce = origDir, origErr, origOnce
	})

	logger, err := New("retriever")
	require.Error(t, err)
	require.NotNil(t, logger, "a fallback logger is always returned")
	assert.Empty(t, logger.Path())

	// Must not panic when writing to the fallback.
	logger.Infof("still logging to stderr")
	require.NoError(t, logger.Close())
}
